package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PartCounts catalog aggregates.
type PartCounts struct {
	Total      int
	LowStock   int // quantity <= min_quantity
	NewSince   int
	StockValue decimal.Decimal // sum(quantity * unit_cost)
}

// BoardCounts board aggregates.
type BoardCounts struct {
	Active int
	Ready  int // active boards whose every BOM line is covered for one unit
	Builds int
}

// DashboardRepository read-only aggregate queries for the dashboard.
type DashboardRepository interface {
	PartCounts(ctx context.Context, since time.Time) (PartCounts, error)
	UserCounts(ctx context.Context, since time.Time) (total, newSince int, err error)
	BoardCounts(ctx context.Context) (BoardCounts, error)
	// TransactionCounts counts ledger rows in [prevStart, curStart) and [curStart, now).
	TransactionCounts(ctx context.Context, curStart, prevStart time.Time) (current, previous int, err error)
}
