package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStatsDTO answers GET /api/dashboard/stats.
type DashboardStatsDTO struct {
	TotalParts    int             `json:"total_parts"`
	LowStockParts int             `json:"low_stock_parts"`
	NewPartsWeek  int             `json:"new_parts_this_week"`
	StockValue    decimal.Decimal `json:"stock_value"`

	// Only filled for admins.
	TotalUsers   *int `json:"total_users,omitempty"`
	NewUsersWeek *int `json:"new_users_this_week,omitempty"`

	ActiveBoards int `json:"active_boards"`
	ReadyBoards  int `json:"ready_boards"`
	TotalBuilds  int `json:"total_builds"`

	TransactionsWeek     int             `json:"transactions_this_week"`
	TransactionsLastWeek int             `json:"transactions_last_week"`
	TransactionGrowthPct decimal.Decimal `json:"transaction_growth_pct"`

	RecentActivity []ActivityDTO `json:"recent_activity"`
}

// ActivityDTO is one row of the activity feed: a transaction or a build.
type ActivityDTO struct {
	Kind      string    `json:"kind"` // transaction | build
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserName  string    `json:"user_name"`
	Type      string    `json:"type,omitempty"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}
