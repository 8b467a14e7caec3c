package repository

import (
	"context"
	"time"

	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// TransactionFilter narrows ledger listings. Zero values mean "any".
type TransactionFilter struct {
	PartID  string
	UserID  string
	Type    string
	BuildID string
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// TransactionRepository append-only ledger store.
type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	List(ctx context.Context, filter TransactionFilter) ([]entity.TransactionView, int, error)
	// CheckoutsAndReturns returns checkout and return rows ordered by timestamp.
	// Empty userID or partID means all users or all parts.
	CheckoutsAndReturns(ctx context.Context, userID, partID string) ([]entity.Transaction, error)
	Recent(ctx context.Context, limit int) ([]entity.TransactionView, error)
	CountByPart(ctx context.Context, partID string) (int, error)
}
