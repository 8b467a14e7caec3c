package repository

import (
	"context"

	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// BuildRepository append-only store of build records.
type BuildRepository interface {
	// Create fails with domain.ErrDuplicate when RequestKey was already used.
	Create(ctx context.Context, build *entity.BuildRecord) error
	GetByRequestKey(ctx context.Context, key string) (*entity.BuildRecord, error)
	ListByBoard(ctx context.Context, boardID string, limit, offset int) ([]entity.BuildView, int, error)
	CountByBoard(ctx context.Context, boardID string) (int, error)
	Recent(ctx context.Context, limit int) ([]entity.BuildView, error)
}
