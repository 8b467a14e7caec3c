package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// PartFilter narrows part listings.
type PartFilter struct {
	Search           string // matches number, description, value or footprint
	BinID            string
	LowStockOnly     bool
	IncludeSensitive bool
	Limit            int
	Offset           int
}

// PartRepository persistence port for parts. Getters return (nil, nil) when nothing matches.
type PartRepository interface {
	Create(ctx context.Context, part *entity.Part) error
	// Update writes descriptive fields only; quantity and cost change through ledger methods.
	Update(ctx context.Context, part *entity.Part) error
	GetByID(ctx context.Context, id string) (*entity.Part, error)
	GetByNumber(ctx context.Context, number string) (*entity.Part, error)
	List(ctx context.Context, filter PartFilter) ([]*entity.Part, int, error)
	ListNumbers(ctx context.Context, prefix string) ([]string, error)
	FindByValueOrFootprint(ctx context.Context, value, footprint string) (*entity.Part, error)
	IsReferenced(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error

	// GetForUpdate reads the part and locks its row until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*entity.Part, error)
	// LockForUpdate locks several rows in ascending id order so concurrent callers
	// never wait on each other in a cycle.
	LockForUpdate(ctx context.Context, ids []string) ([]*entity.Part, error)
	// ApplyDelta adds delta to the stored quantity and returns the new value. It fails with
	// domain.ErrConcurrentConflict instead of letting the quantity go negative.
	ApplyDelta(ctx context.Context, id string, delta int) (int, error)
	UpdateUnitCost(ctx context.Context, id string, cost decimal.Decimal) error
}

// ResolvePart looks a part up by internal id when ref parses as a UUID, otherwise by part code.
// A "QR-" prefix, as scanned from a label, is stripped first.
func ResolvePart(ctx context.Context, repo PartRepository, ref string) (*entity.Part, error) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), entity.QRPrefix)
	if ref == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(ref); err == nil {
		return repo.GetByID(ctx, ref)
	}
	return repo.GetByNumber(ctx, ref)
}
