package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

// ReplenishmentUseCase builds the restock list: parts at or below their reorder
// threshold, with a suggested order sized for both the threshold and the active boards.
type ReplenishmentUseCase struct {
	parts  repository.PartRepository
	boards repository.BoardRepository
}

// NewReplenishmentUseCase builds the use case.
func NewReplenishmentUseCase(parts repository.PartRepository, boards repository.BoardRepository) *ReplenishmentUseCase {
	return &ReplenishmentUseCase{parts: parts, boards: boards}
}

// GenerateReplenishmentList returns low-stock parts ordered by urgency. Parts the active
// boards cannot be built from come first, then the largest deficit below threshold.
func (uc *ReplenishmentUseCase) GenerateReplenishmentList(ctx context.Context, role string) ([]dto.ReplenishmentSuggestionDTO, error) {
	// 1. Parts at or below the reorder threshold
	low, _, err := uc.parts.List(ctx, repository.PartFilter{
		LowStockOnly:     true,
		IncludeSensitive: role == entity.RoleAdmin,
	})
	if err != nil {
		return nil, err
	}
	if len(low) == 0 {
		return []dto.ReplenishmentSuggestionDTO{}, nil
	}

	// 2. Per-unit demand of the active boards
	demand, err := uc.boards.ActiveDemand(ctx)
	if err != nil {
		return nil, err
	}

	// 3. Suggestions
	suggestions := make([]dto.ReplenishmentSuggestionDTO, 0, len(low))
	for _, p := range low {
		ideal := idealStock(p.MinQuantity)
		if d := demand[p.ID]; d > ideal {
			ideal = d
		}
		suggested := ideal - p.Quantity
		if suggested < 0 {
			suggested = 0
		}
		suggestions = append(suggestions, dto.ReplenishmentSuggestionDTO{
			PartID:             p.Number,
			Description:        p.Description,
			BinID:              p.BinID,
			CurrentStock:       p.Quantity,
			MinQuantity:        p.MinQuantity,
			BoardDemand:        demand[p.ID],
			IdealStock:         ideal,
			SuggestedOrderQty:  suggested,
			UnitCost:           p.UnitCost,
			EstimatedOrderCost: p.UnitCost.Mul(decimal.NewFromInt(int64(suggested))),
		})
	}

	// 4. Blocking parts first, then the largest deficit, then part code
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		blockA, blockB := a.CurrentStock < a.BoardDemand, b.CurrentStock < b.BoardDemand
		if blockA != blockB {
			return blockA
		}
		defA, defB := a.MinQuantity-a.CurrentStock, b.MinQuantity-b.CurrentStock
		if defA != defB {
			return defA > defB
		}
		return a.PartID < b.PartID
	})

	// 5. Priority (1 = most urgent)
	for i := range suggestions {
		suggestions[i].Priority = i + 1
	}
	return suggestions, nil
}

// idealStock is the reorder threshold × 1.5, rounded up.
func idealStock(minQuantity int) int {
	return (minQuantity*3 + 1) / 2
}
