package inventory_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/application/inventory"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/testutil/memstore"
)

func TestGenerateReplenishmentList(t *testing.T) {
	s := memstore.New()
	s.AddPart(entity.Part{ID: "p1", Number: "01-0001", Quantity: 2, MinQuantity: 10, UnitCost: decimal.RequireFromString("0.50")})
	s.AddPart(entity.Part{ID: "p2", Number: "01-0002", Quantity: 4, MinQuantity: 5})
	s.AddPart(entity.Part{ID: "p3", Number: "01-0003", Quantity: 50, MinQuantity: 5})
	s.AddPart(entity.Part{ID: "p4", Number: "09-0001", Quantity: 0, MinQuantity: 1, IsSensitive: true})
	s.AddBoard(entity.Board{ID: "b1", Name: "EPS", Version: "1.0", IsActive: true},
		entity.BOMLine{PartID: "p2", QuantityRequired: 12})
	r := s.Repos()
	uc := inventory.NewReplenishmentUseCase(r.Parts, r.Boards)

	list, err := uc.GenerateReplenishmentList(context.Background(), entity.RoleMember)
	require.NoError(t, err)
	require.Len(t, list, 2, "only low-stock, non-sensitive parts")

	assert.Equal(t, "01-0002", list[0].PartID, "a part blocking an active board comes first")
	assert.Equal(t, 12, list[0].IdealStock)
	assert.Equal(t, 8, list[0].SuggestedOrderQty)
	assert.Equal(t, 1, list[0].Priority)

	assert.Equal(t, "01-0001", list[1].PartID)
	assert.Equal(t, 15, list[1].IdealStock)
	assert.Equal(t, 13, list[1].SuggestedOrderQty)
	assert.True(t, decimal.RequireFromString("6.5").Equal(list[1].EstimatedOrderCost))

	adminList, err := uc.GenerateReplenishmentList(context.Background(), entity.RoleAdmin)
	require.NoError(t, err)
	assert.Len(t, adminList, 3)
}
