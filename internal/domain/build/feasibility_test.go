package build_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/build"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

func line(partID, number string, perUnit, available int) entity.BOMLineStock {
	return entity.BOMLineStock{
		BOMLine:    entity.BOMLine{PartID: partID, QuantityRequired: perUnit},
		PartNumber: number,
		Available:  available,
	}
}

// ADCS v1.0: PART-A needs 2, PART-B needs 1.
func adcs(stockA, stockB int) []entity.BOMLineStock {
	return []entity.BOMLineStock{
		line("a", "PART-A", 2, stockA),
		line("b", "PART-B", 1, stockB),
	}
}

func TestEvaluate_ADCSRejectedWhenPartBMissing(t *testing.T) {
	plan := build.Evaluate(adcs(5, 0), 1)

	require.False(t, plan.Feasible())
	assert.Empty(t, plan.Consumptions, "an infeasible plan consumes nothing")
	require.Len(t, plan.Shortfalls, 1)
	assert.Equal(t, domain.Shortfall{PartID: "b", PartNumber: "PART-B", Required: 1, Available: 0}, plan.Shortfalls[0])
}

func TestEvaluate_ADCSQuantityTwo(t *testing.T) {
	plan := build.Evaluate(adcs(5, 3), 2)

	require.True(t, plan.Feasible())
	assert.Equal(t, []build.Consumption{
		{PartID: "a", PartNumber: "PART-A", Units: 4},
		{PartID: "b", PartNumber: "PART-B", Units: 2},
	}, plan.Consumptions)
}

func TestEvaluate_ExactStockIsEnough(t *testing.T) {
	plan := build.Evaluate(adcs(4, 2), 2)
	assert.True(t, plan.Feasible(), "stock equal to requirement is sufficient")
}

func TestEvaluate_MatchesPredicateForAllSmallConfigurations(t *testing.T) {
	for stockA := 0; stockA <= 6; stockA++ {
		for stockB := 0; stockB <= 4; stockB++ {
			for qty := 1; qty <= 3; qty++ {
				plan := build.Evaluate(adcs(stockA, stockB), qty)
				wantFeasible := stockA >= 2*qty && stockB >= qty
				assert.Equal(t, wantFeasible, plan.Feasible(), "A=%d B=%d qty=%d", stockA, stockB, qty)

				var short []string
				for _, s := range plan.Shortfalls {
					short = append(short, s.PartNumber)
					assert.Less(t, s.Available, s.Required)
				}
				var want []string
				if stockA < 2*qty {
					want = append(want, "PART-A")
				}
				if stockB < qty {
					want = append(want, "PART-B")
				}
				assert.Equal(t, want, short, "A=%d B=%d qty=%d", stockA, stockB, qty)
			}
		}
	}
}

func TestEvaluate_MergesDuplicatePartLines(t *testing.T) {
	lines := []entity.BOMLineStock{
		line("a", "PART-A", 2, 5),
		line("a", "PART-A", 2, 5),
	}
	plan := build.Evaluate(lines, 2)

	require.False(t, plan.Feasible(), "8 units of PART-A needed, only 5 available")
	assert.Equal(t, 8, plan.Shortfalls[0].Required)
}

func TestEvaluate_EmptyBOMIsFeasible(t *testing.T) {
	plan := build.Evaluate(nil, 3)
	assert.True(t, plan.Feasible())
	assert.Empty(t, plan.Consumptions)
}

func TestRedact_HidesSensitiveDescriptionsFromMembers(t *testing.T) {
	hsm := line("h", "HSM-01", 1, 0)
	hsm.Description = "Crypto module"
	hsm.IsSensitive = true
	res := line("r", "RES-10K", 4, 1)
	res.Description = "10k 0603"

	shortfalls := build.Evaluate([]entity.BOMLineStock{hsm, res}, 1).Shortfalls
	require.Len(t, shortfalls, 2)

	member := build.Redact(shortfalls, entity.RoleMember)
	assert.Equal(t, entity.Restricted, member[0].Description)
	assert.Equal(t, "10k 0603", member[1].Description)
	assert.Equal(t, "Crypto module", shortfalls[0].Description, "input is not modified")

	assert.Equal(t, shortfalls, build.Redact(shortfalls, entity.RoleAdmin))
}

func TestMaxBuildable(t *testing.T) {
	n, bounded := build.MaxBuildable(adcs(5, 3))
	assert.True(t, bounded)
	assert.Equal(t, 2, n)

	n, bounded = build.MaxBuildable(adcs(5, 0))
	assert.True(t, bounded)
	assert.Equal(t, 0, n)

	_, bounded = build.MaxBuildable(nil)
	assert.False(t, bounded)
}

func TestCostRollup(t *testing.T) {
	lines := adcs(5, 3)
	lines[0].UnitCost = decimal.RequireFromString("0.25")

	total, items, unpriced := build.CostRollup(lines)

	assert.True(t, decimal.RequireFromString("0.50").Equal(total))
	require.Len(t, items, 2)
	assert.True(t, decimal.RequireFromString("0.50").Equal(items[0].ExtendedCost))
	assert.Equal(t, []string{"PART-B"}, unpriced)
}
