// Package build holds the pure decision logic of a board build: how many units of
// each part a build consumes and which parts fall short. It never touches storage.
package build

import (
	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// MaxQuantity caps a single build request.
const MaxQuantity = 10000

// Consumption is what a feasible build takes from one part.
type Consumption struct {
	PartID     string `json:"-"`
	PartNumber string `json:"part_id"`
	Units      int    `json:"units_consumed"`
}

// Plan is the outcome of evaluating a BOM against a stock snapshot.
type Plan struct {
	Quantity     int
	Consumptions []Consumption
	Shortfalls   []domain.Shortfall
}

// Feasible reports whether every line is covered.
func (p Plan) Feasible() bool { return len(p.Shortfalls) == 0 }

// Evaluate computes, for a build of quantity units, the required units per part
// (quantity_required × quantity) and compares them with the available stock carried
// by each line. Lines referencing the same part are merged so a part is judged
// against its total requirement. Output order follows the BOM order.
func Evaluate(lines []entity.BOMLineStock, quantity int) Plan {
	plan := Plan{Quantity: quantity}

	type agg struct {
		line     entity.BOMLineStock
		required int
	}
	order := make([]string, 0, len(lines))
	byPart := make(map[string]*agg, len(lines))
	for _, l := range lines {
		a, ok := byPart[l.PartID]
		if !ok {
			a = &agg{line: l}
			byPart[l.PartID] = a
			order = append(order, l.PartID)
		}
		a.required += l.QuantityRequired * quantity
	}

	for _, partID := range order {
		a := byPart[partID]
		if a.line.Available < a.required {
			plan.Shortfalls = append(plan.Shortfalls, domain.Shortfall{
				PartID:      partID,
				PartNumber:  a.line.PartNumber,
				Description: a.line.Description,
				Required:    a.required,
				Available:   a.line.Available,
				Sensitive:   a.line.IsSensitive,
			})
			continue
		}
		plan.Consumptions = append(plan.Consumptions, Consumption{
			PartID:     partID,
			PartNumber: a.line.PartNumber,
			Units:      a.required,
		})
	}
	if !plan.Feasible() {
		plan.Consumptions = nil
	}
	return plan
}

// Redact hides the description of sensitive parts from callers that are not admins.
// The input is left untouched.
func Redact(shortfalls []domain.Shortfall, role string) []domain.Shortfall {
	if role == entity.RoleAdmin || len(shortfalls) == 0 {
		return shortfalls
	}
	out := make([]domain.Shortfall, len(shortfalls))
	copy(out, shortfalls)
	for i := range out {
		if out[i].Sensitive {
			out[i].Description = entity.Restricted
		}
	}
	return out
}

// MaxBuildable returns how many complete units the current stock allows.
// bounded is false for an empty BOM, which never runs out.
func MaxBuildable(lines []entity.BOMLineStock) (n int, bounded bool) {
	perPart := make(map[string]int, len(lines))
	avail := make(map[string]int, len(lines))
	for _, l := range lines {
		perPart[l.PartID] += l.QuantityRequired
		avail[l.PartID] = l.Available
	}
	first := true
	for partID, need := range perPart {
		if need <= 0 {
			continue
		}
		units := avail[partID] / need
		if units < 0 {
			units = 0
		}
		if first || units < n {
			n = units
			first = false
		}
	}
	return n, !first
}

// LineCost is the extended cost of one BOM line for a single board.
type LineCost struct {
	PartNumber   string
	Quantity     int
	UnitCost     decimal.Decimal
	ExtendedCost decimal.Decimal
}

// CostRollup prices one unit of the board from the parts' unit costs.
// Parts without a known cost count as zero and are reported in unpriced.
func CostRollup(lines []entity.BOMLineStock) (total decimal.Decimal, items []LineCost, unpriced []string) {
	total = decimal.Zero
	items = make([]LineCost, 0, len(lines))
	for _, l := range lines {
		ext := l.UnitCost.Mul(decimal.NewFromInt(int64(l.QuantityRequired)))
		items = append(items, LineCost{
			PartNumber:   l.PartNumber,
			Quantity:     l.QuantityRequired,
			UnitCost:     l.UnitCost,
			ExtendedCost: ext,
		})
		if l.UnitCost.IsZero() {
			unpriced = append(unpriced, l.PartNumber)
		}
		total = total.Add(ext)
	}
	return total, items, unpriced
}
