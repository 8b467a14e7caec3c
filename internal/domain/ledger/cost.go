package ledger

import "github.com/shopspring/decimal"

// WeightedAverageCost blends the cost of incoming units into the current unit cost:
//
//	new = (stock*cost + incoming*incomingCost) / (stock + incoming)
//
// A non-positive resulting stock yields zero.
func WeightedAverageCost(stock int, cost decimal.Decimal, incoming int, incomingCost decimal.Decimal) decimal.Decimal {
	total := stock + incoming
	if total <= 0 {
		return decimal.Zero
	}
	if stock < 0 {
		stock = 0
	}
	num := decimal.NewFromInt(int64(stock)).Mul(cost).
		Add(decimal.NewFromInt(int64(incoming)).Mul(incomingCost))
	return num.Div(decimal.NewFromInt(int64(stock + incoming))).Round(4)
}
