// Package ledger derives read-only views from the transaction log.
package ledger

import (
	"sort"
	"time"

	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// Outstanding is what a user still holds of a part after netting checkouts against returns.
type Outstanding struct {
	UserID         string
	PartID         string
	Quantity       int
	LastCheckoutAt time.Time
}

// NetOutstanding folds checkout and return transactions into per (user, part) balances.
// Transactions are processed in timestamp order; other types are ignored. Only positive
// balances are returned, most recent checkout first.
func NetOutstanding(txs []entity.Transaction) []Outstanding {
	sorted := make([]entity.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	type key struct{ user, part string }
	balances := make(map[key]*Outstanding)
	var order []key
	for _, tx := range sorted {
		if tx.Type != entity.TxTypeCheckout && tx.Type != entity.TxTypeReturn {
			continue
		}
		k := key{tx.UserID, tx.PartID}
		o, ok := balances[k]
		if !ok {
			o = &Outstanding{UserID: tx.UserID, PartID: tx.PartID}
			balances[k] = o
			order = append(order, k)
		}
		// checkouts are stored negative, returns positive
		o.Quantity -= tx.Quantity
		if tx.Type == entity.TxTypeCheckout {
			o.LastCheckoutAt = tx.Timestamp
		}
	}

	out := make([]Outstanding, 0, len(order))
	for _, k := range order {
		if o := balances[k]; o.Quantity > 0 {
			out = append(out, *o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastCheckoutAt.After(out[j].LastCheckoutAt) })
	return out
}

// OutstandingFor returns what userID still holds of partID.
func OutstandingFor(txs []entity.Transaction, userID, partID string) int {
	for _, o := range NetOutstanding(txs) {
		if o.UserID == userID && o.PartID == partID {
			return o.Quantity
		}
	}
	return 0
}
