package entity

import "time"

// Transaction types. The signed quantity of a transaction always equals the stock delta.
const (
	TxTypeAddition    = "addition"    // restock, +q
	TxTypeCheckout    = "checkout"    // temporary removal, −q
	TxTypeReturn      = "return"      // back from checkout, +q
	TxTypeConsumption = "consumption" // permanent use (including builds), −q
	TxTypeAdjustment  = "adjustment"  // admin correction, ±q
)

// ValidTxType reports whether t is a known transaction type.
func ValidTxType(t string) bool {
	switch t {
	case TxTypeAddition, TxTypeCheckout, TxTypeReturn, TxTypeConsumption, TxTypeAdjustment:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID        string
	PartID    string
	UserID    string
	Type      string
	Quantity  int // signed delta applied to the part
	Notes     string
	BuildID   string // set on consumptions written by a board build
	Timestamp time.Time
}

// TransactionView is a transaction joined with part and user display data.
type TransactionView struct {
	Transaction
	PartNumber      string
	PartDescription string
	UserName        string
}
