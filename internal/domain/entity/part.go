package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// QRPrefix prefixes the part number in the stored QR code value.
const QRPrefix = "QR-"

// Restricted replaces the description of a sensitive part shown to non-admins.
const Restricted = "(restricted)"

// Part is a stocked component.
// Quantity is the source of truth for availability and only changes together with a Transaction.
type Part struct {
	ID          string
	Number      string // human part code printed on the bin, unique
	Description string
	BinID       string
	BinLocation string // sub-location inside the bin
	Quantity    int
	MinQuantity int // reorder threshold
	Link        string
	Value       string // electrical value (10k, 100nF), used to match BOM imports
	Footprint   string
	IsSensitive bool            // visible only to admins
	UnitCost    decimal.Decimal // weighted average, zero when unknown
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// QRCode returns the value encoded in the part's label.
func (p *Part) QRCode() string { return QRPrefix + p.Number }

// IsLowStock reports whether the part is at or below its reorder threshold.
func (p *Part) IsLowStock() bool { return p.Quantity <= p.MinQuantity }

// VisibleTo reports whether a user with the given role may see the part.
func (p *Part) VisibleTo(role string) bool { return !p.IsSensitive || role == RoleAdmin }

// StockValue is quantity × unit cost.
func (p *Part) StockValue() decimal.Decimal {
	return p.UnitCost.Mul(decimal.NewFromInt(int64(p.Quantity)))
}
