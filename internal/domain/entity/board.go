package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBoardVersion is used when a board is created without a version.
const DefaultBoardVersion = "1.0"

// Board is a reusable assembly design that owns a bill of materials.
type Board struct {
	ID             string
	Name           string
	Version        string
	Description    string
	IsActive       bool
	FinishedPartID string // optional part representing the assembled board
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Label is "name vX" as shown in lists and reports.
func (b *Board) Label() string { return b.Name + " v" + b.Version }

// BOMLine is one (board, part) requirement.
type BOMLine struct {
	ID               string
	BoardID          string
	PartID           string
	QuantityRequired int
	Notes            string
	Position         int // keeps the BOM order stable
}

// BOMLineStock is a BOM line joined with the part's live stock, read in one statement.
type BOMLineStock struct {
	BOMLine
	PartNumber  string
	Description string
	Available   int
	UnitCost    decimal.Decimal
	IsSensitive bool
}
