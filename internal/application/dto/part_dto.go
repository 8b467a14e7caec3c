package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatePartRequest creates a part. Quantity is the opening stock and is recorded as an addition.
type CreatePartRequest struct {
	PartID      string           `json:"part_id" validate:"required,max=64"`
	Description string           `json:"description" validate:"required,max=500"`
	BinID       string           `json:"bin_id"`
	BinLocation string           `json:"bin_location"`
	Quantity    int              `json:"quantity" validate:"min=0"`
	MinQuantity int              `json:"min_quantity" validate:"min=0"`
	Link        string           `json:"link"`
	Value       string           `json:"value"`
	Footprint   string           `json:"footprint"`
	IsSensitive bool             `json:"is_sensitive"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
}

// UpdatePartRequest changes catalog data; quantity and cost only change through the ledger.
type UpdatePartRequest struct {
	PartID      *string `json:"part_id"`
	Description *string `json:"description"`
	BinID       *string `json:"bin_id"`
	BinLocation *string `json:"bin_location"`
	MinQuantity *int    `json:"min_quantity"`
	Link        *string `json:"link"`
	Value       *string `json:"value"`
	Footprint   *string `json:"footprint"`
	IsSensitive *bool   `json:"is_sensitive"`
}

// PartListRequest is the query of GET /api/parts.
type PartListRequest struct {
	PageRequest
	Search   string `query:"search"`
	BinID    string `query:"bin_id"`
	LowStock bool   `query:"low_stock"`
}

// PartResponse is a part as seen by clients.
type PartResponse struct {
	ID          string          `json:"id"`
	PartID      string          `json:"part_id"`
	Description string          `json:"description"`
	BinID       string          `json:"bin_id"`
	BinLocation string          `json:"bin_location"`
	Quantity    int             `json:"quantity"`
	MinQuantity int             `json:"min_quantity"`
	LowStock    bool            `json:"low_stock"`
	Link        string          `json:"link,omitempty"`
	Value       string          `json:"value,omitempty"`
	Footprint   string          `json:"footprint,omitempty"`
	IsSensitive bool            `json:"is_sensitive"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	QRCode      string          `json:"qr_code"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PartListResponse is a paginated list of parts.
type PartListResponse struct {
	Items []PartResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

// NextCodeResponse answers GET /api/parts/next-code.
type NextCodeResponse struct {
	Subassembly string `json:"subassembly"`
	PartID      string `json:"part_id"`
}
