package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockMovementRequest is the body of add-stock, checkout, return and consume.
// PartID accepts the part code or its internal id.
type StockMovementRequest struct {
	PartID   string           `json:"part_id" validate:"required"`
	Quantity int              `json:"quantity" validate:"min=1"`
	Notes    string           `json:"notes"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"` // add-stock only
}

// AdjustStockRequest is the body of POST /api/inventory/adjust.
type AdjustStockRequest struct {
	PartID string `json:"part_id" validate:"required"`
	Delta  int    `json:"delta"`
	Notes  string `json:"notes" validate:"required"`
}

// MovementResponse reports the applied movement.
type MovementResponse struct {
	TransactionID string `json:"transaction_id"`
	PartID        string `json:"part_id"`
	Type          string `json:"type"`
	Delta         int    `json:"delta"`
	Quantity      int    `json:"quantity"` // stock after the movement
	Message       string `json:"message"`
}

// OutstandingDTO is what a user still holds of a part.
type OutstandingDTO struct {
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name,omitempty"`
	PartID         string    `json:"part_id"`
	Description    string    `json:"description"`
	Quantity       int       `json:"quantity"`
	LastCheckoutAt time.Time `json:"last_checkout_at"`
}

// ReplenishmentSuggestionDTO is a low-stock part with a suggested order.
type ReplenishmentSuggestionDTO struct {
	PartID             string          `json:"part_id"`
	Description        string          `json:"description"`
	BinID              string          `json:"bin_id"`
	CurrentStock       int             `json:"current_stock"`
	MinQuantity        int             `json:"min_quantity"`
	BoardDemand        int             `json:"board_demand"`         // per-unit need summed over active boards
	IdealStock         int             `json:"ideal_stock"`          // max(ceil(min × 1.5), board demand)
	SuggestedOrderQty  int             `json:"suggested_order_qty"`  // IdealStock - CurrentStock
	UnitCost           decimal.Decimal `json:"unit_cost"`            // weighted average
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"` // SuggestedOrderQty × UnitCost
	Priority           int             `json:"priority"`             // 1 = most urgent
}

// TransactionListRequest is the query of GET /api/transactions.
type TransactionListRequest struct {
	PageRequest
	PartID  string `query:"part_id"`
	UserID  string `query:"user_id"`
	Type    string `query:"type"`
	BuildID string `query:"build_id"`
	Since   string `query:"since"` // RFC 3339 or YYYY-MM-DD
	Until   string `query:"until"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID          string    `json:"id"`
	PartID      string    `json:"part_id"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Notes       string    `json:"notes,omitempty"`
	BuildID     string    `json:"build_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TransactionListResponse is a paginated list of ledger entries.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Page  PageResponse          `json:"page"`
}
