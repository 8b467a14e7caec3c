package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/domain"
)

// BOMLineRequest is one BOM line. PartID accepts the part code or its internal id.
type BOMLineRequest struct {
	PartID           string `json:"part_id" validate:"required"`
	QuantityRequired int    `json:"quantity_required" validate:"min=1"`
	Notes            string `json:"notes"`
}

// CreateBoardRequest creates a board with its BOM.
type CreateBoardRequest struct {
	Name           string           `json:"name" validate:"required,max=200"`
	Version        string           `json:"version"`
	Description    string           `json:"description"`
	FinishedPartID string           `json:"finished_part_id"`
	Lines          []BOMLineRequest `json:"lines"`
}

// UpdateBoardRequest changes board metadata.
type UpdateBoardRequest struct {
	Name           *string `json:"name"`
	Version        *string `json:"version"`
	Description    *string `json:"description"`
	FinishedPartID *string `json:"finished_part_id"`
	IsActive       *bool   `json:"is_active"`
}

// ReplaceBOMRequest replaces every line of a board.
type ReplaceBOMRequest struct {
	Lines []BOMLineRequest `json:"lines"`
}

// BOMLineResponse is a BOM line joined with its part's stock.
type BOMLineResponse struct {
	PartID           string          `json:"part_id"`
	Description      string          `json:"description"`
	QuantityRequired int             `json:"quantity_required"`
	Available        int             `json:"available"`
	Sufficient       bool            `json:"sufficient"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ExtendedCost     decimal.Decimal `json:"extended_cost"`
	Notes            string          `json:"notes,omitempty"`
}

// BoardResponse is a board summary.
type BoardResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Version        string    `json:"version"`
	Description    string    `json:"description,omitempty"`
	IsActive       bool      `json:"is_active"`
	FinishedPartID string    `json:"finished_part_id,omitempty"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BoardDetailResponse is a board with its BOM, readiness and cost.
type BoardDetailResponse struct {
	BoardResponse
	Lines        []BOMLineResponse `json:"lines"`
	Ready        bool              `json:"ready"`
	MaxBuildable *int              `json:"max_buildable"` // null for an empty BOM
	UnitCost     decimal.Decimal   `json:"unit_cost"`
	Unpriced     []string          `json:"unpriced_parts,omitempty"`
	TotalBuilds  int               `json:"total_builds"`
}

// ImportBOMRequest carries the form fields of a BOM upload; the file comes as multipart "file".
type ImportBOMRequest struct {
	Name        string `form:"name"`
	Version     string `form:"version"`
	Description string `form:"description"`
	Format      string `form:"format"` // csv | kicad-xml; guessed from the file name when empty
}

// ImportLineDTO is one parsed BOM row and its catalog match.
type ImportLineDTO struct {
	References  []string `json:"references,omitempty"`
	Value       string   `json:"value"`
	Footprint   string   `json:"footprint"`
	Quantity    int      `json:"quantity"`
	PartID      string   `json:"part_id"`
	Description string   `json:"description"`
	Matched     bool     `json:"matched"` // false when the part will be created
}

// ImportPreviewResponse is the parsed BOM without writes.
type ImportPreviewResponse struct {
	Lines    []ImportLineDTO `json:"lines"`
	Matched  int             `json:"matched"`
	ToCreate int             `json:"to_create"`
}

// ImportResultResponse is the created board and the parts created for it.
type ImportResultResponse struct {
	Board        BoardDetailResponse `json:"board"`
	CreatedParts []string            `json:"created_parts"`
}

// BuildRequest is the body of POST /api/boards/:id/build.
type BuildRequest struct {
	Quantity   *int   `json:"quantity"` // defaults to 1
	Notes      string `json:"notes"`
	RequestKey string `json:"request_key"`
}

// ConsumedDTO is what a build took from one part.
type ConsumedDTO struct {
	PartID        string `json:"part_id"`
	UnitsConsumed int    `json:"units_consumed"`
}

// BuildResponse is a successful build.
type BuildResponse struct {
	BuildID  string        `json:"build_id"`
	Consumed []ConsumedDTO `json:"consumed"`
	Message  string        `json:"message"`
}

// BuildErrorResponse is a rejected build.
type BuildErrorResponse struct {
	ErrorKind  string             `json:"error_kind"`
	Message    string             `json:"message"`
	Shortfalls []domain.Shortfall `json:"shortfalls,omitempty"`
}

// FeasibilityResponse answers GET /api/boards/:id/feasibility.
type FeasibilityResponse struct {
	BoardID      string             `json:"board_id"`
	Board        string             `json:"board"`
	Quantity     int                `json:"quantity"`
	CanBuild     bool               `json:"can_build"`
	MaxBuildable *int               `json:"max_buildable"`
	Requirements []ConsumedDTO      `json:"requirements"`
	Shortfalls   []domain.Shortfall `json:"shortfalls"`
}

// BuildRecordResponse is one past build.
type BuildRecordResponse struct {
	ID            string    `json:"id"`
	BoardID       string    `json:"board_id"`
	Board         string    `json:"board"`
	BuiltBy       string    `json:"built_by"`
	BuilderName   string    `json:"builder_name"`
	QuantityBuilt int       `json:"quantity_built"`
	Notes         string    `json:"notes,omitempty"`
	BuiltAt       time.Time `json:"built_at"`
}

// BuildListResponse is a paginated list of builds.
type BuildListResponse struct {
	Items []BuildRecordResponse `json:"items"`
	Page  PageResponse          `json:"page"`
}
