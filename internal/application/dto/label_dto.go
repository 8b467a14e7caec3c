package dto

// LabelPDFRequest is the body of POST /api/labels/pdf.
type LabelPDFRequest struct {
	PartIDs []string `json:"part_ids" validate:"required,min=1"`
	Columns int      `json:"columns"` // clamped to 1..5, default 3
	Title   string   `json:"title"`
}
