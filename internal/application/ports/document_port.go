package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Label is one QR label on a sheet.
type Label struct {
	PartNumber  string
	Description string
	QRContent   string
}

// LabelSheet is a printable page set of labels laid out in Columns columns.
type LabelSheet struct {
	Title   string
	Columns int
	Labels  []Label
}

// BoardReportLine is one BOM row of the board report.
type BoardReportLine struct {
	PartNumber   string
	Description  string
	PerUnit      int
	Available    int
	UnitCost     decimal.Decimal
	ExtendedCost decimal.Decimal
}

// BoardReport is the printable BOM and build-readiness sheet of a board.
type BoardReport struct {
	BoardName    string
	Version      string
	Description  string
	GeneratedAt  time.Time
	MaxBuildable int
	Bounded      bool
	UnitCost     decimal.Decimal
	Lines        []BoardReportLine
	TotalBuilds  int
}

// DocumentGenerator renders PDFs.
type DocumentGenerator interface {
	LabelSheetPDF(ctx context.Context, sheet LabelSheet) ([]byte, error)
	BoardReportPDF(ctx context.Context, report BoardReport) ([]byte, error)
}

// QREncoder renders a QR code image.
type QREncoder interface {
	PNG(content string, size int) ([]byte, error)
}
