// Package pdf renders the printable documents of the inventory with Maroto v2.
//
// QR label sheet (US Letter, 4 label rows per page, 1-5 columns):
//
//	┌──────────────┬──────────────┬──────────────┐
//	│    ▄▄▄▄▄     │    ▄▄▄▄▄     │    ▄▄▄▄▄     │
//	│    █ QR█     │    █ QR█     │    █ QR█     │
//	│   01-0001    │   01-0002    │   02-0001    │
//	│ description  │ description  │ description  │
//	├──────────────┼──────────────┼──────────────┤
//	│     ...      │     ...      │     ...      │
//	└──────────────┴──────────────┴──────────────┘
//
// Board report: header, readiness summary, BOM table with stock and cost per line.
package pdf

import (
	"context"
	"fmt"
	"strconv"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
)

// ── Palette ───────────────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 140, Green: 21, Blue: 21}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorShort   = &props.Color{Red: 190, Green: 30, Blue: 30}
)

const (
	// gridSize divides evenly by every allowed column count (1..5).
	gridSize       = 60
	labelRowHeight = 62.0
	maxDescRunes   = 90
)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ ports.DocumentGenerator = (*MarotoPDFGenerator)(nil)

// MarotoPDFGenerator implements ports.DocumentGenerator with Maroto v2.
type MarotoPDFGenerator struct {
	author string
}

// NewMarotoPDFGenerator builds the generator. author goes into the PDF metadata.
func NewMarotoPDFGenerator(author string) *MarotoPDFGenerator {
	return &MarotoPDFGenerator{author: author}
}

func (g *MarotoPDFGenerator) newDocument(title string) core.Maroto {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.Letter).
		WithMaxGridSize(gridSize).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(title, true).
		WithAuthor(g.author, true).
		Build()
	return maroto.New(cfg)
}

// LabelSheetPDF lays out one QR label per part, sheet.Columns per row. Rows are sized so
// that four fit on a Letter page; Maroto breaks pages on its own.
func (g *MarotoPDFGenerator) LabelSheetPDF(ctx context.Context, sheet ports.LabelSheet) ([]byte, error) {
	cols := sheet.Columns
	if cols < 1 || cols > 5 {
		return nil, fmt.Errorf("pdf: label columns out of range: %d", cols)
	}
	title := sheet.Title
	if title == "" {
		title = "Part labels"
	}
	m := g.newDocument(title)
	if err := m.RegisterHeader(row.New(6).Add(col.New(gridSize).Add(
		text.New(title, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorGray}),
	))); err != nil {
		return nil, fmt.Errorf("pdf: header: %w", err)
	}

	width := gridSize / cols
	for start := 0; start < len(sheet.Labels); start += cols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+cols, len(sheet.Labels))
		r := row.New(labelRowHeight)
		for _, l := range sheet.Labels[start:end] {
			r.Add(labelCell(l, width))
		}
		for i := end - start; i < cols; i++ {
			r.Add(col.New(width))
		}
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate labels: %w", err)
	}
	return doc.GetBytes(), nil
}

// labelCell: QR on top, part code in bold, wrapped description below.
func labelCell(l ports.Label, width int) core.Col {
	return col.New(width).Add(
		code.NewQr(l.QRContent, props.Rect{Percent: 60, Left: 2, Top: 2}),
		text.New(l.PartNumber, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Center, Top: 40,
		}),
		text.New(truncate(l.Description, maxDescRunes), props.Text{
			Size: 7, Align: align.Center, Top: 46, Left: 2, Right: 2, Color: colorGray,
		}),
	)
}

// BoardReportPDF renders the BOM of a board with stock coverage and costs.
func (g *MarotoPDFGenerator) BoardReportPDF(_ context.Context, report ports.BoardReport) ([]byte, error) {
	label := report.BoardName + " v" + report.Version
	m := g.newDocument("BOM report " + label)

	m.AddRows(reportHeaderRow(report, label))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(summaryRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableRows(report.Lines) {
		m.AddRows(r)
	}
	if len(report.Lines) == 0 {
		m.AddRows(row.New(8).Add(col.New(gridSize).Add(
			text.New("This board has no BOM lines.", props.Text{Size: 8, Top: 2, Color: colorGray}),
		)))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate board report: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Sections ──────────────────────────────────────────────────────────────────

func reportHeaderRow(report ports.BoardReport, label string) core.Row {
	left := col.New(40).Add(
		text.New(label, props.Text{Style: fontstyle.Bold, Size: 14, Color: colorPrimary, Top: 1}),
	)
	if report.Description != "" {
		left.Add(text.New(report.Description, props.Text{Size: 8, Top: 9, Color: colorGray}))
	}
	return row.New(18).Add(
		left,
		col.New(20).Add(
			text.New("BILL OF MATERIALS", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New("Generated "+report.GeneratedAt.Format("2006-01-02 15:04 MST"), props.Text{
				Size: 7, Align: align.Right, Top: 7, Color: colorGray,
			}),
		),
	)
}

func summaryRow(report ports.BoardReport) core.Row {
	buildable := "unbounded"
	if report.Bounded {
		buildable = strconv.Itoa(report.MaxBuildable)
	}
	item := func(name, value string) core.Col {
		return col.New(gridSize/4).Add(
			text.New(name, props.Text{Size: 7, Color: colorGray, Top: 1}),
			text.New(value, props.Text{Style: fontstyle.Bold, Size: 11, Top: 5}),
		)
	}
	return row.New(14).Add(
		item("Buildable now", buildable),
		item("BOM lines", strconv.Itoa(len(report.Lines))),
		item("Cost per unit", "$"+money(report.UnitCost)),
		item("Units built", strconv.Itoa(report.TotalBuilds)),
	)
}

// tableHeaderRow: Part | Description | Per unit | In stock | Unit cost | Extended
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Top: 1.5, Color: colorPrimary,
		}))
	}
	return row.New(7).Add(
		h("Part", 10, align.Left),
		h("Description", 22, align.Left),
		h("Per unit", 6, align.Center),
		h("In stock", 6, align.Center),
		h("Unit cost", 8, align.Right),
		h("Extended", 8, align.Right),
	)
}

// tableRows: one row per BOM line; short lines are highlighted.
func tableRows(lines []ports.BoardReportLine) []core.Row {
	out := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		stock := props.Text{Size: 8, Align: align.Center, Top: 1}
		if l.Available < l.PerUnit {
			stock.Style = fontstyle.Bold
			stock.Color = colorShort
		}
		out = append(out, row.New(6).Add(
			col.New(10).Add(text.New(l.PartNumber, props.Text{Size: 8, Style: fontstyle.Bold, Top: 1})),
			col.New(22).Add(text.New(truncate(l.Description, 60), props.Text{Size: 8, Top: 1})),
			col.New(6).Add(text.New(strconv.Itoa(l.PerUnit), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(6).Add(text.New(strconv.Itoa(l.Available), stock)),
			col.New(8).Add(text.New("$"+money(l.UnitCost), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(8).Add(text.New("$"+money(l.ExtendedCost), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return out
}

// ── helpers ───────────────────────────────────────────────────────────────────

// money prints d with two decimals and comma thousands: 12345.5 → "12,345.50".
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	n := len(intPart)
	if n <= 3 {
		return sign + s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	return sign + string(buf) + frac
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
