package pdf

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
)

func TestLabelSheetPDF(t *testing.T) {
	g := NewMarotoPDFGenerator("SSI")
	labels := make([]ports.Label, 0, 13)
	for i := 1; i <= 13; i++ {
		code := fmt.Sprintf("01-%04d", i)
		labels = append(labels, ports.Label{
			PartNumber:  code,
			Description: "0402 resistor, 1% thin film, long enough to wrap onto a second line",
			QRContent:   "https://inv.example.org/qrcode/" + code,
		})
	}

	for cols := 1; cols <= 5; cols++ {
		doc, err := g.LabelSheetPDF(context.Background(), ports.LabelSheet{Title: "Bin A", Columns: cols, Labels: labels})
		require.NoError(t, err, "columns=%d", cols)
		assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")), "columns=%d", cols)
	}
}

func TestLabelSheetPDF_RejectsColumnCount(t *testing.T) {
	g := NewMarotoPDFGenerator("SSI")

	_, err := g.LabelSheetPDF(context.Background(), ports.LabelSheet{Columns: 6})

	assert.Error(t, err)
}

func TestBoardReportPDF(t *testing.T) {
	g := NewMarotoPDFGenerator("SSI")

	doc, err := g.BoardReportPDF(context.Background(), ports.BoardReport{
		BoardName:    "ADCS",
		Version:      "1.0",
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		MaxBuildable: 2,
		Bounded:      true,
		UnitCost:     decimal.RequireFromString("1234.5"),
		Lines: []ports.BoardReportLine{
			{PartNumber: "01-0001", Description: "MCU", PerUnit: 1, Available: 2, UnitCost: decimal.RequireFromString("1234.5"), ExtendedCost: decimal.RequireFromString("1234.5")},
			{PartNumber: "01-0002", Description: "IMU", PerUnit: 2, Available: 1},
		},
	})

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "0.00", money(decimal.Zero))
	assert.Equal(t, "999.90", money(decimal.RequireFromString("999.9")))
	assert.Equal(t, "12,345.50", money(decimal.RequireFromString("12345.5")))
	assert.Equal(t, "-1,000,000.00", money(decimal.NewFromInt(-1000000)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
