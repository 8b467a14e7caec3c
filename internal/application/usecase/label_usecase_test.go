package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/application/usecase"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

type recordingDocs struct {
	sheet  ports.LabelSheet
	report ports.BoardReport
}

func (d *recordingDocs) LabelSheetPDF(_ context.Context, sheet ports.LabelSheet) ([]byte, error) {
	d.sheet = sheet
	return []byte("%PDF-labels"), nil
}

func (d *recordingDocs) BoardReportPDF(_ context.Context, report ports.BoardReport) ([]byte, error) {
	d.report = report
	return []byte("%PDF-report"), nil
}

type recordingQR struct {
	content string
	size    int
}

func (q *recordingQR) PNG(content string, size int) ([]byte, error) {
	q.content, q.size = content, size
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func TestLabelURLs(t *testing.T) {
	uc := usecase.NewLabelUseCase("https://inv.example.org/", nil, nil, nil, nil)

	assert.Equal(t, "https://inv.example.org/qrcode/R%2F10k", uc.QRURL("R/10k"))
	assert.Equal(t, "https://inv.example.org/dashboard/checkout?part=A+B", uc.LookupURL("A B"))
}

func TestQRPNG(t *testing.T) {
	s := newStore()
	seedParts(s)
	qr := &recordingQR{}
	uc := usecase.NewLabelUseCase("https://inv.example.org", s.Repos().Parts, nil, nil, qr)

	png, err := uc.QRPNG(context.Background(), entity.RoleMember, "PART-A", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	assert.Equal(t, "https://inv.example.org/qrcode/PART-A", qr.content)
	assert.Equal(t, usecase.DefaultQRSize, qr.size)

	_, err = uc.QRPNG(context.Background(), entity.RoleMember, "PART-S", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = uc.QRPNG(context.Background(), entity.RoleMember, "PART-A", 4096)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLabelsPDF(t *testing.T) {
	s := newStore()
	seedParts(s)
	docs := &recordingDocs{}
	uc := usecase.NewLabelUseCase("https://inv.example.org", s.Repos().Parts, nil, docs, nil)

	pdf, err := uc.LabelsPDF(context.Background(), entity.RoleMember, dto.LabelPDFRequest{PartIDs: []string{"PART-A", "PART-B"}, Columns: 9})

	require.NoError(t, err)
	assert.Equal(t, "%PDF-labels", string(pdf))
	assert.Equal(t, usecase.MaxLabelColumns, docs.sheet.Columns)
	require.Len(t, docs.sheet.Labels, 2)
	assert.Equal(t, "Driver", docs.sheet.Labels[0].Description)

	_, err = uc.LabelsPDF(context.Background(), entity.RoleMember, dto.LabelPDFRequest{PartIDs: []string{"PART-S"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBoardReportPDF(t *testing.T) {
	s := newStore()
	seedParts(s)
	s.AddBoard(entity.Board{ID: "b1", Name: "ADCS", Version: "1.0", IsActive: true},
		entity.BOMLine{PartID: "pa", QuantityRequired: 2})
	docs := &recordingDocs{}
	uc := usecase.NewLabelUseCase("", s.Repos().Parts, newBoardUC(s, nil), docs, nil)

	_, err := uc.BoardReportPDF(context.Background(), entity.RoleMember, "b1")

	require.NoError(t, err)
	assert.Equal(t, "ADCS", docs.report.BoardName)
	assert.True(t, docs.report.Bounded)
	assert.Equal(t, 2, docs.report.MaxBuildable)
	require.Len(t, docs.report.Lines, 1)
	assert.Equal(t, "PART-A", docs.report.Lines[0].PartNumber)
}

func TestClampColumns(t *testing.T) {
	assert.Equal(t, 3, usecase.ClampColumns(0))
	assert.Equal(t, 1, usecase.ClampColumns(1))
	assert.Equal(t, 5, usecase.ClampColumns(12))
}
