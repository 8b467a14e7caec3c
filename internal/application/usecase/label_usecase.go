package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

// Label sheet limits.
const (
	DefaultLabelColumns = 3
	MaxLabelColumns     = 5
	MaxLabelsPerSheet   = 500
	DefaultQRSize       = 256
)

// LabelUseCase renders QR codes, label sheets and board reports.
type LabelUseCase struct {
	baseURL string
	parts   repository.PartRepository
	boards  *BoardUseCase
	docs    ports.DocumentGenerator
	qr      ports.QREncoder
}

// NewLabelUseCase builds the use case. baseURL is the public address QR codes point to.
func NewLabelUseCase(baseURL string, parts repository.PartRepository, boards *BoardUseCase, docs ports.DocumentGenerator, qr ports.QREncoder) *LabelUseCase {
	return &LabelUseCase{baseURL: strings.TrimRight(baseURL, "/"), parts: parts, boards: boards, docs: docs, qr: qr}
}

// QRURL is the link encoded in a part's QR label.
func (uc *LabelUseCase) QRURL(partNumber string) string {
	return uc.baseURL + "/qrcode/" + url.PathEscape(partNumber)
}

// LookupURL is where a scanned QR link sends the browser.
func (uc *LabelUseCase) LookupURL(partNumber string) string {
	return uc.baseURL + "/dashboard/checkout?part=" + url.QueryEscape(partNumber)
}

// QRPNG renders the QR code of one part.
func (uc *LabelUseCase) QRPNG(ctx context.Context, role, ref string, size int) ([]byte, error) {
	p, err := repository.ResolvePart(ctx, uc.parts, ref)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.VisibleTo(role) {
		return nil, domain.ErrNotFound
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	if size < 64 || size > 1024 {
		return nil, fmt.Errorf("%w: size must be between 64 and 1024", domain.ErrInvalidInput)
	}
	return uc.qr.PNG(uc.QRURL(p.Number), size)
}

// LabelsPDF renders a printable sheet of QR labels.
func (uc *LabelUseCase) LabelsPDF(ctx context.Context, role string, in dto.LabelPDFRequest) ([]byte, error) {
	if len(in.PartIDs) == 0 {
		return nil, fmt.Errorf("%w: part_ids is required", domain.ErrInvalidInput)
	}
	if len(in.PartIDs) > MaxLabelsPerSheet {
		return nil, fmt.Errorf("%w: at most %d labels per request", domain.ErrInvalidInput, MaxLabelsPerSheet)
	}
	sheet := ports.LabelSheet{Title: strings.TrimSpace(in.Title), Columns: ClampColumns(in.Columns)}
	for _, ref := range in.PartIDs {
		p, err := repository.ResolvePart(ctx, uc.parts, ref)
		if err != nil {
			return nil, err
		}
		if p == nil || !p.VisibleTo(role) {
			return nil, fmt.Errorf("%w: part %s", domain.ErrNotFound, ref)
		}
		sheet.Labels = append(sheet.Labels, ports.Label{
			PartNumber:  p.Number,
			Description: p.Description,
			QRContent:   uc.QRURL(p.Number),
		})
	}
	return uc.docs.LabelSheetPDF(ctx, sheet)
}

// BoardReportPDF renders the BOM and readiness sheet of a board.
func (uc *LabelUseCase) BoardReportPDF(ctx context.Context, role, boardID string) ([]byte, error) {
	report, err := uc.boards.Report(ctx, role, boardID)
	if err != nil {
		return nil, err
	}
	return uc.docs.BoardReportPDF(ctx, *report)
}

// ClampColumns keeps a label column count within 1..5, defaulting to 3.
func ClampColumns(n int) int {
	switch {
	case n <= 0:
		return DefaultLabelColumns
	case n > MaxLabelColumns:
		return MaxLabelColumns
	}
	return n
}
