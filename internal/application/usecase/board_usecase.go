package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	domainbuild "github.com/stanfordssi/sats-inventory/internal/domain/build"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

// ImportedPartMinQuantity is the reorder threshold given to parts created by a BOM import.
const ImportedPartMinQuantity = 5

// BoardUseCase manages boards and their bills of materials.
type BoardUseCase struct {
	txRunner ports.TxRunner
	boards   repository.BoardRepository
	parts    repository.PartRepository
	builds   repository.BuildRepository
	decoder  ports.BOMDecoder
}

// NewBoardUseCase builds the use case.
func NewBoardUseCase(
	txRunner ports.TxRunner,
	boards repository.BoardRepository,
	parts repository.PartRepository,
	builds repository.BuildRepository,
	decoder ports.BOMDecoder,
) *BoardUseCase {
	return &BoardUseCase{txRunner: txRunner, boards: boards, parts: parts, builds: builds, decoder: decoder}
}

// Create stores a board with its BOM.
func (uc *BoardUseCase) Create(ctx context.Context, actorID, role string, in dto.CreateBoardRequest) (*dto.BoardDetailResponse, error) {
	board, err := uc.newBoard(ctx, actorID, in.Name, in.Version, in.Description)
	if err != nil {
		return nil, err
	}
	if in.FinishedPartID != "" {
		p, err := repository.ResolvePart(ctx, uc.parts, in.FinishedPartID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: finished part %s", domain.ErrNotFound, in.FinishedPartID)
		}
		board.FinishedPartID = p.ID
	}
	lines, err := uc.resolveLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	err = uc.txRunner.Run(ctx, func(r ports.Repos) error {
		if err := r.Boards.Create(ctx, board); err != nil {
			return err
		}
		return r.Boards.ReplaceLines(ctx, board.ID, lines)
	})
	if err != nil {
		return nil, err
	}
	return uc.Get(ctx, role, board.ID)
}

func (uc *BoardUseCase) newBoard(ctx context.Context, actorID, name, version, description string) (*entity.Board, error) {
	name, version = strings.TrimSpace(name), strings.TrimSpace(version)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if version == "" {
		version = entity.DefaultBoardVersion
	}
	version = strings.TrimPrefix(strings.TrimPrefix(version, "v"), "V")
	now := time.Now().UTC()
	return &entity.Board{
		ID:          uuid.New().String(),
		Name:        name,
		Version:     version,
		Description: strings.TrimSpace(description),
		IsActive:    true,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// resolveLines maps request lines onto catalog parts. A part may appear only once.
func (uc *BoardUseCase) resolveLines(ctx context.Context, in []dto.BOMLineRequest) ([]entity.BOMLine, error) {
	lines := make([]entity.BOMLine, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, l := range in {
		if l.QuantityRequired < 1 {
			return nil, fmt.Errorf("%w: line %d: quantity_required must be at least 1", domain.ErrInvalidInput, i+1)
		}
		p, err := repository.ResolvePart(ctx, uc.parts, l.PartID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: line %d: part %q does not exist", domain.ErrInvalidInput, i+1, l.PartID)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: part %s appears more than once", domain.ErrInvalidInput, p.Number)
		}
		seen[p.ID] = true
		lines = append(lines, entity.BOMLine{
			ID:               uuid.New().String(),
			PartID:           p.ID,
			QuantityRequired: l.QuantityRequired,
			Notes:            strings.TrimSpace(l.Notes),
			Position:         i,
		})
	}
	return lines, nil
}

func (uc *BoardUseCase) load(ctx context.Context, id string) (*entity.Board, error) {
	b, err := uc.boards.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// Update changes board metadata. Setting is_active=false retires the board from builds.
func (uc *BoardUseCase) Update(ctx context.Context, role, id string, in dto.UpdateBoardRequest) (*dto.BoardDetailResponse, error) {
	b, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
		}
		b.Name = strings.TrimSpace(*in.Name)
	}
	if in.Version != nil && strings.TrimSpace(*in.Version) != "" {
		b.Version = strings.TrimPrefix(strings.TrimSpace(*in.Version), "v")
	}
	if in.Description != nil {
		b.Description = strings.TrimSpace(*in.Description)
	}
	if in.FinishedPartID != nil {
		b.FinishedPartID = ""
		if ref := strings.TrimSpace(*in.FinishedPartID); ref != "" {
			p, err := repository.ResolvePart(ctx, uc.parts, ref)
			if err != nil {
				return nil, err
			}
			if p == nil {
				return nil, fmt.Errorf("%w: finished part %s", domain.ErrNotFound, ref)
			}
			b.FinishedPartID = p.ID
		}
	}
	if in.IsActive != nil {
		b.IsActive = *in.IsActive
	}
	b.UpdatedAt = time.Now().UTC()
	if err := uc.boards.Update(ctx, b); err != nil {
		return nil, err
	}
	return uc.Get(ctx, role, b.ID)
}

// Deactivate retires a board; its history stays.
func (uc *BoardUseCase) Deactivate(ctx context.Context, role, id string) (*dto.BoardDetailResponse, error) {
	inactive := false
	return uc.Update(ctx, role, id, dto.UpdateBoardRequest{IsActive: &inactive})
}

// ReplaceBOM swaps every line of the board in one transaction.
func (uc *BoardUseCase) ReplaceBOM(ctx context.Context, role, id string, in dto.ReplaceBOMRequest) (*dto.BoardDetailResponse, error) {
	if _, err := uc.load(ctx, id); err != nil {
		return nil, err
	}
	lines, err := uc.resolveLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}
	err = uc.txRunner.Run(ctx, func(r ports.Repos) error {
		return r.Boards.ReplaceLines(ctx, id, lines)
	})
	if err != nil {
		return nil, err
	}
	return uc.Get(ctx, role, id)
}

// Get returns the board with its BOM, per-line sufficiency, max buildable and unit cost.
func (uc *BoardUseCase) Get(ctx context.Context, role, id string) (*dto.BoardDetailResponse, error) {
	b, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := uc.boards.LinesWithStock(ctx, id)
	if err != nil {
		return nil, err
	}
	builds, err := uc.builds.CountByBoard(ctx, id)
	if err != nil {
		return nil, err
	}

	total, costs, unpriced := domainbuild.CostRollup(lines)
	maxN, bounded := domainbuild.MaxBuildable(lines)
	resp := &dto.BoardDetailResponse{
		BoardResponse: *toBoardResponse(b),
		Lines:         make([]dto.BOMLineResponse, 0, len(lines)),
		Ready:         domainbuild.Evaluate(lines, 1).Feasible(),
		UnitCost:      total,
		Unpriced:      unpriced,
		TotalBuilds:   builds,
	}
	if bounded {
		resp.MaxBuildable = &maxN
	}
	for i, l := range lines {
		item := dto.BOMLineResponse{
			PartID:           l.PartNumber,
			Description:      l.Description,
			QuantityRequired: l.QuantityRequired,
			Available:        l.Available,
			Sufficient:       l.Available >= l.QuantityRequired,
			UnitCost:         costs[i].UnitCost,
			ExtendedCost:     costs[i].ExtendedCost,
			Notes:            l.Notes,
		}
		if l.IsSensitive && role != entity.RoleAdmin {
			item.Description = entity.Restricted
		}
		resp.Lines = append(resp.Lines, item)
	}
	return resp, nil
}

// List returns active boards, or every board when includeInactive is set.
func (uc *BoardUseCase) List(ctx context.Context, includeInactive bool) ([]dto.BoardResponse, error) {
	list, err := uc.boards.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	out := make([]dto.BoardResponse, 0, len(list))
	for _, b := range list {
		out = append(out, *toBoardResponse(b))
	}
	return out, nil
}

// Delete removes a board that was never built (admin only).
func (uc *BoardUseCase) Delete(ctx context.Context, role, id string) error {
	if role != entity.RoleAdmin {
		return domain.ErrForbidden
	}
	b, err := uc.load(ctx, id)
	if err != nil {
		return err
	}
	n, err := uc.builds.CountByBoard(ctx, b.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s has %d builds, deactivate it instead", domain.ErrConflict, b.Label(), n)
	}
	return uc.boards.Delete(ctx, b.ID)
}

// DetectBOMFormat picks the decoder format from an explicit value or the file name.
func DetectBOMFormat(format, filename string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case ports.BOMFormatCSV:
		return ports.BOMFormatCSV
	case ports.BOMFormatKiCadXML, "xml":
		return ports.BOMFormatKiCadXML
	}
	if strings.EqualFold(filepath.Ext(filename), ".xml") {
		return ports.BOMFormatKiCadXML
	}
	return ports.BOMFormatCSV
}

// importPlan is a decoded BOM matched against the catalog.
type importPlan struct {
	lines   []dto.ImportLineDTO
	matched map[int]*entity.Part // index in lines → existing part
}

func (uc *BoardUseCase) plan(ctx context.Context, format string, data []byte) (*importPlan, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty BOM file", domain.ErrInvalidInput)
	}
	rows, err := uc.decoder.Decode(format, data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: BOM has no rows", domain.ErrInvalidInput)
	}

	p := &importPlan{matched: map[int]*entity.Part{}}
	for _, row := range rows {
		part, err := uc.match(ctx, row)
		if err != nil {
			return nil, err
		}
		line := dto.ImportLineDTO{
			References: row.References,
			Value:      row.Value,
			Footprint:  row.Footprint,
			Quantity:   row.Quantity,
		}
		if part != nil {
			line.PartID, line.Description, line.Matched = part.Number, part.Description, true
			p.matched[len(p.lines)] = part
		} else {
			line.PartID = newPartCode(row)
			line.Description = row.Description
			if line.Description == "" {
				line.Description = strings.TrimSpace(row.Value + " " + row.Footprint)
			}
		}
		p.lines = append(p.lines, line)
	}
	return p, nil
}

// match finds the catalog part for a row: explicit part code first, then value or footprint.
func (uc *BoardUseCase) match(ctx context.Context, row ports.ImportedLine) (*entity.Part, error) {
	if row.PartNumber != "" {
		p, err := uc.parts.GetByNumber(ctx, row.PartNumber)
		if err != nil || p != nil {
			return p, err
		}
	}
	if row.Value == "" && row.Footprint == "" {
		return nil, nil
	}
	return uc.parts.FindByValueOrFootprint(ctx, row.Value, row.Footprint)
}

func newPartCode(row ports.ImportedLine) string {
	if row.PartNumber != "" {
		return row.PartNumber
	}
	if row.Value != "" {
		return row.Value
	}
	return row.Footprint
}

// PreviewImport parses a BOM and reports how it would be matched, without writing.
func (uc *BoardUseCase) PreviewImport(ctx context.Context, format string, data []byte) (*dto.ImportPreviewResponse, error) {
	p, err := uc.plan(ctx, format, data)
	if err != nil {
		return nil, err
	}
	resp := &dto.ImportPreviewResponse{Lines: p.lines}
	for _, l := range p.lines {
		if l.Matched {
			resp.Matched++
		} else {
			resp.ToCreate++
		}
	}
	return resp, nil
}

// ImportBOM creates a board from a BOM export. Unmatched rows become new parts with zero
// stock; the board, its lines and the new parts are written in one transaction.
func (uc *BoardUseCase) ImportBOM(ctx context.Context, actorID, role string, in dto.ImportBOMRequest, data []byte) (*dto.ImportResultResponse, error) {
	board, err := uc.newBoard(ctx, actorID, in.Name, in.Version, in.Description)
	if err != nil {
		return nil, err
	}
	p, err := uc.plan(ctx, in.Format, data)
	if err != nil {
		return nil, err
	}

	var created []string
	err = uc.txRunner.Run(ctx, func(r ports.Repos) error {
		created = created[:0]
		byCode := map[string]*entity.Part{}
		order := []string{}
		qty := map[string]int{}

		for i, l := range p.lines {
			part := p.matched[i]
			if part == nil {
				key := strings.ToLower(l.PartID)
				if part = byCode[key]; part == nil {
					if l.PartID == "" {
						return fmt.Errorf("%w: row %d has no value, footprint or part code", domain.ErrInvalidInput, i+1)
					}
					existing, err := r.Parts.GetByNumber(ctx, l.PartID)
					if err != nil {
						return err
					}
					if existing != nil {
						byCode[key] = existing
						part = existing
					}
				}
				if part == nil {
					now := time.Now().UTC()
					part = &entity.Part{
						ID:          uuid.New().String(),
						Number:      l.PartID,
						Description: l.Description,
						Value:       l.Value,
						Footprint:   l.Footprint,
						MinQuantity: ImportedPartMinQuantity,
						UnitCost:    decimal.Zero,
						CreatedAt:   now,
						UpdatedAt:   now,
					}
					if err := r.Parts.Create(ctx, part); err != nil {
						return fmt.Errorf("create part %s: %w", l.PartID, err)
					}
					byCode[key] = part
					created = append(created, part.Number)
				}
			}
			if _, ok := qty[part.ID]; !ok {
				order = append(order, part.ID)
			}
			n := l.Quantity
			if n < 1 {
				n = 1
			}
			qty[part.ID] += n
		}

		lines := make([]entity.BOMLine, 0, len(order))
		for i, id := range order {
			lines = append(lines, entity.BOMLine{
				ID:               uuid.New().String(),
				PartID:           id,
				QuantityRequired: qty[id],
				Position:         i,
			})
		}
		if err := r.Boards.Create(ctx, board); err != nil {
			return err
		}
		return r.Boards.ReplaceLines(ctx, board.ID, lines)
	})
	if err != nil {
		return nil, err
	}

	detail, err := uc.Get(ctx, role, board.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = []string{}
	}
	return &dto.ImportResultResponse{Board: *detail, CreatedParts: created}, nil
}

// Report assembles the data of the printable board sheet.
func (uc *BoardUseCase) Report(ctx context.Context, role, id string) (*ports.BoardReport, error) {
	detail, err := uc.Get(ctx, role, id)
	if err != nil {
		return nil, err
	}
	report := &ports.BoardReport{
		BoardName:   detail.Name,
		Version:     detail.Version,
		Description: detail.Description,
		GeneratedAt: time.Now(),
		UnitCost:    detail.UnitCost,
		TotalBuilds: detail.TotalBuilds,
	}
	if detail.MaxBuildable != nil {
		report.MaxBuildable, report.Bounded = *detail.MaxBuildable, true
	}
	for _, l := range detail.Lines {
		report.Lines = append(report.Lines, ports.BoardReportLine{
			PartNumber:   l.PartID,
			Description:  l.Description,
			PerUnit:      l.QuantityRequired,
			Available:    l.Available,
			UnitCost:     l.UnitCost,
			ExtendedCost: l.ExtendedCost,
		})
	}
	return report, nil
}

func toBoardResponse(b *entity.Board) *dto.BoardResponse {
	return &dto.BoardResponse{
		ID:             b.ID,
		Name:           b.Name,
		Version:        b.Version,
		Description:    b.Description,
		IsActive:       b.IsActive,
		FinishedPartID: b.FinishedPartID,
		CreatedBy:      b.CreatedBy,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}
