package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/parts"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

// PartUseCase is the parts catalog. Quantity and cost only change through the ledger;
// the opening stock of a new part is recorded as an addition.
type PartUseCase struct {
	txRunner ports.TxRunner
	repo     repository.PartRepository
	txs      repository.TransactionRepository
}

// NewPartUseCase builds the use case.
func NewPartUseCase(txRunner ports.TxRunner, repo repository.PartRepository, txs repository.TransactionRepository) *PartUseCase {
	return &PartUseCase{txRunner: txRunner, repo: repo, txs: txs}
}

// Create adds a part to the catalog (admin only).
func (uc *PartUseCase) Create(ctx context.Context, actorID, role string, in dto.CreatePartRequest) (*dto.PartResponse, error) {
	if role != entity.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	in.PartID = strings.TrimSpace(in.PartID)
	in.Description = strings.TrimSpace(in.Description)
	if in.PartID == "" || in.Description == "" {
		return nil, fmt.Errorf("%w: part_id and description are required", domain.ErrInvalidInput)
	}
	if strings.HasPrefix(in.PartID, entity.QRPrefix) {
		return nil, fmt.Errorf("%w: part_id must not start with %s", domain.ErrInvalidInput, entity.QRPrefix)
	}
	if in.Quantity < 0 || in.MinQuantity < 0 {
		return nil, fmt.Errorf("%w: quantities must not be negative", domain.ErrInvalidInput)
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: unit_cost must not be negative", domain.ErrInvalidInput)
	}
	if err := uc.checkCode(ctx, in.PartID); err != nil {
		return nil, err
	}
	existing, err := uc.repo.GetByNumber(ctx, in.PartID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}

	now := time.Now().UTC()
	part := &entity.Part{
		ID:          uuid.New().String(),
		Number:      in.PartID,
		Description: in.Description,
		BinID:       strings.TrimSpace(in.BinID),
		BinLocation: strings.TrimSpace(in.BinLocation),
		MinQuantity: in.MinQuantity,
		Link:        strings.TrimSpace(in.Link),
		Value:       strings.TrimSpace(in.Value),
		Footprint:   strings.TrimSpace(in.Footprint),
		IsSensitive: in.IsSensitive,
		UnitCost:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.UnitCost != nil {
		part.UnitCost = *in.UnitCost
	}

	err = uc.txRunner.Run(ctx, func(r ports.Repos) error {
		if err := r.Parts.Create(ctx, part); err != nil {
			return err
		}
		if in.Quantity == 0 {
			return nil
		}
		qty, err := r.Parts.ApplyDelta(ctx, part.ID, in.Quantity)
		if err != nil {
			return err
		}
		part.Quantity = qty
		return r.Transactions.Create(ctx, &entity.Transaction{
			ID:        uuid.New().String(),
			PartID:    part.ID,
			UserID:    actorID,
			Type:      entity.TxTypeAddition,
			Quantity:  in.Quantity,
			Notes:     "Initial stock",
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return toPartResponse(part), nil
}

// checkCode enforces the internal NN-NNNN[vX.Y] numbering when the code uses it.
func (uc *PartUseCase) checkCode(ctx context.Context, code string) error {
	c, ok := parts.ParseInternal(code)
	if !ok {
		return nil
	}
	existing, err := uc.repo.ListNumbers(ctx, c.Subassembly+"-")
	if err != nil {
		return err
	}
	return parts.ValidateNew(code, existing)
}

// Get returns a part by id or code. Sensitive parts are not found for non-admins.
func (uc *PartUseCase) Get(ctx context.Context, role, ref string) (*dto.PartResponse, error) {
	p, err := uc.find(ctx, role, ref)
	if err != nil {
		return nil, err
	}
	return toPartResponse(p), nil
}

func (uc *PartUseCase) find(ctx context.Context, role, ref string) (*entity.Part, error) {
	p, err := repository.ResolvePart(ctx, uc.repo, ref)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.VisibleTo(role) {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Update changes catalog fields (admin only).
func (uc *PartUseCase) Update(ctx context.Context, role, ref string, in dto.UpdatePartRequest) (*dto.PartResponse, error) {
	if role != entity.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	p, err := uc.find(ctx, role, ref)
	if err != nil {
		return nil, err
	}
	if in.PartID != nil {
		code := strings.TrimSpace(*in.PartID)
		if code == "" || strings.HasPrefix(code, entity.QRPrefix) {
			return nil, fmt.Errorf("%w: invalid part_id", domain.ErrInvalidInput)
		}
		if !strings.EqualFold(code, p.Number) {
			if err := uc.checkCode(ctx, code); err != nil {
				return nil, err
			}
		}
		p.Number = code
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
		}
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.BinID != nil {
		p.BinID = strings.TrimSpace(*in.BinID)
	}
	if in.BinLocation != nil {
		p.BinLocation = strings.TrimSpace(*in.BinLocation)
	}
	if in.MinQuantity != nil {
		if *in.MinQuantity < 0 {
			return nil, fmt.Errorf("%w: min_quantity must not be negative", domain.ErrInvalidInput)
		}
		p.MinQuantity = *in.MinQuantity
	}
	if in.Link != nil {
		p.Link = strings.TrimSpace(*in.Link)
	}
	if in.Value != nil {
		p.Value = strings.TrimSpace(*in.Value)
	}
	if in.Footprint != nil {
		p.Footprint = strings.TrimSpace(*in.Footprint)
	}
	if in.IsSensitive != nil {
		p.IsSensitive = *in.IsSensitive
	}
	p.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return toPartResponse(p), nil
}

// List lists visible parts with search, low-stock filter and pagination.
func (uc *PartUseCase) List(ctx context.Context, role string, req dto.PartListRequest) (*dto.PartListResponse, error) {
	req.DefaultPage()
	list, total, err := uc.repo.List(ctx, repository.PartFilter{
		Search:           strings.TrimSpace(req.Search),
		BinID:            req.BinID,
		LowStockOnly:     req.LowStock,
		IncludeSensitive: role == entity.RoleAdmin,
		Limit:            req.Limit,
		Offset:           req.Offset,
	})
	if err != nil {
		return nil, err
	}
	items := make([]dto.PartResponse, 0, len(list))
	for _, p := range list {
		items = append(items, *toPartResponse(p))
	}
	return &dto.PartListResponse{
		Items: items,
		Page:  req.Of(total),
	}, nil
}

// Delete removes a part that no BOM references and that has no ledger history (admin only).
func (uc *PartUseCase) Delete(ctx context.Context, role, ref string) error {
	if role != entity.RoleAdmin {
		return domain.ErrForbidden
	}
	p, err := uc.find(ctx, role, ref)
	if err != nil {
		return err
	}
	referenced, err := uc.repo.IsReferenced(ctx, p.ID)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: %s is used by a board", domain.ErrConflict, p.Number)
	}
	n, err := uc.txs.CountByPart(ctx, p.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s has %d transactions", domain.ErrConflict, p.Number, n)
	}
	return uc.repo.Delete(ctx, p.ID)
}

// NextCode proposes the next free internal code of a subassembly.
func (uc *PartUseCase) NextCode(ctx context.Context, subassembly string) (*dto.NextCodeResponse, error) {
	subassembly = strings.TrimSpace(subassembly)
	if !parts.ValidSubassembly(subassembly) {
		return nil, fmt.Errorf("%w: subassembly must be two digits", domain.ErrInvalidInput)
	}
	existing, err := uc.repo.ListNumbers(ctx, subassembly+"-")
	if err != nil {
		return nil, err
	}
	code, err := parts.Next(subassembly, existing)
	if err != nil {
		return nil, err
	}
	return &dto.NextCodeResponse{Subassembly: subassembly, PartID: code}, nil
}

func toPartResponse(p *entity.Part) *dto.PartResponse {
	if p == nil {
		return nil
	}
	return &dto.PartResponse{
		ID:          p.ID,
		PartID:      p.Number,
		Description: p.Description,
		BinID:       p.BinID,
		BinLocation: p.BinLocation,
		Quantity:    p.Quantity,
		MinQuantity: p.MinQuantity,
		LowStock:    p.IsLowStock(),
		Link:        p.Link,
		Value:       p.Value,
		Footprint:   p.Footprint,
		IsSensitive: p.IsSensitive,
		UnitCost:    p.UnitCost,
		QRCode:      p.QRCode(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
