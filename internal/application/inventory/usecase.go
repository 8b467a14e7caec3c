package inventory

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
	"github.com/stanfordssi/sats-inventory/internal/domain/ledger"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
	"github.com/stanfordssi/sats-inventory/pkg/logger"
)

// LedgerUseCase applies stock movements. Each movement locks the part row, changes the
// stored quantity and writes the matching transaction inside one database transaction.
// There is no non-transactional path.
type LedgerUseCase struct {
	txRunner ports.TxRunner
	parts    repository.PartRepository
	txs      repository.TransactionRepository
	users    repository.UserRepository
	metrics  ports.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewLedgerUseCase builds the use case.
func NewLedgerUseCase(
	txRunner ports.TxRunner,
	parts repository.PartRepository,
	txs repository.TransactionRepository,
	users repository.UserRepository,
	metrics ports.Metrics,
	log *logger.Logger,
) *LedgerUseCase {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LedgerUseCase{
		txRunner: txRunner,
		parts:    parts,
		txs:      txs,
		users:    users,
		metrics:  metrics,
		log:      log.Named("ledger"),
		now:      time.Now,
	}
}

// movement is a validated request ready to be applied.
type movement struct {
	actorID  string
	part     *entity.Part
	txType   string
	delta    int
	notes    string
	unitCost *decimal.Decimal
}

// AddStock restocks a part (admin only). A unit cost, when given, is blended into the
// part's weighted average cost.
func (uc *LedgerUseCase) AddStock(ctx context.Context, actorID, role string, in dto.StockMovementRequest) (*dto.MovementResponse, error) {
	if role != entity.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: unit_cost must not be negative", domain.ErrInvalidInput)
	}
	m, err := uc.prepare(ctx, actorID, role, in.PartID, in.Quantity, in.Notes)
	if err != nil {
		return nil, err
	}
	m.txType, m.unitCost = entity.TxTypeAddition, in.UnitCost
	return uc.apply(ctx, m)
}

// Checkout takes parts out temporarily.
func (uc *LedgerUseCase) Checkout(ctx context.Context, actorID, role string, in dto.StockMovementRequest) (*dto.MovementResponse, error) {
	m, err := uc.prepare(ctx, actorID, role, in.PartID, in.Quantity, in.Notes)
	if err != nil {
		return nil, err
	}
	m.txType, m.delta = entity.TxTypeCheckout, -m.delta
	return uc.apply(ctx, m)
}

// Return brings checked-out parts back. The quantity may not exceed what the caller
// still holds of the part.
func (uc *LedgerUseCase) Return(ctx context.Context, actorID, role string, in dto.StockMovementRequest) (*dto.MovementResponse, error) {
	m, err := uc.prepare(ctx, actorID, role, in.PartID, in.Quantity, in.Notes)
	if err != nil {
		return nil, err
	}
	m.txType = entity.TxTypeReturn
	return uc.apply(ctx, m)
}

// Consume records permanent use of parts outside a board build.
func (uc *LedgerUseCase) Consume(ctx context.Context, actorID, role string, in dto.StockMovementRequest) (*dto.MovementResponse, error) {
	m, err := uc.prepare(ctx, actorID, role, in.PartID, in.Quantity, in.Notes)
	if err != nil {
		return nil, err
	}
	m.txType, m.delta = entity.TxTypeConsumption, -m.delta
	return uc.apply(ctx, m)
}

// Adjust corrects the stock by a signed delta (admin only, notes required).
func (uc *LedgerUseCase) Adjust(ctx context.Context, actorID, role string, in dto.AdjustStockRequest) (*dto.MovementResponse, error) {
	if role != entity.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	if in.Delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Notes) == "" {
		return nil, fmt.Errorf("%w: notes are required for adjustments", domain.ErrInvalidInput)
	}
	size := in.Delta
	if size < 0 {
		size = -size
	}
	m, err := uc.prepare(ctx, actorID, role, in.PartID, size, in.Notes)
	if err != nil {
		return nil, err
	}
	m.txType, m.delta = entity.TxTypeAdjustment, in.Delta
	return uc.apply(ctx, m)
}

func (uc *LedgerUseCase) prepare(ctx context.Context, actorID, role, partRef string, quantity int, notes string) (*movement, error) {
	if strings.TrimSpace(partRef) == "" {
		return nil, fmt.Errorf("%w: part_id is required", domain.ErrInvalidInput)
	}
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
	}
	actor, err := uc.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, domain.ErrUnauthorized
	}
	part, err := repository.ResolvePart(ctx, uc.parts, partRef)
	if err != nil {
		return nil, err
	}
	if part == nil || !part.VisibleTo(role) {
		return nil, domain.ErrNotFound
	}
	return &movement{actorID: actor.ID, part: part, delta: quantity, notes: strings.TrimSpace(notes)}, nil
}

// apply runs one movement atomically.
func (uc *LedgerUseCase) apply(ctx context.Context, m *movement) (*dto.MovementResponse, error) {
	txID := uuid.New().String()
	var after int

	err := uc.txRunner.Run(ctx, func(r ports.Repos) error {
		// SELECT ... FOR UPDATE: concurrent movements on this part wait here
		locked, err := r.Parts.GetForUpdate(ctx, m.part.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrNotFound
		}

		switch {
		case m.delta < 0 && locked.Quantity < -m.delta:
			return &domain.InsufficientStockError{Shortfalls: []domain.Shortfall{{
				PartID:      locked.ID,
				PartNumber:  locked.Number,
				Description: locked.Description,
				Required:    -m.delta,
				Available:   locked.Quantity,
			}}}
		case m.txType == entity.TxTypeReturn:
			history, err := r.Transactions.CheckoutsAndReturns(ctx, m.actorID, locked.ID)
			if err != nil {
				return err
			}
			if held := ledger.OutstandingFor(history, m.actorID, locked.ID); m.delta > held {
				return fmt.Errorf("%w: returning %d but only %d checked out", domain.ErrInvalidInput, m.delta, held)
			}
		case m.txType == entity.TxTypeAddition && m.unitCost != nil:
			cost := ledger.WeightedAverageCost(locked.Quantity, locked.UnitCost, m.delta, *m.unitCost)
			if err := r.Parts.UpdateUnitCost(ctx, locked.ID, cost); err != nil {
				return err
			}
		}

		after, err = r.Parts.ApplyDelta(ctx, locked.ID, m.delta)
		if err != nil {
			return err
		}
		return r.Transactions.Create(ctx, &entity.Transaction{
			ID:        txID,
			PartID:    locked.ID,
			UserID:    m.actorID,
			Type:      m.txType,
			Quantity:  m.delta,
			Notes:     m.notes,
			Timestamp: uc.now().UTC(),
		})
	})
	if err != nil {
		uc.log.For(ctx).Warn().Err(err).
			Str("part", m.part.Number).
			Str("type", m.txType).
			Int("delta", m.delta).
			Str("actor_id", m.actorID).
			Msg("stock movement rejected")
		return nil, err
	}

	units := m.delta
	if units < 0 {
		units = -units
	}
	uc.metrics.LedgerWritten(m.txType, units)
	uc.log.For(ctx).Info().
		Str("transaction_id", txID).
		Str("part", m.part.Number).
		Str("type", m.txType).
		Int("delta", m.delta).
		Int("quantity", after).
		Msg("stock movement applied")

	return &dto.MovementResponse{
		TransactionID: txID,
		PartID:        m.part.Number,
		Type:          m.txType,
		Delta:         m.delta,
		Quantity:      after,
		Message:       movementMessage(m.txType, m.delta, m.part.Number),
	}, nil
}

func movementMessage(txType string, delta int, number string) string {
	switch txType {
	case entity.TxTypeAddition:
		return fmt.Sprintf("Added %d × %s", delta, number)
	case entity.TxTypeCheckout:
		return fmt.Sprintf("Checked out %d × %s", -delta, number)
	case entity.TxTypeReturn:
		return fmt.Sprintf("Returned %d × %s", delta, number)
	case entity.TxTypeConsumption:
		return fmt.Sprintf("Consumed %d × %s", -delta, number)
	}
	return fmt.Sprintf("Adjusted %s by %+d", number, delta)
}

// Outstanding lists what users still hold. An empty userID means everyone.
func (uc *LedgerUseCase) Outstanding(ctx context.Context, userID string) ([]dto.OutstandingDTO, error) {
	history, err := uc.txs.CheckoutsAndReturns(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	rows := ledger.NetOutstanding(history)
	out := make([]dto.OutstandingDTO, 0, len(rows))
	names := map[string]string{}
	for _, o := range rows {
		part, err := uc.parts.GetByID(ctx, o.PartID)
		if err != nil {
			return nil, err
		}
		item := dto.OutstandingDTO{
			UserID:         o.UserID,
			PartID:         o.PartID,
			Quantity:       o.Quantity,
			LastCheckoutAt: o.LastCheckoutAt,
		}
		if part != nil {
			item.PartID, item.Description = part.Number, part.Description
		}
		name, ok := names[o.UserID]
		if !ok {
			if u, err := uc.users.GetByID(ctx, o.UserID); err == nil && u != nil {
				name = u.Name
			}
			names[o.UserID] = name
		}
		item.UserName = name
		out = append(out, item)
	}
	return out, nil
}

// MyItems is Outstanding for the caller.
func (uc *LedgerUseCase) MyItems(ctx context.Context, actorID string) ([]dto.OutstandingDTO, error) {
	if actorID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.Outstanding(ctx, actorID)
}

// Transactions lists the ledger with filters.
func (uc *LedgerUseCase) Transactions(ctx context.Context, role string, req dto.TransactionListRequest) (*dto.TransactionListResponse, error) {
	req.DefaultPage()
	if req.Type != "" && !entity.ValidTxType(req.Type) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", domain.ErrInvalidInput, req.Type)
	}
	filter := repository.TransactionFilter{
		UserID:  req.UserID,
		Type:    req.Type,
		BuildID: req.BuildID,
		Limit:   req.Limit,
		Offset:  req.Offset,
	}
	if req.PartID != "" {
		part, err := repository.ResolvePart(ctx, uc.parts, req.PartID)
		if err != nil {
			return nil, err
		}
		if part == nil || !part.VisibleTo(role) {
			return nil, domain.ErrNotFound
		}
		filter.PartID = part.ID
	}
	var err error
	if filter.Since, err = parseTime(req.Since); err != nil {
		return nil, err
	}
	if filter.Until, err = parseTime(req.Until); err != nil {
		return nil, err
	}

	views, total, err := uc.txs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.TransactionResponse, 0, len(views))
	for _, v := range views {
		items = append(items, dto.TransactionResponse{
			ID:          v.ID,
			PartID:      v.PartNumber,
			Description: v.PartDescription,
			UserID:      v.UserID,
			UserName:    v.UserName,
			Type:        v.Type,
			Quantity:    v.Quantity,
			Notes:       v.Notes,
			BuildID:     v.BuildID,
			Timestamp:   v.Timestamp,
		})
	}
	return &dto.TransactionListResponse{
		Items: items,
		Page:  req.Of(total),
	}, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid date %q", domain.ErrInvalidInput, s)
}
