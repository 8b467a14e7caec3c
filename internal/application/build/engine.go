// Package build runs board builds: it checks a board's bill of materials against live
// stock and, when every part is covered, consumes the parts, writes one consumption
// transaction per part and one build record as a single atomic unit.
package build

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	domainbuild "github.com/stanfordssi/sats-inventory/internal/domain/build"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
	"github.com/stanfordssi/sats-inventory/pkg/logger"
)

// Failure kinds reported to callers.
const (
	KindBoardNotFound      = "BoardNotFound"
	KindInsufficientStock  = "InsufficientStock"
	KindConcurrentConflict = "ConcurrentConflict"
	KindPersistenceFailure = "PersistenceFailure"
	KindInvalidInput       = "InvalidInput"
	KindDuplicateRequest   = "DuplicateRequest"
)

const defaultTimeout = 10 * time.Second

// Input of a build request.
type Input struct {
	BoardID    string
	Quantity   int
	ActorID    string
	Notes      string
	RequestKey string // optional; a second build with the same key is refused
}

// Result of a successful build.
type Result struct {
	BuildID  string
	BoardID  string
	Board    string
	Quantity int
	Consumed []domainbuild.Consumption
	Message  string
	BuiltAt  time.Time
}

// Feasibility is the read-only answer to "can this board be built right now".
type Feasibility struct {
	BoardID      string
	Board        string
	Quantity     int
	CanBuild     bool
	MaxBuildable int
	Bounded      bool
	Requirements []domainbuild.Consumption
	Shortfalls   []domain.Shortfall
}

// DuplicateBuildError is returned when RequestKey already produced a build.
type DuplicateBuildError struct {
	BuildID string
}

func (e *DuplicateBuildError) Error() string {
	return fmt.Sprintf("request already fulfilled by build %s", e.BuildID)
}

func (e *DuplicateBuildError) Unwrap() error { return domain.ErrDuplicate }

// Engine executes board builds.
type Engine struct {
	txRunner ports.TxRunner
	boards   repository.BoardRepository
	users    repository.UserRepository
	builds   repository.BuildRepository
	metrics  ports.Metrics
	log      *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewEngine builds the engine. A zero timeout falls back to 10s.
func NewEngine(
	txRunner ports.TxRunner,
	boards repository.BoardRepository,
	users repository.UserRepository,
	builds repository.BuildRepository,
	metrics ports.Metrics,
	log *logger.Logger,
	timeout time.Duration,
) *Engine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		txRunner: txRunner,
		boards:   boards,
		users:    users,
		builds:   builds,
		metrics:  metrics,
		log:      log.Named("build"),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Check evaluates feasibility from one consistent read without changing anything.
// Shortfalls on sensitive parts are redacted unless role is admin.
func (e *Engine) Check(ctx context.Context, boardID string, quantity int, role string) (*Feasibility, error) {
	if boardID == "" || quantity < 1 || quantity > domainbuild.MaxQuantity {
		return nil, fmt.Errorf("%w: board and a quantity between 1 and %d are required", domain.ErrInvalidInput, domainbuild.MaxQuantity)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	board, lines, err := e.loadBoard(ctx, e.boards, boardID)
	if err != nil {
		return nil, persistence(err)
	}
	plan := domainbuild.Evaluate(lines, quantity)
	maxN, bounded := domainbuild.MaxBuildable(lines)

	requirements := make([]domainbuild.Consumption, 0, len(lines))
	for _, l := range lines {
		requirements = append(requirements, domainbuild.Consumption{
			PartID:     l.PartID,
			PartNumber: l.PartNumber,
			Units:      l.QuantityRequired * quantity,
		})
	}
	return &Feasibility{
		BoardID:      board.ID,
		Board:        board.Label(),
		Quantity:     quantity,
		CanBuild:     plan.Feasible(),
		MaxBuildable: maxN,
		Bounded:      bounded,
		Requirements: requirements,
		Shortfalls:   domainbuild.Redact(plan.Shortfalls, role),
	}, nil
}

// Build runs one build. Errors are classified so that errors.Is matches exactly one of
// ErrInvalidInput, ErrBoardNotFound, ErrInsufficientStock, ErrConcurrentConflict,
// ErrPersistenceFailure or ErrDuplicate. No error leaves any part partially consumed.
func (e *Engine) Build(ctx context.Context, in Input) (*Result, error) {
	start := e.now()
	res, err := e.build(ctx, in)
	elapsed := e.now().Sub(start)
	e.metrics.BuildFinished(ResultLabel(err), in.Quantity, elapsed)

	log := e.log.For(ctx)
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, domain.ErrPersistenceFailure) {
			ev = log.Error()
		}
		ev.Err(err).
			Str("board_id", in.BoardID).
			Str("actor_id", in.ActorID).
			Int("quantity", in.Quantity).
			Str("kind", Kind(err)).
			Msg("build rejected")
		return nil, err
	}

	units := 0
	for _, c := range res.Consumed {
		units += c.Units
	}
	e.metrics.PartsConsumed(units)
	log.Info().
		Str("build_id", res.BuildID).
		Str("board_id", res.BoardID).
		Str("actor_id", in.ActorID).
		Int("quantity", res.Quantity).
		Int("parts", len(res.Consumed)).
		Dur("elapsed", elapsed).
		Msg("board built")
	return res, nil
}

func (e *Engine) build(ctx context.Context, in Input) (*Result, error) {
	in.BoardID = strings.TrimSpace(in.BoardID)
	in.ActorID = strings.TrimSpace(in.ActorID)
	in.Notes = strings.TrimSpace(in.Notes)
	in.RequestKey = strings.TrimSpace(in.RequestKey)

	switch {
	case in.BoardID == "":
		return nil, fmt.Errorf("%w: board_id is required", domain.ErrInvalidInput)
	case in.ActorID == "":
		return nil, fmt.Errorf("%w: actor is required", domain.ErrInvalidInput)
	case in.Quantity < 1:
		return nil, fmt.Errorf("%w: quantity must be at least 1", domain.ErrInvalidInput)
	case in.Quantity > domainbuild.MaxQuantity:
		return nil, fmt.Errorf("%w: quantity must not exceed %d", domain.ErrInvalidInput, domainbuild.MaxQuantity)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	actor, err := e.users.GetByID(ctx, in.ActorID)
	if err != nil {
		return nil, persistence(err)
	}
	if actor == nil {
		return nil, fmt.Errorf("%w: unknown actor %q", domain.ErrInvalidInput, in.ActorID)
	}

	if in.RequestKey != "" {
		prior, err := e.builds.GetByRequestKey(ctx, in.RequestKey)
		if err != nil {
			return nil, persistence(err)
		}
		if prior != nil {
			return nil, &DuplicateBuildError{BuildID: prior.ID}
		}
	}

	// Pre-check from a single read so infeasible requests never open a write transaction.
	board, lines, err := e.loadBoard(ctx, e.boards, in.BoardID)
	if err != nil {
		return nil, persistence(err)
	}
	if plan := domainbuild.Evaluate(lines, in.Quantity); !plan.Feasible() {
		return nil, &domain.InsufficientStockError{Shortfalls: domainbuild.Redact(plan.Shortfalls, actor.Role)}
	}

	var result *Result
	err = e.txRunner.RunSerializable(ctx, func(r ports.Repos) error {
		res, err := e.execute(ctx, r, in, actor)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		if in.RequestKey != "" && errors.Is(err, domain.ErrDuplicate) {
			return nil, e.duplicateOf(ctx, in.RequestKey, err)
		}
		return nil, classify(ctx, err)
	}
	result.Board = board.Label()
	result.Message = fmt.Sprintf("Built %d × %s", result.Quantity, board.Label())
	return result, nil
}

// execute re-reads the BOM, locks every involved part row, re-validates against the
// locked quantities and applies all writes. It runs inside the transaction.
func (e *Engine) execute(ctx context.Context, r ports.Repos, in Input, actor *entity.User) (*Result, error) {
	board, lines, err := e.loadBoard(ctx, r.Boards, in.BoardID)
	if err != nil {
		return nil, err
	}

	ids := partIDs(lines)
	locked, err := r.Parts.LockForUpdate(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(locked) != len(ids) {
		return nil, fmt.Errorf("%w: BOM parts changed during build", domain.ErrConcurrentConflict)
	}
	stock := make(map[string]int, len(locked))
	for _, p := range locked {
		stock[p.ID] = p.Quantity
	}
	for i := range lines {
		lines[i].Available = stock[lines[i].PartID]
	}

	plan := domainbuild.Evaluate(lines, in.Quantity)
	if !plan.Feasible() {
		return nil, &domain.InsufficientStockError{Shortfalls: domainbuild.Redact(plan.Shortfalls, actor.Role)}
	}

	now := e.now().UTC()
	buildID := uuid.New().String()
	note := fmt.Sprintf("Build %s: %d × %s", shortID(buildID), in.Quantity, board.Label())
	if in.Notes != "" {
		note += " - " + in.Notes
	}

	for _, c := range plan.Consumptions {
		if _, err := r.Parts.ApplyDelta(ctx, c.PartID, -c.Units); err != nil {
			return nil, err
		}
		if err := r.Transactions.Create(ctx, &entity.Transaction{
			ID:        uuid.New().String(),
			PartID:    c.PartID,
			UserID:    actor.ID,
			Type:      entity.TxTypeConsumption,
			Quantity:  -c.Units,
			Notes:     note,
			BuildID:   buildID,
			Timestamp: now,
		}); err != nil {
			return nil, err
		}
	}

	record := &entity.BuildRecord{
		ID:            buildID,
		BoardID:       board.ID,
		BuiltBy:       actor.ID,
		QuantityBuilt: in.Quantity,
		Notes:         in.Notes,
		RequestKey:    in.RequestKey,
		BuiltAt:       now,
	}
	if err := r.Builds.Create(ctx, record); err != nil {
		return nil, err
	}

	return &Result{
		BuildID:  buildID,
		BoardID:  board.ID,
		Quantity: in.Quantity,
		Consumed: plan.Consumptions,
		BuiltAt:  now,
	}, nil
}

// duplicateOf names the build that already holds key. It runs after the rollback,
// since a failed insert leaves the transaction unusable.
func (e *Engine) duplicateOf(ctx context.Context, key string, cause error) error {
	prior, err := e.builds.GetByRequestKey(ctx, key)
	if err != nil || prior == nil {
		e.log.For(ctx).Warn().Err(err).Str("request_key", key).Msg("duplicate build not found after rollback")
		return cause
	}
	return &DuplicateBuildError{BuildID: prior.ID}
}

// Replay returns the build already recorded under requestKey, rebuilt from its
// build record and ledger rows, or nil when the key is unused.
func (e *Engine) Replay(ctx context.Context, requestKey string) (*Result, error) {
	if requestKey == "" {
		return nil, nil
	}
	prior, err := e.builds.GetByRequestKey(ctx, requestKey)
	if err != nil || prior == nil {
		return nil, err
	}
	board, err := e.boards.GetByID(ctx, prior.BoardID)
	if err != nil {
		return nil, err
	}

	var rows []entity.TransactionView
	err = e.txRunner.Run(ctx, func(r ports.Repos) error {
		var lerr error
		rows, _, lerr = r.Transactions.List(ctx, repository.TransactionFilter{BuildID: prior.ID})
		return lerr
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		BuildID:  prior.ID,
		BoardID:  prior.BoardID,
		Quantity: prior.QuantityBuilt,
		Consumed: make([]domainbuild.Consumption, 0, len(rows)),
		BuiltAt:  prior.BuiltAt,
	}
	for _, row := range rows {
		res.Consumed = append(res.Consumed, domainbuild.Consumption{
			PartID:     row.PartID,
			PartNumber: row.PartNumber,
			Units:      -row.Quantity,
		})
	}
	if board != nil {
		res.Board = board.Label()
		res.Message = fmt.Sprintf("Built %d × %s", res.Quantity, board.Label())
	}
	return res, nil
}

// History lists the builds of a board, newest first.
func (e *Engine) History(ctx context.Context, boardID string, limit, offset int) ([]entity.BuildView, int, error) {
	if boardID == "" {
		return nil, 0, domain.ErrInvalidInput
	}
	board, err := e.boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, 0, err
	}
	if board == nil {
		return nil, 0, domain.ErrNotFound
	}
	return e.builds.ListByBoard(ctx, boardID, limit, offset)
}

func (e *Engine) loadBoard(ctx context.Context, boards repository.BoardRepository, boardID string) (*entity.Board, []entity.BOMLineStock, error) {
	board, err := boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, nil, fmt.Errorf("board: %w", err)
	}
	if board == nil || !board.IsActive {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrBoardNotFound, boardID)
	}
	lines, err := boards.LinesWithStock(ctx, boardID)
	if err != nil {
		return nil, nil, fmt.Errorf("BOM with stock: %w", err)
	}
	return board, lines, nil
}

// classify maps whatever came out of the transaction onto the failure taxonomy.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrBoardNotFound),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrConcurrentConflict),
		errors.Is(err, domain.ErrPersistenceFailure):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, ctx.Err())
	default:
		return persistence(err)
	}
}

// persistence marks an unclassified storage error, keeping the cause in the chain.
func persistence(err error) error {
	if Kind(err) != "" {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistenceFailure, err)
}

// Kind names the failure kind of err, or "" for nil / unclassified errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrBoardNotFound):
		return KindBoardNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, domain.ErrConcurrentConflict):
		return KindConcurrentConflict
	case errors.Is(err, domain.ErrPersistenceFailure):
		return KindPersistenceFailure
	case errors.Is(err, domain.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, domain.ErrDuplicate):
		return KindDuplicateRequest
	}
	return ""
}

// ResultLabel is the metrics label for a build outcome.
func ResultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if k := Kind(err); k != "" {
		return k
	}
	return "error"
}

func partIDs(lines []entity.BOMLineStock) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.PartID]; ok {
			continue
		}
		seen[l.PartID] = struct{}{}
		ids = append(ids, l.PartID)
	}
	sort.Strings(ids)
	return ids
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
