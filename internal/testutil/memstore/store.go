// Package memstore is an in-memory implementation of every repository port plus a
// TxRunner with all-or-nothing semantics, used by use-case and handler tests.
//
// Write transactions are serialized and run against the live maps; on error (or an
// injected commit failure) the state captured when the transaction began is restored.
// Reads outside a transaction do not wait for running transactions, which is what lets
// tests race a pre-check against a concurrent commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

// Store holds all tables.
type Store struct {
	mu   sync.Mutex // guards the maps below
	txMu sync.Mutex // one write transaction at a time

	parts  map[string]entity.Part
	boards map[string]entity.Board
	lines  map[string][]entity.BOMLine
	txs    []entity.Transaction
	builds []entity.BuildRecord
	users  map[string]entity.User

	// FailOn, when set, is consulted before every write; a non-nil return fails that write.
	FailOn func(op string) error
	// CommitErr, when set, is returned by the next commit (and cleared), after rolling back.
	CommitErr error
	// BeforeTx runs at the start of every transaction, before the body.
	BeforeTx func()

	Commits   int
	Rollbacks int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		parts:  map[string]entity.Part{},
		boards: map[string]entity.Board{},
		lines:  map[string][]entity.BOMLine{},
		users:  map[string]entity.User{},
	}
}

type snapshot struct {
	parts  map[string]entity.Part
	boards map[string]entity.Board
	lines  map[string][]entity.BOMLine
	txs    []entity.Transaction
	builds []entity.BuildRecord
	users  map[string]entity.User
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		parts:  make(map[string]entity.Part, len(s.parts)),
		boards: make(map[string]entity.Board, len(s.boards)),
		lines:  make(map[string][]entity.BOMLine, len(s.lines)),
		txs:    append([]entity.Transaction(nil), s.txs...),
		builds: append([]entity.BuildRecord(nil), s.builds...),
		users:  make(map[string]entity.User, len(s.users)),
	}
	for k, v := range s.parts {
		snap.parts[k] = v
	}
	for k, v := range s.boards {
		snap.boards[k] = v
	}
	for k, v := range s.lines {
		snap.lines[k] = append([]entity.BOMLine(nil), v...)
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts, s.boards, s.lines = snap.parts, snap.boards, snap.lines
	s.txs, s.builds, s.users = snap.txs, snap.builds, snap.users
}

func (s *Store) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op)
}

// Repos returns repositories that operate on the store directly (outside transactions).
func (s *Store) Repos() ports.Repos {
	return ports.Repos{
		Parts:        &PartRepo{s: s},
		Boards:       &BoardRepo{s: s},
		Transactions: &TransactionRepo{s: s},
		Builds:       &BuildRepo{s: s},
		Users:        &UserRepo{s: s},
	}
}

// Dashboard returns the dashboard repository.
func (s *Store) Dashboard() *DashboardRepo { return &DashboardRepo{s: s} }

// TxRunner returns the transactional runner.
func (s *Store) TxRunner() *TxRunner { return &TxRunner{s: s} }

// ── Inspection helpers ────────────────────────────────────────────────────────

// Quantity returns the stored quantity of a part, -1 if it does not exist.
func (s *Store) Quantity(partID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parts[partID]
	if !ok {
		return -1
	}
	return p.Quantity
}

// Transactions returns a copy of the ledger.
func (s *Store) Transactions() []entity.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Transaction(nil), s.txs...)
}

// Builds returns a copy of the build records.
func (s *Store) Builds() []entity.BuildRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.BuildRecord(nil), s.builds...)
}

// ── Seeding helpers ───────────────────────────────────────────────────────────

// AddUser inserts a user.
func (s *Store) AddUser(u entity.User) entity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	s.users[u.ID] = u
	return u
}

// AddPart inserts a part.
func (s *Store) AddPart(p entity.Part) entity.Part {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.parts[p.ID] = p
	return p
}

// AddBoard inserts a board and its BOM lines.
func (s *Store) AddBoard(b entity.Board, lines ...entity.BOMLine) entity.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[b.ID] = b
	for i := range lines {
		lines[i].BoardID = b.ID
		lines[i].Position = i
		if lines[i].ID == "" {
			lines[i].ID = fmt.Sprintf("%s-line-%d", b.ID, i)
		}
	}
	s.lines[b.ID] = lines
	return b
}

// AddTransaction appends a ledger row without touching quantities.
func (s *Store) AddTransaction(tx entity.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
}

// ── TxRunner ──────────────────────────────────────────────────────────────────

// TxRunner runs callbacks atomically against the store.
type TxRunner struct {
	s *Store
}

var _ ports.TxRunner = (*TxRunner)(nil)

// Run executes fn; any error restores the state captured at the start.
func (r *TxRunner) Run(ctx context.Context, fn func(ports.Repos) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if r.s.BeforeTx != nil {
		r.s.BeforeTx()
	}
	snap := r.s.snapshot()
	if err := fn(r.s.Repos()); err != nil {
		r.s.restore(snap)
		r.s.Rollbacks++
		return err
	}
	if err := ctx.Err(); err != nil {
		r.s.restore(snap)
		r.s.Rollbacks++
		return err
	}
	if err := r.s.CommitErr; err != nil {
		r.s.CommitErr = nil
		r.s.restore(snap)
		r.s.Rollbacks++
		return fmt.Errorf("commit transaction: %w", err)
	}
	r.s.Commits++
	return nil
}

// RunSerializable is Run; transactions here are already serialized.
func (r *TxRunner) RunSerializable(ctx context.Context, fn func(ports.Repos) error) error {
	return r.Run(ctx, fn)
}

// ── Parts ─────────────────────────────────────────────────────────────────────

// PartRepo implements repository.PartRepository.
type PartRepo struct{ s *Store }

var _ repository.PartRepository = (*PartRepo)(nil)

func (r *PartRepo) Create(_ context.Context, p *entity.Part) error {
	if err := r.s.fail("parts.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.parts {
		if strings.EqualFold(existing.Number, p.Number) {
			return domain.ErrDuplicate
		}
	}
	r.s.parts[p.ID] = *p
	return nil
}

func (r *PartRepo) Update(_ context.Context, p *entity.Part) error {
	if err := r.s.fail("parts.Update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.parts[p.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for id, existing := range r.s.parts {
		if id != p.ID && strings.EqualFold(existing.Number, p.Number) {
			return domain.ErrDuplicate
		}
	}
	upd := *p
	upd.Quantity = cur.Quantity
	upd.UnitCost = cur.UnitCost
	upd.CreatedAt = cur.CreatedAt
	r.s.parts[p.ID] = upd
	return nil
}

func (r *PartRepo) GetByID(_ context.Context, id string) (*entity.Part, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.parts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PartRepo) GetByNumber(_ context.Context, number string) (*entity.Part, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.parts {
		if strings.EqualFold(p.Number, number) {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (r *PartRepo) List(_ context.Context, f repository.PartFilter) ([]*entity.Part, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []*entity.Part
	for _, p := range r.s.parts {
		if p.IsSensitive && !f.IncludeSensitive {
			continue
		}
		if f.LowStockOnly && !p.IsLowStock() {
			continue
		}
		if f.BinID != "" && p.BinID != f.BinID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Number+" "+p.Description+" "+p.Value+" "+p.Footprint), search) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (r *PartRepo) ListNumbers(_ context.Context, prefix string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, p := range r.s.parts {
		if strings.HasPrefix(p.Number, prefix) {
			out = append(out, p.Number)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *PartRepo) FindByValueOrFootprint(_ context.Context, value, footprint string) (*entity.Part, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]string, 0, len(r.s.parts))
	for id := range r.s.parts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := r.s.parts[id]
		if (value != "" && strings.EqualFold(p.Value, value)) || (footprint != "" && strings.EqualFold(p.Footprint, footprint)) {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *PartRepo) IsReferenced(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.referenced(id), nil
}

func (s *Store) referenced(partID string) bool {
	for _, lines := range s.lines {
		for _, l := range lines {
			if l.PartID == partID {
				return true
			}
		}
	}
	for _, b := range s.boards {
		if b.FinishedPartID == partID {
			return true
		}
	}
	return false
}

func (r *PartRepo) Delete(_ context.Context, id string) error {
	if err := r.s.fail("parts.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.parts[id]; !ok {
		return domain.ErrNotFound
	}
	if r.s.referenced(id) {
		return domain.ErrConflict
	}
	for _, tx := range r.s.txs {
		if tx.PartID == id {
			return domain.ErrConflict
		}
	}
	delete(r.s.parts, id)
	return nil
}

func (r *PartRepo) GetForUpdate(ctx context.Context, id string) (*entity.Part, error) {
	return r.GetByID(ctx, id)
}

func (r *PartRepo) LockForUpdate(_ context.Context, ids []string) ([]*entity.Part, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	out := make([]*entity.Part, 0, len(sorted))
	for _, id := range sorted {
		if p, ok := r.s.parts[id]; ok {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *PartRepo) ApplyDelta(_ context.Context, id string, delta int) (int, error) {
	if err := r.s.fail("parts.ApplyDelta"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.parts[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if p.Quantity+delta < 0 {
		return 0, domain.ErrConcurrentConflict
	}
	p.Quantity += delta
	p.UpdatedAt = time.Now()
	r.s.parts[id] = p
	return p.Quantity, nil
}

func (r *PartRepo) UpdateUnitCost(_ context.Context, id string, cost decimal.Decimal) error {
	if err := r.s.fail("parts.UpdateUnitCost"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.parts[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.UnitCost = cost
	r.s.parts[id] = p
	return nil
}

// ── Boards ────────────────────────────────────────────────────────────────────

// BoardRepo implements repository.BoardRepository.
type BoardRepo struct{ s *Store }

var _ repository.BoardRepository = (*BoardRepo)(nil)

func (r *BoardRepo) Create(_ context.Context, b *entity.Board) error {
	if err := r.s.fail("boards.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.boards {
		if strings.EqualFold(existing.Name, b.Name) && existing.Version == b.Version {
			return domain.ErrDuplicate
		}
	}
	r.s.boards[b.ID] = *b
	return nil
}

func (r *BoardRepo) Update(_ context.Context, b *entity.Board) error {
	if err := r.s.fail("boards.Update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.boards[b.ID]; !ok {
		return domain.ErrNotFound
	}
	r.s.boards[b.ID] = *b
	return nil
}

func (r *BoardRepo) GetByID(_ context.Context, id string) (*entity.Board, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.boards[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BoardRepo) List(_ context.Context, includeInactive bool) ([]*entity.Board, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Board
	for _, b := range r.s.boards {
		if !b.IsActive && !includeInactive {
			continue
		}
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *BoardRepo) Delete(_ context.Context, id string) error {
	if err := r.s.fail("boards.Delete"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.boards[id]; !ok {
		return domain.ErrNotFound
	}
	for _, b := range r.s.builds {
		if b.BoardID == id {
			return domain.ErrConflict
		}
	}
	delete(r.s.boards, id)
	delete(r.s.lines, id)
	return nil
}

func (r *BoardRepo) ReplaceLines(_ context.Context, boardID string, lines []entity.BOMLine) error {
	if err := r.s.fail("boards.ReplaceLines"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	for _, l := range lines {
		if seen[l.PartID] {
			return domain.ErrDuplicate
		}
		seen[l.PartID] = true
		if _, ok := r.s.parts[l.PartID]; !ok {
			return domain.ErrNotFound
		}
	}
	cp := append([]entity.BOMLine(nil), lines...)
	for i := range cp {
		cp[i].BoardID = boardID
		cp[i].Position = i
	}
	r.s.lines[boardID] = cp
	return nil
}

func (r *BoardRepo) LinesWithStock(_ context.Context, boardID string) ([]entity.BOMLineStock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lines := r.s.lines[boardID]
	out := make([]entity.BOMLineStock, 0, len(lines))
	for _, l := range lines {
		p := r.s.parts[l.PartID]
		out = append(out, entity.BOMLineStock{
			BOMLine:     l,
			PartNumber:  p.Number,
			Description: p.Description,
			Available:   p.Quantity,
			UnitCost:    p.UnitCost,
			IsSensitive: p.IsSensitive,
		})
	}
	return out, nil
}

func (r *BoardRepo) ActiveDemand(_ context.Context) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int{}
	for id, b := range r.s.boards {
		if !b.IsActive {
			continue
		}
		for _, l := range r.s.lines[id] {
			out[l.PartID] += l.QuantityRequired
		}
	}
	return out, nil
}

// ── Transactions ──────────────────────────────────────────────────────────────

// TransactionRepo implements repository.TransactionRepository.
type TransactionRepo struct{ s *Store }

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

func (r *TransactionRepo) Create(_ context.Context, tx *entity.Transaction) error {
	if err := r.s.fail("transactions.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.txs = append(r.s.txs, *tx)
	return nil
}

func (s *Store) view(tx entity.Transaction) entity.TransactionView {
	p := s.parts[tx.PartID]
	u := s.users[tx.UserID]
	return entity.TransactionView{Transaction: tx, PartNumber: p.Number, PartDescription: p.Description, UserName: u.Name}
}

func (r *TransactionRepo) List(_ context.Context, f repository.TransactionFilter) ([]entity.TransactionView, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.TransactionView
	for _, tx := range r.s.txs {
		if (f.PartID != "" && tx.PartID != f.PartID) || (f.UserID != "" && tx.UserID != f.UserID) ||
			(f.Type != "" && tx.Type != f.Type) || (f.BuildID != "" && tx.BuildID != f.BuildID) {
			continue
		}
		if (f.Since != nil && tx.Timestamp.Before(*f.Since)) || (f.Until != nil && !tx.Timestamp.Before(*f.Until)) {
			continue
		}
		out = append(out, r.s.view(tx))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (r *TransactionRepo) CheckoutsAndReturns(_ context.Context, userID, partID string) ([]entity.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.Transaction
	for _, tx := range r.s.txs {
		if tx.Type != entity.TxTypeCheckout && tx.Type != entity.TxTypeReturn {
			continue
		}
		if (userID != "" && tx.UserID != userID) || (partID != "" && tx.PartID != partID) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (r *TransactionRepo) Recent(ctx context.Context, limit int) ([]entity.TransactionView, error) {
	out, _, err := r.List(ctx, repository.TransactionFilter{Limit: limit})
	return out, err
}

func (r *TransactionRepo) CountByPart(_ context.Context, partID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, tx := range r.s.txs {
		if tx.PartID == partID {
			n++
		}
	}
	return n, nil
}

// ── Builds ────────────────────────────────────────────────────────────────────

// BuildRepo implements repository.BuildRepository.
type BuildRepo struct{ s *Store }

var _ repository.BuildRepository = (*BuildRepo)(nil)

func (r *BuildRepo) Create(_ context.Context, b *entity.BuildRecord) error {
	if err := r.s.fail("builds.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.RequestKey != "" {
		for _, existing := range r.s.builds {
			if existing.RequestKey == b.RequestKey {
				return domain.ErrDuplicate
			}
		}
	}
	r.s.builds = append(r.s.builds, *b)
	return nil
}

func (r *BuildRepo) GetByRequestKey(_ context.Context, key string) (*entity.BuildRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.builds {
		if key != "" && b.RequestKey == key {
			b := b
			return &b, nil
		}
	}
	return nil, nil
}

func (s *Store) buildView(b entity.BuildRecord) entity.BuildView {
	board := s.boards[b.BoardID]
	return entity.BuildView{
		BuildRecord:  b,
		BoardName:    board.Name,
		BoardVersion: board.Version,
		BuilderName:  s.users[b.BuiltBy].Name,
	}
}

func (r *BuildRepo) ListByBoard(_ context.Context, boardID string, limit, offset int) ([]entity.BuildView, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.BuildView
	for i := len(r.s.builds) - 1; i >= 0; i-- {
		if r.s.builds[i].BoardID == boardID {
			out = append(out, r.s.buildView(r.s.builds[i]))
		}
	}
	total := len(out)
	return page(out, limit, offset), total, nil
}

func (r *BuildRepo) CountByBoard(_ context.Context, boardID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.builds {
		if b.BoardID == boardID {
			n++
		}
	}
	return n, nil
}

func (r *BuildRepo) Recent(_ context.Context, limit int) ([]entity.BuildView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.BuildView
	for i := len(r.s.builds) - 1; i >= 0; i-- {
		out = append(out, r.s.buildView(r.s.builds[i]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BuiltAt.After(out[j].BuiltAt) })
	return page(out, limit, 0), nil
}

// ── Users ─────────────────────────────────────────────────────────────────────

// UserRepo implements repository.UserRepository.
type UserRepo struct{ s *Store }

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *entity.User) error {
	if err := r.s.fail("users.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrEmailAlreadyExists
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) find(match func(entity.User) bool) *entity.User {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			u := u
			return &u
		}
	}
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	return r.find(func(u entity.User) bool { return u.ID == id }), nil
}

func (r *UserRepo) GetByAuthID(_ context.Context, authID string) (*entity.User, error) {
	return r.find(func(u entity.User) bool { return authID != "" && u.AuthID == authID }), nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u entity.User) bool { return email != "" && strings.EqualFold(u.Email, email) }), nil
}

func (r *UserRepo) GetForUpdate(ctx context.Context, id string) (*entity.User, error) {
	return r.GetByID(ctx, id)
}

func (r *UserRepo) List(_ context.Context) ([]*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *UserRepo) UpdateRole(_ context.Context, id, role string) error {
	if err := r.s.fail("users.UpdateRole"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Role = role
	r.s.users[id] = u
	return nil
}

func (r *UserRepo) CountByRole(_ context.Context, role string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

// DashboardRepo implements repository.DashboardRepository.
type DashboardRepo struct{ s *Store }

var _ repository.DashboardRepository = (*DashboardRepo)(nil)

func (r *DashboardRepo) PartCounts(_ context.Context, since time.Time) (repository.PartCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := repository.PartCounts{StockValue: decimal.Zero}
	for _, p := range r.s.parts {
		c.Total++
		if p.IsLowStock() {
			c.LowStock++
		}
		if !p.CreatedAt.Before(since) {
			c.NewSince++
		}
		c.StockValue = c.StockValue.Add(p.StockValue())
	}
	return c, nil
}

func (r *DashboardRepo) UserCounts(_ context.Context, since time.Time) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total, recent := 0, 0
	for _, u := range r.s.users {
		total++
		if !u.CreatedAt.Before(since) {
			recent++
		}
	}
	return total, recent, nil
}

func (r *DashboardRepo) BoardCounts(_ context.Context) (repository.BoardCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var c repository.BoardCounts
	for id, b := range r.s.boards {
		if !b.IsActive {
			continue
		}
		c.Active++
		ready := true
		for _, l := range r.s.lines[id] {
			if r.s.parts[l.PartID].Quantity < l.QuantityRequired {
				ready = false
				break
			}
		}
		if ready {
			c.Ready++
		}
	}
	c.Builds = len(r.s.builds)
	return c, nil
}

func (r *DashboardRepo) TransactionCounts(_ context.Context, curStart, prevStart time.Time) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, prev := 0, 0
	for _, tx := range r.s.txs {
		switch {
		case !tx.Timestamp.Before(curStart):
			cur++
		case !tx.Timestamp.Before(prevStart):
			prev++
		}
	}
	return cur, prev, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
