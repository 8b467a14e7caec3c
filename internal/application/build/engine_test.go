package build_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/application/build"
	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
	"github.com/stanfordssi/sats-inventory/internal/testutil/memstore"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

const (
	partA  = "part-a"
	partB  = "part-b"
	adcsID = "board-adcs"
	alice  = "user-alice"
)

type recordedBuild struct {
	result   string
	quantity int
}

type fakeMetrics struct {
	mu       sync.Mutex
	builds   []recordedBuild
	consumed int
}

func (m *fakeMetrics) BuildFinished(result string, quantity int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds = append(m.builds, recordedBuild{result, quantity})
}

func (m *fakeMetrics) PartsConsumed(units int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed += units
}

func (m *fakeMetrics) LedgerWritten(string, int) {}

// seed creates the ADCS v1.0 board (PART-A × 2, PART-B × 1) with the given stock.
func seed(stockA, stockB int) *memstore.Store {
	s := memstore.New()
	s.AddUser(entity.User{ID: alice, Name: "Alice", Role: entity.RoleMember})
	s.AddPart(entity.Part{ID: partA, Number: "PART-A", Description: "Magnetorquer driver", Quantity: stockA})
	s.AddPart(entity.Part{ID: partB, Number: "PART-B", Description: "IMU", Quantity: stockB})
	s.AddBoard(entity.Board{ID: adcsID, Name: "ADCS", Version: "1.0", IsActive: true},
		entity.BOMLine{PartID: partA, QuantityRequired: 2},
		entity.BOMLine{PartID: partB, QuantityRequired: 1},
	)
	return s
}

func newEngine(s *memstore.Store, m *fakeMetrics) *build.Engine {
	r := s.Repos()
	if m == nil {
		m = &fakeMetrics{}
	}
	return build.NewEngine(s.TxRunner(), r.Boards, r.Users, r.Builds, m, nil, time.Second)
}

// pgRunner behaves like the Postgres runner on top of the memstore: wrap swaps the
// repositories seen inside a transaction, and serialization failures surfacing from
// the body are reported as conflicts.
type pgRunner struct {
	*memstore.TxRunner
	wrap func(ports.Repos) ports.Repos
}

func (r *pgRunner) RunSerializable(ctx context.Context, fn func(ports.Repos) error) error {
	err := r.TxRunner.RunSerializable(ctx, func(repos ports.Repos) error {
		if r.wrap != nil {
			repos = r.wrap(repos)
		}
		return fn(repos)
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return fmt.Errorf("%w: %w", domain.ErrConcurrentConflict, err)
	}
	return err
}

// serializationBOM fails the first fails BOM reads with SQLSTATE 40001.
type serializationBOM struct {
	repository.BoardRepository
	fails int
}

func (b *serializationBOM) LinesWithStock(ctx context.Context, boardID string) ([]entity.BOMLineStock, error) {
	if b.fails > 0 {
		b.fails--
		return nil, fmt.Errorf("BOM with stock: %w", &pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	}
	return b.BoardRepository.LinesWithStock(ctx, boardID)
}

// abortedBuilds answers reads like a Postgres transaction after a failed statement.
type abortedBuilds struct {
	repository.BuildRepository
	failed bool
}

func (b *abortedBuilds) Create(ctx context.Context, rec *entity.BuildRecord) error {
	err := b.BuildRepository.Create(ctx, rec)
	b.failed = err != nil
	return err
}

func (b *abortedBuilds) GetByRequestKey(ctx context.Context, key string) (*entity.BuildRecord, error) {
	if b.failed {
		return nil, errors.New("current transaction is aborted, commands ignored until end of transaction block")
	}
	return b.BuildRepository.GetByRequestKey(ctx, key)
}

// ──────────────────────────────────────────────────────────────────────────────
// Build
// ──────────────────────────────────────────────────────────────────────────────

func TestBuild_RejectsWhenAPartIsMissing(t *testing.T) {
	s := seed(5, 0)
	m := &fakeMetrics{}
	eng := newEngine(s, m)

	res, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, build.KindInsufficientStock, build.Kind(err))

	shortfalls := domain.ShortfallsOf(err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, "PART-B", shortfalls[0].PartNumber)
	assert.Equal(t, 1, shortfalls[0].Required)
	assert.Equal(t, 0, shortfalls[0].Available)

	assert.Equal(t, 5, s.Quantity(partA), "nothing may be consumed on rejection")
	assert.Equal(t, 0, s.Quantity(partB))
	assert.Empty(t, s.Transactions())
	assert.Empty(t, s.Builds())
	assert.Equal(t, []recordedBuild{{build.KindInsufficientStock, 1}}, m.builds)
}

func TestBuild_ConsumesEveryLineAtomically(t *testing.T) {
	s := seed(5, 3)
	m := &fakeMetrics{}
	eng := newEngine(s, m)

	res, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 2, ActorID: alice, Notes: "flight spare"})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Quantity(partA))
	assert.Equal(t, 1, s.Quantity(partB))
	assert.Equal(t, "Built 2 × ADCS v1.0", res.Message)
	assert.Equal(t, "ADCS v1.0", res.Board)
	require.Len(t, res.Consumed, 2)
	assert.Equal(t, 4, res.Consumed[0].Units)
	assert.Equal(t, 2, res.Consumed[1].Units)

	txs := s.Transactions()
	require.Len(t, txs, 2, "one consumption transaction per BOM line")
	for _, tx := range txs {
		assert.Equal(t, entity.TxTypeConsumption, tx.Type)
		assert.Equal(t, alice, tx.UserID)
		assert.Equal(t, res.BuildID, tx.BuildID)
		assert.Contains(t, tx.Notes, "2 × ADCS v1.0 - flight spare")
		assert.Less(t, tx.Quantity, 0)
	}

	builds := s.Builds()
	require.Len(t, builds, 1)
	assert.Equal(t, res.BuildID, builds[0].ID)
	assert.Equal(t, 2, builds[0].QuantityBuilt)
	assert.Equal(t, alice, builds[0].BuiltBy)

	assert.Equal(t, 6, m.consumed)
	assert.Equal(t, []recordedBuild{{"success", 2}}, m.builds)
}

func TestBuild_StockIsConservedAgainstTheLedger(t *testing.T) {
	s := seed(20, 10)
	eng := newEngine(s, nil)

	for _, q := range []int{1, 3, 2} {
		_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: q, ActorID: alice})
		require.NoError(t, err)
	}

	net := map[string]int{}
	for _, tx := range s.Transactions() {
		net[tx.PartID] += tx.Quantity
	}
	assert.Equal(t, 20+net[partA], s.Quantity(partA))
	assert.Equal(t, 10+net[partB], s.Quantity(partB))
	assert.Equal(t, 8, s.Quantity(partA))
	assert.Equal(t, 4, s.Quantity(partB))
}

func TestBuild_FailureMidWriteLeavesNoTrace(t *testing.T) {
	for _, op := range []string{"parts.ApplyDelta", "transactions.Create", "builds.Create"} {
		t.Run(op, func(t *testing.T) {
			s := seed(5, 3)
			calls := 0
			s.FailOn = func(name string) error {
				if name != op {
					return nil
				}
				calls++
				// let the first write through so the failure lands mid-build
				if op != "builds.Create" && calls == 1 {
					return nil
				}
				return errors.New("connection reset")
			}
			eng := newEngine(s, nil)

			_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 2, ActorID: alice})

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
			assert.Equal(t, 5, s.Quantity(partA))
			assert.Equal(t, 3, s.Quantity(partB))
			assert.Empty(t, s.Transactions())
			assert.Empty(t, s.Builds())
		})
	}
}

func TestBuild_CommitFailureRollsBack(t *testing.T) {
	s := seed(5, 3)
	s.CommitErr = errors.New("server closed the connection")
	eng := newEngine(s, nil)

	_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice})

	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.Equal(t, 5, s.Quantity(partA))
	assert.Empty(t, s.Builds())
	assert.Equal(t, 1, s.Rollbacks)
}

func TestBuild_RevalidatesInsideTheTransaction(t *testing.T) {
	s := seed(5, 3)
	// another writer takes PART-A after the pre-check passed
	s.BeforeTx = func() {
		_, err := s.Repos().Parts.ApplyDelta(context.Background(), partA, -4)
		require.NoError(t, err)
	}
	eng := newEngine(s, nil)

	_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice})

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	shortfalls := domain.ShortfallsOf(err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, "PART-A", shortfalls[0].PartNumber)
	assert.Equal(t, 1, shortfalls[0].Available)
	assert.Equal(t, 3, s.Quantity(partB), "PART-B must not be touched")
}

func TestBuild_ConcurrentBuildsNeverOverConsume(t *testing.T) {
	s := seed(5, 5)
	eng := newEngine(s, nil)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 2, ActorID: alice})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, successes, "stock of PART-A allows exactly two builds of 2")
	assert.Equal(t, 1, s.Quantity(partA))
	assert.Equal(t, 1, s.Quantity(partB))
	assert.Len(t, s.Builds(), 2)
	assert.Len(t, s.Transactions(), 4)
}

func TestBuild_InactiveOrMissingBoard(t *testing.T) {
	s := seed(5, 3)
	s.AddBoard(entity.Board{ID: "board-old", Name: "EPS", Version: "0.9", IsActive: false},
		entity.BOMLine{PartID: partA, QuantityRequired: 1})
	eng := newEngine(s, nil)

	for _, id := range []string{"board-old", "board-nope"} {
		_, err := eng.Build(context.Background(), build.Input{BoardID: id, Quantity: 1, ActorID: alice})
		assert.ErrorIs(t, err, domain.ErrBoardNotFound, id)
		assert.Equal(t, build.KindBoardNotFound, build.Kind(err))
	}
	assert.Equal(t, 5, s.Quantity(partA))
}

func TestBuild_InvalidInput(t *testing.T) {
	s := seed(5, 3)
	eng := newEngine(s, nil)

	cases := map[string]build.Input{
		"zero quantity":     {BoardID: adcsID, Quantity: 0, ActorID: alice},
		"negative quantity": {BoardID: adcsID, Quantity: -3, ActorID: alice},
		"too many":          {BoardID: adcsID, Quantity: 10001, ActorID: alice},
		"no board":          {Quantity: 1, ActorID: alice},
		"no actor":          {BoardID: adcsID, Quantity: 1},
		"unknown actor":     {BoardID: adcsID, Quantity: 1, ActorID: "ghost"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := eng.Build(context.Background(), in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, build.KindInvalidInput, build.Kind(err))
		})
	}
	assert.Empty(t, s.Transactions())
}

func TestBuild_EmptyBOMRecordsBuildOnly(t *testing.T) {
	s := seed(5, 3)
	s.AddBoard(entity.Board{ID: "board-empty", Name: "Harness", Version: "1.0", IsActive: true})
	eng := newEngine(s, nil)

	res, err := eng.Build(context.Background(), build.Input{BoardID: "board-empty", Quantity: 3, ActorID: alice})

	require.NoError(t, err)
	assert.Empty(t, res.Consumed)
	assert.Empty(t, s.Transactions())
	assert.Len(t, s.Builds(), 1)
}

func TestBuild_RequestKeyRefusesSecondBuild(t *testing.T) {
	s := seed(10, 10)
	eng := newEngine(s, nil)
	in := build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice, RequestKey: "bench-42"}

	first, err := eng.Build(context.Background(), in)
	require.NoError(t, err)

	_, err = eng.Build(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrDuplicate)
	var dup *build.DuplicateBuildError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.BuildID, dup.BuildID)
	assert.Equal(t, build.KindDuplicateRequest, build.Kind(err))

	assert.Equal(t, 8, s.Quantity(partA), "only the first build consumed stock")
	assert.Len(t, s.Builds(), 1)
}

func TestBuild_SerializationFailureOnBOMReadIsAConflict(t *testing.T) {
	s := seed(5, 3)
	bom := &serializationBOM{fails: 1}
	tx := &pgRunner{TxRunner: s.TxRunner(), wrap: func(r ports.Repos) ports.Repos {
		bom.BoardRepository = r.Boards
		r.Boards = bom
		return r
	}}
	r := s.Repos()
	eng := build.NewEngine(tx, r.Boards, r.Users, r.Builds, nil, nil, time.Second)

	_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice})

	require.ErrorIs(t, err, domain.ErrConcurrentConflict)
	assert.Equal(t, build.KindConcurrentConflict, build.Kind(err))
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr, "the driver error stays in the chain")
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, 5, s.Quantity(partA))

	bom.fails = 1
	res, err := build.NewRunner(eng, build.RetryPolicy{MaxRetries: 1}).
		Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice})
	require.NoError(t, err, "an unkeyed build is retried after a conflict")
	assert.NotEmpty(t, res.BuildID)
	assert.Equal(t, 3, s.Quantity(partA))
}

func TestBuild_PersistenceFailureKeepsTheCause(t *testing.T) {
	s := seed(5, 3)
	cause := errors.New("connection reset")
	s.FailOn = func(op string) error {
		if op == "builds.Create" {
			return cause
		}
		return nil
	}

	_, err := newEngine(s, nil).Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice})

	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.ErrorIs(t, err, cause)
}

func TestBuild_DuplicateKeyNamesTheRacingBuild(t *testing.T) {
	s := seed(10, 10)
	builds := &abortedBuilds{}
	tx := &pgRunner{TxRunner: s.TxRunner(), wrap: func(r ports.Repos) ports.Repos {
		builds.BuildRepository = r.Builds
		r.Builds = builds
		return r
	}}
	// a second request with the same key commits between the pre-check and our transaction
	s.BeforeTx = func() {
		s.BeforeTx = nil
		require.NoError(t, s.Repos().Builds.Create(context.Background(), &entity.BuildRecord{
			ID: "build-racer", BoardID: adcsID, BuiltBy: alice, QuantityBuilt: 1, RequestKey: "bench-77",
		}))
	}
	r := s.Repos()
	eng := build.NewEngine(tx, r.Boards, r.Users, r.Builds, nil, nil, time.Second)

	_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice, RequestKey: "bench-77"})

	var dup *build.DuplicateBuildError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "build-racer", dup.BuildID)
	assert.Equal(t, build.KindDuplicateRequest, build.Kind(err))
	assert.Equal(t, 10, s.Quantity(partA), "the losing build was rolled back")
}

func TestBuild_ShortfallsRedactSensitivePartsForMembers(t *testing.T) {
	s := seed(5, 3)
	s.AddPart(entity.Part{ID: "part-hsm", Number: "HSM-01", Description: "Crypto module", IsSensitive: true})
	s.AddUser(entity.User{ID: "user-lead", Name: "Lead", Role: entity.RoleAdmin})
	s.AddBoard(entity.Board{ID: "board-crypto", Name: "Crypto", Version: "1.0", IsActive: true},
		entity.BOMLine{PartID: "part-hsm", QuantityRequired: 1})
	eng := newEngine(s, nil)

	_, err := eng.Build(context.Background(), build.Input{BoardID: "board-crypto", Quantity: 1, ActorID: alice})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	shortfalls := domain.ShortfallsOf(err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, entity.Restricted, shortfalls[0].Description)

	_, err = eng.Build(context.Background(), build.Input{BoardID: "board-crypto", Quantity: 1, ActorID: "user-lead"})
	assert.Equal(t, "Crypto module", domain.ShortfallsOf(err)[0].Description)

	f, err := eng.Check(context.Background(), "board-crypto", 1, entity.RoleMember)
	require.NoError(t, err)
	require.Len(t, f.Shortfalls, 1)
	assert.Equal(t, entity.Restricted, f.Shortfalls[0].Description)
}

func TestBuild_CancelledContextIsPersistenceFailure(t *testing.T) {
	s := seed(5, 3)
	eng := newEngine(s, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.BeforeTx = cancel

	_, err := eng.Build(ctx, build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice})

	assert.ErrorIs(t, err, domain.ErrPersistenceFailure)
	assert.Equal(t, 5, s.Quantity(partA))
}

// ──────────────────────────────────────────────────────────────────────────────
// Check / History
// ──────────────────────────────────────────────────────────────────────────────

func TestCheck_ReportsRequirementsWithoutWriting(t *testing.T) {
	s := seed(5, 0)
	eng := newEngine(s, nil)

	f, err := eng.Check(context.Background(), adcsID, 2, entity.RoleMember)
	require.NoError(t, err)

	assert.False(t, f.CanBuild)
	assert.Equal(t, 0, f.MaxBuildable)
	assert.True(t, f.Bounded)
	require.Len(t, f.Requirements, 2)
	assert.Equal(t, 4, f.Requirements[0].Units)
	require.Len(t, f.Shortfalls, 1)
	assert.Equal(t, "PART-B", f.Shortfalls[0].PartNumber)
	assert.Equal(t, 0, s.Commits+s.Rollbacks, "a check never opens a transaction")
}

func TestCheck_MaxBuildable(t *testing.T) {
	s := seed(7, 9)
	f, err := newEngine(s, nil).Check(context.Background(), adcsID, 1, entity.RoleMember)

	require.NoError(t, err)
	assert.True(t, f.CanBuild)
	assert.Equal(t, 3, f.MaxBuildable)
}

func TestReplay_RebuildsTheRecordedResult(t *testing.T) {
	s := seed(10, 10)
	eng := newEngine(s, nil)
	first, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 2, ActorID: alice, RequestKey: "bench-5"})
	require.NoError(t, err)

	res, err := eng.Replay(context.Background(), "bench-5")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, first.BuildID, res.BuildID)
	assert.Equal(t, first.Message, res.Message)
	assert.ElementsMatch(t, first.Consumed, res.Consumed)

	res, err = eng.Replay(context.Background(), "bench-unused")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestHistory_NewestFirst(t *testing.T) {
	s := seed(10, 10)
	eng := newEngine(s, nil)
	for q := 1; q <= 3; q++ {
		_, err := eng.Build(context.Background(), build.Input{BoardID: adcsID, Quantity: 1, ActorID: alice, Notes: string(rune('a' + q))})
		require.NoError(t, err)
	}

	views, total, err := eng.History(context.Background(), adcsID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, views, 2)
	assert.Equal(t, "d", views[0].Notes)
	assert.Equal(t, "Alice", views[0].BuilderName)

	_, _, err = eng.History(context.Background(), "board-nope", 10, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "success", build.ResultLabel(nil))
	assert.Equal(t, "error", build.ResultLabel(errors.New("boom")))
	assert.Equal(t, build.KindConcurrentConflict, build.ResultLabel(domain.ErrConcurrentConflict))
}
