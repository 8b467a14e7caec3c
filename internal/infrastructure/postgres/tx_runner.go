package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stanfordssi/sats-inventory/internal/application/ports"
)

var _ ports.TxRunner = (*TxRunner)(nil)

// TxRunner runs callbacks inside a PostgreSQL transaction.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner builds the runner over the pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run begins a READ COMMITTED transaction, calls fn with repositories bound to it and
// commits, or rolls back when fn fails.
func (r *TxRunner) Run(ctx context.Context, fn func(repos ports.Repos) error) error {
	return r.run(ctx, pgx.TxOptions{}, fn)
}

// RunSerializable is Run at SERIALIZABLE isolation. 40001 and 40P01 come back wrapped
// in domain.ErrConcurrentConflict.
func (r *TxRunner) RunSerializable(ctx context.Context, fn func(repos ports.Repos) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

func (r *TxRunner) run(ctx context.Context, opts pgx.TxOptions, fn func(repos ports.Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(Bind(tx)); err != nil {
		return mapTxError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapTxError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Bind returns every repository bound to q (the pool or an open transaction).
func Bind(q Querier) ports.Repos {
	return ports.Repos{
		Parts:        NewPartRepository(q),
		Boards:       NewBoardRepository(q),
		Transactions: NewTransactionRepository(q),
		Builds:       NewBuildRepository(q),
		Users:        NewUserRepository(q),
	}
}
