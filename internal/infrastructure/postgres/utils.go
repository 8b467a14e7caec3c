package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stanfordssi/sats-inventory/internal/domain"
)

// Querier is what repositories need from either the pool or a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgreSQL error codes mapped onto domain errors.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeInvalidText          = "22P02"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// constraintOf names the violated constraint or index, if any.
func constraintOf(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// isUniqueViolation reports a unique constraint violation (23505).
func isUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

// isForeignKeyViolation reports a row still referenced elsewhere, or a dangling reference (23503).
func isForeignKeyViolation(err error) bool { return pgCode(err) == codeForeignKeyViolation }

// isCheckViolation reports a CHECK constraint violation (23514), e.g. quantity >= 0.
func isCheckViolation(err error) bool { return pgCode(err) == codeCheckViolation }

// isInvalidText reports a malformed literal, e.g. an id that is not a UUID (22P02).
func isInvalidText(err error) bool { return pgCode(err) == codeInvalidText }

// isSerializationFailure reports an aborted SERIALIZABLE transaction or a deadlock victim.
func isSerializationFailure(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// mapTxError turns concurrency aborts into domain.ErrConcurrentConflict, keeping the cause.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	if isSerializationFailure(err) && !errors.Is(err, domain.ErrConcurrentConflict) {
		return fmt.Errorf("%w: %w", domain.ErrConcurrentConflict, err)
	}
	return err
}

// pageArgs normalizes limit/offset; a non-positive limit means no limit.
func pageArgs(limit, offset int) (any, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return nil, offset
	}
	return limit, offset
}
