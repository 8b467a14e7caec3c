package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

var _ repository.TransactionRepository = (*TransactionRepo)(nil)

const transactionViewSelect = `
	SELECT t.id, t.part_id, t.user_id, t.type, t.quantity, t.notes, COALESCE(t.build_id::text, ''), t.timestamp,
	       p.part_number, p.description, COALESCE(u.name, '')
	FROM transactions t
	JOIN parts p ON p.id = t.part_id
	LEFT JOIN users u ON u.id = t.user_id`

// TransactionRepo append-only ledger over PostgreSQL (usable with the pool or a tx).
type TransactionRepo struct {
	q Querier
}

// NewTransactionRepository builds the adapter. Pass the pool or a tx (Querier).
func NewTransactionRepository(q Querier) *TransactionRepo {
	return &TransactionRepo{q: q}
}

func (r *TransactionRepo) Create(ctx context.Context, t *entity.Transaction) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO transactions (id, part_id, user_id, type, quantity, notes, build_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, '')::uuid, $8)`,
		t.ID, t.PartID, t.UserID, t.Type, t.Quantity, t.Notes, t.BuildID, t.Timestamp,
	)
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return domain.ErrNotFound
		case isCheckViolation(err):
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func scanTransactionViews(rows pgx.Rows) ([]entity.TransactionView, error) {
	defer rows.Close()
	var out []entity.TransactionView
	for rows.Next() {
		var v entity.TransactionView
		if err := rows.Scan(&v.ID, &v.PartID, &v.UserID, &v.Type, &v.Quantity, &v.Notes, &v.BuildID, &v.Timestamp,
			&v.PartNumber, &v.PartDescription, &v.UserName); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// List filters the ledger newest first and returns the page plus the total count.
func (r *TransactionRepo) List(ctx context.Context, f repository.TransactionFilter) ([]entity.TransactionView, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.PartID != "" {
		where = append(where, "t.part_id = "+arg(f.PartID)+"::uuid")
	}
	if f.UserID != "" {
		where = append(where, "t.user_id = "+arg(f.UserID)+"::uuid")
	}
	if f.Type != "" {
		where = append(where, "t.type = "+arg(f.Type))
	}
	if f.BuildID != "" {
		where = append(where, "t.build_id = "+arg(f.BuildID)+"::uuid")
	}
	if f.Since != nil {
		where = append(where, "t.timestamp >= "+arg(*f.Since))
	}
	if f.Until != nil {
		where = append(where, "t.timestamp < "+arg(*f.Until))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM transactions t`+cond, args...).Scan(&total); err != nil {
		if isInvalidText(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	limit, offset := pageArgs(f.Limit, f.Offset)
	rows, err := r.q.Query(ctx, transactionViewSelect+cond+
		` ORDER BY t.timestamp DESC, t.id LIMIT `+arg(limit)+` OFFSET `+arg(offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	list, err := scanTransactionViews(rows)
	return list, total, err
}

func (r *TransactionRepo) CheckoutsAndReturns(ctx context.Context, userID, partID string) ([]entity.Transaction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, part_id, user_id, type, quantity, notes, COALESCE(build_id::text, ''), timestamp
		FROM transactions
		WHERE type IN ('checkout', 'return')
		  AND ($1 = '' OR user_id::text = $1)
		  AND ($2 = '' OR part_id::text = $2)
		ORDER BY timestamp, id`, userID, partID)
	if err != nil {
		return nil, fmt.Errorf("checkouts and returns: %w", err)
	}
	defer rows.Close()
	var out []entity.Transaction
	for rows.Next() {
		var t entity.Transaction
		if err := rows.Scan(&t.ID, &t.PartID, &t.UserID, &t.Type, &t.Quantity, &t.Notes, &t.BuildID, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepo) Recent(ctx context.Context, limit int) ([]entity.TransactionView, error) {
	rows, err := r.q.Query(ctx, transactionViewSelect+` ORDER BY t.timestamp DESC, t.id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	return scanTransactionViews(rows)
}

func (r *TransactionRepo) CountByPart(ctx context.Context, partID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM transactions WHERE part_id = $1`, partID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count part transactions: %w", err)
	}
	return n, nil
}
