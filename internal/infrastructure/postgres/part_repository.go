package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

var _ repository.PartRepository = (*PartRepo)(nil)

const partColumns = `id, part_number, description, bin_id, bin_location, quantity, min_quantity,
	link, value, footprint, is_sensitive, unit_cost, created_at, updated_at`

// PartRepo PartRepository over PostgreSQL (usable with the pool or a tx).
type PartRepo struct {
	q Querier
}

// NewPartRepository builds the adapter. Pass the pool or a tx (Querier).
func NewPartRepository(q Querier) *PartRepo {
	return &PartRepo{q: q}
}

func scanPart(row pgx.Row) (*entity.Part, error) {
	var p entity.Part
	err := row.Scan(&p.ID, &p.Number, &p.Description, &p.BinID, &p.BinLocation, &p.Quantity, &p.MinQuantity,
		&p.Link, &p.Value, &p.Footprint, &p.IsSensitive, &p.UnitCost, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PartRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.Part, error) {
	p, err := scanPart(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Create inserts a part with its opening quantity and cost.
func (r *PartRepo) Create(ctx context.Context, p *entity.Part) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO parts (`+partColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.Number, p.Description, p.BinID, p.BinLocation, p.Quantity, p.MinQuantity,
		p.Link, p.Value, p.Footprint, p.IsSensitive, p.UnitCost, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("insert part: %w", err)
	}
	return nil
}

// Update writes descriptive fields. Quantity and unit cost only move through the ledger.
func (r *PartRepo) Update(ctx context.Context, p *entity.Part) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE parts SET part_number = $2, description = $3, bin_id = $4, bin_location = $5,
			min_quantity = $6, link = $7, value = $8, footprint = $9, is_sensitive = $10, updated_at = $11
		WHERE id = $1`,
		p.ID, p.Number, p.Description, p.BinID, p.BinLocation,
		p.MinQuantity, p.Link, p.Value, p.Footprint, p.IsSensitive, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("update part: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PartRepo) GetByID(ctx context.Context, id string) (*entity.Part, error) {
	return r.getOne(ctx, "get part", `SELECT `+partColumns+` FROM parts WHERE id = $1`, id)
}

// GetByNumber matches the part code case-insensitively.
func (r *PartRepo) GetByNumber(ctx context.Context, number string) (*entity.Part, error) {
	return r.getOne(ctx, "get part by number",
		`SELECT `+partColumns+` FROM parts WHERE lower(part_number) = lower($1)`, number)
}

// List filters, counts and pages the catalog ordered by part code.
func (r *PartRepo) List(ctx context.Context, f repository.PartFilter) ([]*entity.Part, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.IncludeSensitive {
		where = append(where, "NOT is_sensitive")
	}
	if f.LowStockOnly {
		where = append(where, "quantity <= min_quantity")
	}
	if f.BinID != "" {
		where = append(where, "bin_id = "+arg(f.BinID))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := arg("%" + escapeLike(s) + "%")
		where = append(where, fmt.Sprintf(
			"(part_number ILIKE %[1]s OR description ILIKE %[1]s OR value ILIKE %[1]s OR footprint ILIKE %[1]s)", p))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM parts`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count parts: %w", err)
	}

	limit, offset := pageArgs(f.Limit, f.Offset)
	query := `SELECT ` + partColumns + ` FROM parts` + cond +
		` ORDER BY part_number LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()
	var list []*entity.Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan part: %w", err)
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}

// ListNumbers returns every part code starting with prefix, sorted.
func (r *PartRepo) ListNumbers(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.q.Query(ctx,
		`SELECT part_number FROM parts WHERE part_number LIKE $1 ORDER BY part_number`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list part numbers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// FindByValueOrFootprint returns the first part whose value or footprint matches.
func (r *PartRepo) FindByValueOrFootprint(ctx context.Context, value, footprint string) (*entity.Part, error) {
	if value == "" && footprint == "" {
		return nil, nil
	}
	return r.getOne(ctx, "find part by value", `
		SELECT `+partColumns+` FROM parts
		WHERE ($1 <> '' AND lower(value) = lower($1)) OR ($2 <> '' AND lower(footprint) = lower($2))
		ORDER BY id LIMIT 1`, value, footprint)
}

// IsReferenced reports whether a BOM line or a board's finished part points at the part.
func (r *PartRepo) IsReferenced(ctx context.Context, id string) (bool, error) {
	var ref bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM board_parts WHERE part_id = $1)
		    OR EXISTS (SELECT 1 FROM boards WHERE finished_part_id = $1)`, id).Scan(&ref)
	if err != nil {
		return false, fmt.Errorf("part references: %w", err)
	}
	return ref, nil
}

// Delete removes an unused part; rows in the ledger or a BOM keep it alive (ErrConflict).
func (r *PartRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM parts WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("delete part: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetForUpdate reads the part with SELECT ... FOR UPDATE.
func (r *PartRepo) GetForUpdate(ctx context.Context, id string) (*entity.Part, error) {
	return r.getOne(ctx, "get part for update",
		`SELECT `+partColumns+` FROM parts WHERE id = $1 FOR UPDATE`, id)
}

// LockForUpdate locks the rows in ascending id order and returns them in that order.
func (r *PartRepo) LockForUpdate(ctx context.Context, ids []string) ([]*entity.Part, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+partColumns+` FROM parts WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock parts: %w", err)
	}
	defer rows.Close()
	out := make([]*entity.Part, 0, len(ids))
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock parts: %w", err)
	}
	return out, nil
}

// ApplyDelta moves the quantity by delta. The guard in the WHERE clause refuses to go below
// zero, which surfaces as domain.ErrConcurrentConflict.
func (r *PartRepo) ApplyDelta(ctx context.Context, id string, delta int) (int, error) {
	var qty int
	err := r.q.QueryRow(ctx, `
		UPDATE parts SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING quantity`, id, delta).Scan(&qty)
	if err == nil {
		return qty, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("apply part delta: %w", err)
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM parts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("apply part delta: %w", err)
	}
	if !exists {
		return 0, domain.ErrNotFound
	}
	return 0, fmt.Errorf("%w: quantity of part %s would go negative", domain.ErrConcurrentConflict, id)
}

func (r *PartRepo) UpdateUnitCost(ctx context.Context, id string, cost decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx, `UPDATE parts SET unit_cost = $2, updated_at = now() WHERE id = $1`, id, cost)
	if err != nil {
		return fmt.Errorf("update part cost: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
