package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

var _ repository.BoardRepository = (*BoardRepo)(nil)

const boardColumns = `id, name, version, description, is_active,
	COALESCE(finished_part_id::text, ''), COALESCE(created_by::text, ''), created_at, updated_at`

// BoardRepo BoardRepository over PostgreSQL (usable with the pool or a tx).
type BoardRepo struct {
	q Querier
}

// NewBoardRepository builds the adapter. Pass the pool or a tx (Querier).
func NewBoardRepository(q Querier) *BoardRepo {
	return &BoardRepo{q: q}
}

func scanBoard(row pgx.Row) (*entity.Board, error) {
	var b entity.Board
	if err := row.Scan(&b.ID, &b.Name, &b.Version, &b.Description, &b.IsActive,
		&b.FinishedPartID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BoardRepo) Create(ctx context.Context, b *entity.Board) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO boards (id, name, version, description, is_active, finished_part_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, NULLIF($7, '')::uuid, $8, $9)`,
		b.ID, b.Name, b.Version, b.Description, b.IsActive, b.FinishedPartID, b.CreatedBy, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

// Update writes the board metadata; the BOM changes through ReplaceLines.
func (r *BoardRepo) Update(ctx context.Context, b *entity.Board) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE boards SET name = $2, version = $3, description = $4, is_active = $5,
			finished_part_id = NULLIF($6, '')::uuid, updated_at = $7
		WHERE id = $1`,
		b.ID, b.Name, b.Version, b.Description, b.IsActive, b.FinishedPartID, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("update board: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id string) (*entity.Board, error) {
	b, err := scanBoard(r.q.QueryRow(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get board: %w", err)
	}
	return b, nil
}

func (r *BoardRepo) List(ctx context.Context, includeInactive bool) ([]*entity.Board, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+boardColumns+` FROM boards
		WHERE is_active OR $1
		ORDER BY name, version`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()
	var list []*entity.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// Delete removes the board and, by cascade, its BOM. Boards with build records are kept (ErrConflict).
func (r *BoardRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrConflict
		}
		if isInvalidText(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete board: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceLines deletes the current BOM and inserts lines in the given order.
func (r *BoardRepo) ReplaceLines(ctx context.Context, boardID string, lines []entity.BOMLine) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM board_parts WHERE board_id = $1`, boardID); err != nil {
		return fmt.Errorf("clear BOM: %w", err)
	}
	for i, l := range lines {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := r.q.Exec(ctx, `
			INSERT INTO board_parts (id, board_id, part_id, quantity_required, notes, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, boardID, l.PartID, l.QuantityRequired, l.Notes, i,
		)
		if err != nil {
			switch {
			case isUniqueViolation(err):
				return domain.ErrDuplicate
			case isForeignKeyViolation(err):
				return domain.ErrNotFound
			case isCheckViolation(err):
				return domain.ErrInvalidInput
			}
			return fmt.Errorf("insert BOM line: %w", err)
		}
	}
	return nil
}

// LinesWithStock joins the BOM with live part data in a single statement.
func (r *BoardRepo) LinesWithStock(ctx context.Context, boardID string) ([]entity.BOMLineStock, error) {
	rows, err := r.q.Query(ctx, `
		SELECT bp.id, bp.board_id, bp.part_id, bp.quantity_required, bp.notes, bp.position,
		       p.part_number, p.description, p.quantity, p.unit_cost, p.is_sensitive
		FROM board_parts bp
		JOIN parts p ON p.id = bp.part_id
		WHERE bp.board_id = $1
		ORDER BY bp.position, p.part_number`, boardID)
	if err != nil {
		return nil, fmt.Errorf("BOM with stock: %w", err)
	}
	defer rows.Close()
	var out []entity.BOMLineStock
	for rows.Next() {
		var l entity.BOMLineStock
		if err := rows.Scan(&l.ID, &l.BoardID, &l.PartID, &l.QuantityRequired, &l.Notes, &l.Position,
			&l.PartNumber, &l.Description, &l.Available, &l.UnitCost, &l.IsSensitive); err != nil {
			return nil, fmt.Errorf("scan BOM line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ActiveDemand sums quantity_required per part across active boards.
func (r *BoardRepo) ActiveDemand(ctx context.Context) (map[string]int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT bp.part_id, SUM(bp.quantity_required)
		FROM board_parts bp
		JOIN boards b ON b.id = bp.board_id
		WHERE b.is_active
		GROUP BY bp.part_id`)
	if err != nil {
		return nil, fmt.Errorf("active demand: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			partID string
			qty    int
		)
		if err := rows.Scan(&partID, &qty); err != nil {
			return nil, fmt.Errorf("scan demand: %w", err)
		}
		out[partID] = qty
	}
	return out, rows.Err()
}
