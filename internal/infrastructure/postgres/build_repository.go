package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

var _ repository.BuildRepository = (*BuildRepo)(nil)

const buildViewSelect = `
	SELECT bb.id, bb.board_id, bb.built_by, bb.quantity_built, bb.notes, COALESCE(bb.request_key, ''), bb.built_at,
	       b.name, b.version, COALESCE(u.name, '')
	FROM board_builds bb
	JOIN boards b ON b.id = bb.board_id
	LEFT JOIN users u ON u.id = bb.built_by`

// BuildRepo build records over PostgreSQL (usable with the pool or a tx).
type BuildRepo struct {
	q Querier
}

// NewBuildRepository builds the adapter. Pass the pool or a tx (Querier).
func NewBuildRepository(q Querier) *BuildRepo {
	return &BuildRepo{q: q}
}

func (r *BuildRepo) Create(ctx context.Context, b *entity.BuildRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO board_builds (id, board_id, built_by, quantity_built, notes, request_key, built_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		b.ID, b.BoardID, b.BuiltBy, b.QuantityBuilt, b.Notes, b.RequestKey, b.BuiltAt,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return domain.ErrDuplicate
		case isForeignKeyViolation(err):
			return domain.ErrBoardNotFound
		case isCheckViolation(err):
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

func (r *BuildRepo) GetByRequestKey(ctx context.Context, key string) (*entity.BuildRecord, error) {
	if key == "" {
		return nil, nil
	}
	var b entity.BuildRecord
	err := r.q.QueryRow(ctx, `
		SELECT id, board_id, built_by, quantity_built, notes, request_key, built_at
		FROM board_builds WHERE request_key = $1`, key).Scan(
		&b.ID, &b.BoardID, &b.BuiltBy, &b.QuantityBuilt, &b.Notes, &b.RequestKey, &b.BuiltAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get build by key: %w", err)
	}
	return &b, nil
}

func scanBuildViews(rows pgx.Rows) ([]entity.BuildView, error) {
	defer rows.Close()
	var out []entity.BuildView
	for rows.Next() {
		var v entity.BuildView
		if err := rows.Scan(&v.ID, &v.BoardID, &v.BuiltBy, &v.QuantityBuilt, &v.Notes, &v.RequestKey, &v.BuiltAt,
			&v.BoardName, &v.BoardVersion, &v.BuilderName); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListByBoard pages a board's builds newest first.
func (r *BuildRepo) ListByBoard(ctx context.Context, boardID string, limit, offset int) ([]entity.BuildView, int, error) {
	total, err := r.CountByBoard(ctx, boardID)
	if err != nil {
		return nil, 0, err
	}
	l, o := pageArgs(limit, offset)
	rows, err := r.q.Query(ctx, buildViewSelect+`
		WHERE bb.board_id = $1
		ORDER BY bb.built_at DESC, bb.id LIMIT $2 OFFSET $3`, boardID, l, o)
	if err != nil {
		return nil, 0, fmt.Errorf("list builds: %w", err)
	}
	list, err := scanBuildViews(rows)
	return list, total, err
}

func (r *BuildRepo) CountByBoard(ctx context.Context, boardID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM board_builds WHERE board_id = $1`, boardID).Scan(&n); err != nil {
		if isInvalidText(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count builds: %w", err)
	}
	return n, nil
}

func (r *BuildRepo) Recent(ctx context.Context, limit int) ([]entity.BuildView, error) {
	rows, err := r.q.Query(ctx, buildViewSelect+` ORDER BY bb.built_at DESC, bb.id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent builds: %w", err)
	}
	return scanBuildViews(rows)
}
