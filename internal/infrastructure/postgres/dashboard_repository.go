package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
)

var _ repository.DashboardRepository = (*DashboardRepo)(nil)

// DashboardRepo read-only aggregates for the dashboard.
type DashboardRepo struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository builds the adapter.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepo {
	return &DashboardRepo{pool: pool}
}

func (r *DashboardRepo) PartCounts(ctx context.Context, since time.Time) (repository.PartCounts, error) {
	const query = `
	SELECT
	    count(*)                                           AS total,
	    count(*) FILTER (WHERE quantity <= min_quantity)   AS low_stock,
	    count(*) FILTER (WHERE created_at >= $1)           AS new_since,
	    COALESCE(SUM(quantity * unit_cost), 0)             AS stock_value
	FROM parts`
	var c repository.PartCounts
	if err := r.pool.QueryRow(ctx, query, since).Scan(&c.Total, &c.LowStock, &c.NewSince, &c.StockValue); err != nil {
		return c, fmt.Errorf("dashboard.PartCounts: %w", err)
	}
	return c, nil
}

func (r *DashboardRepo) UserCounts(ctx context.Context, since time.Time) (int, int, error) {
	var total, recent int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE created_at >= $1) FROM users`, since).Scan(&total, &recent)
	if err != nil {
		return 0, 0, fmt.Errorf("dashboard.UserCounts: %w", err)
	}
	return total, recent, nil
}

// BoardCounts counts a board as ready when no BOM line is short for one unit.
func (r *DashboardRepo) BoardCounts(ctx context.Context) (repository.BoardCounts, error) {
	const query = `
	SELECT
	    (SELECT count(*) FROM boards WHERE is_active)                           AS active,
	    (SELECT count(*) FROM boards b
	      WHERE b.is_active
	        AND NOT EXISTS (
	            SELECT 1 FROM board_parts bp
	            JOIN parts p ON p.id = bp.part_id
	            WHERE bp.board_id = b.id AND p.quantity < bp.quantity_required)) AS ready,
	    (SELECT count(*) FROM board_builds)                                     AS builds`
	var c repository.BoardCounts
	if err := r.pool.QueryRow(ctx, query).Scan(&c.Active, &c.Ready, &c.Builds); err != nil {
		return c, fmt.Errorf("dashboard.BoardCounts: %w", err)
	}
	return c, nil
}

func (r *DashboardRepo) TransactionCounts(ctx context.Context, curStart, prevStart time.Time) (int, int, error) {
	var cur, prev int
	err := r.pool.QueryRow(ctx, `
		SELECT
		    count(*) FILTER (WHERE timestamp >= $1),
		    count(*) FILTER (WHERE timestamp >= $2 AND timestamp < $1)
		FROM transactions
		WHERE timestamp >= $2`, curStart, prevStart).Scan(&cur, &prev)
	if err != nil {
		return 0, 0, fmt.Errorf("dashboard.TransactionCounts: %w", err)
	}
	return cur, prev, nil
}
