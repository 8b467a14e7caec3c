package repository

import (
	"context"

	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// BoardRepository persistence port for boards and their BOM lines.
type BoardRepository interface {
	Create(ctx context.Context, board *entity.Board) error
	Update(ctx context.Context, board *entity.Board) error
	GetByID(ctx context.Context, id string) (*entity.Board, error)
	List(ctx context.Context, includeInactive bool) ([]*entity.Board, error)
	Delete(ctx context.Context, id string) error

	// ReplaceLines swaps the whole BOM of a board.
	ReplaceLines(ctx context.Context, boardID string, lines []entity.BOMLine) error
	// LinesWithStock returns the BOM joined with each part's current quantity,
	// read in a single statement.
	LinesWithStock(ctx context.Context, boardID string) ([]entity.BOMLineStock, error)
	// ActiveDemand sums quantity_required per part over all active boards.
	ActiveDemand(ctx context.Context) (map[string]int, error)
}
