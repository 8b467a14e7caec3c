package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/analytics"
)

// DashboardHandler serves the dashboard landing page numbers.
type DashboardHandler struct {
	uc *analytics.DashboardUseCase
}

// NewDashboardHandler builds the handler.
func NewDashboardHandler(uc *analytics.DashboardUseCase) *DashboardHandler {
	return &DashboardHandler{uc: uc}
}

// GetStats returns catalog, board and ledger totals plus the recent activity feed.
// GET /api/dashboard/stats
//
// total_users and new_users_this_week are only present for admins.
func (h *DashboardHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.uc.GetStats(c.UserContext(), GetRole(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(stats)
}
