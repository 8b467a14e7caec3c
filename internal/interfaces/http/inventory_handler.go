package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/inventory"
)

// InventoryHandler serves stock movements, holdings, replenishment and the ledger.
type InventoryHandler struct {
	ledger        *inventory.LedgerUseCase
	replenishment *inventory.ReplenishmentUseCase
}

// NewInventoryHandler builds the handler.
func NewInventoryHandler(ledger *inventory.LedgerUseCase, replenishment *inventory.ReplenishmentUseCase) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, replenishment: replenishment}
}

type movementFunc func(ctx context.Context, actorID, role string, in dto.StockMovementRequest) (*dto.MovementResponse, error)

func (h *InventoryHandler) movement(c *fiber.Ctx, apply movementFunc) error {
	var in dto.StockMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.PartID == "" || in.Quantity < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "part_id and a positive quantity are required"})
	}
	out, err := apply(c.UserContext(), GetUserID(c), GetRole(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// AddStock godoc
// @Summary      Add stock
// @Description  Optional unit_cost is blended into the weighted average cost.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StockMovementRequest  true  "Movement"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/add-stock [post]
func (h *InventoryHandler) AddStock(c *fiber.Ctx) error {
	return h.movement(c, h.ledger.AddStock)
}

// Checkout godoc
// @Summary      Check parts out
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StockMovementRequest  true  "Movement"
// @Success      201   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/checkout [post]
func (h *InventoryHandler) Checkout(c *fiber.Ctx) error {
	return h.movement(c, h.ledger.Checkout)
}

// Return godoc
// @Summary      Return checked-out parts
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StockMovementRequest  true  "Movement"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/return [post]
func (h *InventoryHandler) Return(c *fiber.Ctx) error {
	return h.movement(c, h.ledger.Return)
}

// Consume godoc
// @Summary      Consume parts
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StockMovementRequest  true  "Movement"
// @Success      201   {object}  dto.MovementResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/consume [post]
func (h *InventoryHandler) Consume(c *fiber.Ctx) error {
	return h.movement(c, h.ledger.Consume)
}

// Adjust godoc
// @Summary      Adjust stock
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustStockRequest  true  "Signed correction with notes"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/adjust [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustStockRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.ledger.Adjust(c.UserContext(), GetUserID(c), GetRole(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Outstanding godoc
// @Summary      Parts users still hold
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        user_id  query  string  false  "Only this user"
// @Success      200  {array}  dto.OutstandingDTO
// @Router       /api/inventory/outstanding [get]
func (h *InventoryHandler) Outstanding(c *fiber.Ctx) error {
	out, err := h.ledger.Outstanding(c.UserContext(), c.Query("user_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// MyItems godoc
// @Summary      Parts the caller still holds
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.OutstandingDTO
// @Router       /api/inventory/my-items [get]
func (h *InventoryHandler) MyItems(c *fiber.Ctx) error {
	out, err := h.ledger.MyItems(c.UserContext(), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetReplenishmentList godoc
// @Summary      Replenishment suggestions
// @Description  Low-stock parts, most urgent first, with suggested order quantity and cost.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.ReplenishmentSuggestionDTO
// @Router       /api/inventory/replenishment [get]
func (h *InventoryHandler) GetReplenishmentList(c *fiber.Ctx) error {
	out, err := h.replenishment.GenerateReplenishmentList(c.UserContext(), GetRole(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Transactions godoc
// @Summary      Ledger
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        part_id   query  string  false  "Part code or id"
// @Param        user_id   query  string  false  "User"
// @Param        type      query  string  false  "addition|checkout|return|consumption|adjustment"
// @Param        build_id  query  string  false  "Build"
// @Param        since     query  string  false  "RFC 3339 or YYYY-MM-DD"
// @Param        until     query  string  false  "RFC 3339 or YYYY-MM-DD"
// @Param        limit     query  int     false  "Limit"   default(20)
// @Param        offset    query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.TransactionListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/transactions [get]
func (h *InventoryHandler) Transactions(c *fiber.Ctx) error {
	req := dto.TransactionListRequest{
		PageRequest: pageOf(c),
		PartID:      c.Query("part_id"),
		UserID:      c.Query("user_id"),
		Type:        c.Query("type"),
		BuildID:     c.Query("build_id"),
		Since:       c.Query("since"),
		Until:       c.Query("until"),
	}
	out, err := h.ledger.Transactions(c.UserContext(), GetRole(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
