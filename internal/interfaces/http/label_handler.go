package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/usecase"
)

// LabelHandler serves printable QR label sheets.
type LabelHandler struct {
	uc *usecase.LabelUseCase
}

// NewLabelHandler builds the handler.
func NewLabelHandler(uc *usecase.LabelUseCase) *LabelHandler {
	return &LabelHandler{uc: uc}
}

// LabelsPDF godoc
// @Summary      QR label sheet
// @Tags         labels
// @Security     Bearer
// @Accept       json
// @Produce      application/pdf
// @Param        body  body  dto.LabelPDFRequest  true  "Parts and layout"
// @Success      200
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/labels/pdf [post]
func (h *LabelHandler) LabelsPDF(c *fiber.Ctx) error {
	var in dto.LabelPDFRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	doc, err := h.uc.LabelsPDF(c.UserContext(), GetRole(c), in)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="part-labels.pdf"`)
	return c.Send(doc)
}
