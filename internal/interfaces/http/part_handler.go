package http

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/usecase"
)

// PartHandler serves the parts catalog and the per-part QR codes.
type PartHandler struct {
	uc     *usecase.PartUseCase
	labels *usecase.LabelUseCase
}

// NewPartHandler builds the handler.
func NewPartHandler(uc *usecase.PartUseCase, labels *usecase.LabelUseCase) *PartHandler {
	return &PartHandler{uc: uc, labels: labels}
}

// Create godoc
// @Summary      Create part
// @Description  The opening quantity is recorded as an "Initial stock" addition.
// @Tags         parts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreatePartRequest  true  "Part"
// @Success      201   {object}  dto.PartResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/parts [post]
func (h *PartHandler) Create(c *fiber.Ctx) error {
	var in dto.CreatePartRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.UserContext(), GetUserID(c), GetRole(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Get part by code or id
// @Tags         parts
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Part code or id"
// @Success      200  {object}  dto.PartResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/parts/{id} [get]
func (h *PartHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetRole(c), param(c, "id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// List godoc
// @Summary      List parts
// @Tags         parts
// @Security     Bearer
// @Produce      json
// @Param        search     query  string  false  "Matches code, description, value or footprint"
// @Param        bin_id     query  string  false  "Bin"
// @Param        low_stock  query  bool    false  "Only parts at or below their minimum"
// @Param        limit      query  int     false  "Limit"   default(20)
// @Param        offset     query  int     false  "Offset"  default(0)
// @Success      200        {object}  dto.PartListResponse
// @Router       /api/parts [get]
func (h *PartHandler) List(c *fiber.Ctx) error {
	req := dto.PartListRequest{
		PageRequest: pageOf(c),
		Search:      c.Query("search"),
		BinID:       c.Query("bin_id"),
		LowStock:    c.QueryBool("low_stock", false),
	}
	out, err := h.uc.List(c.UserContext(), GetRole(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Update part
// @Tags         parts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "Part code or id"
// @Param        body  body  dto.UpdatePartRequest  true  "Fields to change"
// @Success      200   {object}  dto.PartResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/parts/{id} [put]
func (h *PartHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdatePartRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Update(c.UserContext(), GetRole(c), param(c, "id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Delete part
// @Description  Refused while a board references the part or it has ledger history.
// @Tags         parts
// @Security     Bearer
// @Param        id   path  string  true  "Part code or id"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/parts/{id} [delete]
func (h *PartHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.UserContext(), GetRole(c), param(c, "id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// NextCode godoc
// @Summary      Next free part code of a subassembly
// @Tags         parts
// @Security     Bearer
// @Produce      json
// @Param        subassembly  query  string  true  "Two-digit subassembly"
// @Success      200  {object}  dto.NextCodeResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/parts/next-code [get]
func (h *PartHandler) NextCode(c *fiber.Ctx) error {
	out, err := h.uc.NextCode(c.UserContext(), c.Query("subassembly"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// QRCode godoc
// @Summary      QR code PNG of a part
// @Tags         parts
// @Security     Bearer
// @Produce      png
// @Param        id    path   string  true   "Part code or id"
// @Param        size  query  int     false  "Pixels (64-1024)"  default(256)
// @Success      200
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/parts/{id}/qr.png [get]
func (h *PartHandler) QRCode(c *fiber.Ctx) error {
	png, err := h.labels.QRPNG(c.UserContext(), GetRole(c), param(c, "id"), c.QueryInt("size", 0))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(png)
}

// Lookup godoc
// @Summary      Resolve a scanned QR link
// @Description  Public. Redirects to the dashboard checkout page of the part.
// @Tags         parts
// @Param        part_id  path  string  true  "Part code"
// @Success      302
// @Router       /qrcode/{part_id} [get]
func (h *PartHandler) Lookup(c *fiber.Ctx) error {
	code := param(c, "part_id")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "part_id is required"})
	}
	return c.Redirect(h.labels.LookupURL(code), fiber.StatusFound)
}

// param returns a path parameter with percent-escapes decoded.
func param(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func pageOf(c *fiber.Ctx) dto.PageRequest {
	p := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	p.DefaultPage()
	return p
}
