package http

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/usecase"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// maxBOMUpload caps the size of an uploaded BOM export.
const maxBOMUpload = 4 << 20

// BoardHandler serves boards, their BOMs, BOM imports and the board report.
type BoardHandler struct {
	uc     *usecase.BoardUseCase
	labels *usecase.LabelUseCase
}

// NewBoardHandler builds the handler.
func NewBoardHandler(uc *usecase.BoardUseCase, labels *usecase.LabelUseCase) *BoardHandler {
	return &BoardHandler{uc: uc, labels: labels}
}

// Create godoc
// @Summary      Create board with its BOM
// @Tags         boards
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateBoardRequest  true  "Board"
// @Success      201   {object}  dto.BoardDetailResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/boards [post]
func (h *BoardHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateBoardRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.UserContext(), GetUserID(c), GetRole(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      List boards
// @Tags         boards
// @Security     Bearer
// @Produce      json
// @Param        include_inactive  query  bool  false  "Also retired boards (admin)"
// @Success      200  {array}  dto.BoardResponse
// @Router       /api/boards [get]
func (h *BoardHandler) List(c *fiber.Ctx) error {
	all := c.QueryBool("include_inactive", false) && GetRole(c) == entity.RoleAdmin
	out, err := h.uc.List(c.UserContext(), all)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Board with BOM, readiness and cost
// @Tags         boards
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Board id"
// @Success      200  {object}  dto.BoardDetailResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/boards/{id} [get]
func (h *BoardHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), GetRole(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Update board metadata
// @Tags         boards
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "Board id"
// @Param        body  body  dto.UpdateBoardRequest  true  "Fields to change"
// @Success      200   {object}  dto.BoardDetailResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/boards/{id} [put]
func (h *BoardHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateBoardRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Update(c.UserContext(), GetRole(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Deactivate godoc
// @Summary      Retire a board
// @Tags         boards
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Board id"
// @Success      200  {object}  dto.BoardDetailResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/boards/{id}/deactivate [post]
func (h *BoardHandler) Deactivate(c *fiber.Ctx) error {
	out, err := h.uc.Deactivate(c.UserContext(), GetRole(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// ReplaceBOM godoc
// @Summary      Replace the BOM of a board
// @Tags         boards
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "Board id"
// @Param        body  body  dto.ReplaceBOMRequest  true  "Lines"
// @Success      200   {object}  dto.BoardDetailResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/boards/{id}/bom [put]
func (h *BoardHandler) ReplaceBOM(c *fiber.Ctx) error {
	var in dto.ReplaceBOMRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.ReplaceBOM(c.UserContext(), GetRole(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Delete a board that was never built
// @Tags         boards
// @Security     Bearer
// @Param        id   path  string  true  "Board id"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/boards/{id} [delete]
func (h *BoardHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.Delete(c.UserContext(), GetRole(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Import godoc
// @Summary      Create a board from a BOM export
// @Description  Accepts KiCad CSV or XML exports. Unmatched rows become new parts with zero stock.
// @Tags         boards
// @Security     Bearer
// @Accept       mpfd
// @Produce      json
// @Param        file         formData  file    true   "BOM export"
// @Param        name         formData  string  true   "Board name"
// @Param        version      formData  string  false  "Version"  default(1.0)
// @Param        description  formData  string  false  "Description"
// @Param        format       formData  string  false  "csv | kicad-xml"
// @Success      201  {object}  dto.ImportResultResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/boards/import [post]
func (h *BoardHandler) Import(c *fiber.Ctx) error {
	var in dto.ImportBOMRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	data, filename, err := readUpload(c)
	if err != nil {
		return writeError(c, err)
	}
	in.Format = usecase.DetectBOMFormat(in.Format, filename)
	out, err := h.uc.ImportBOM(c.UserContext(), GetUserID(c), GetRole(c), in, data)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// PreviewImport godoc
// @Summary      Parse a BOM export without writing
// @Tags         boards
// @Security     Bearer
// @Accept       mpfd
// @Produce      json
// @Param        file    formData  file    true   "BOM export"
// @Param        format  formData  string  false  "csv | kicad-xml"
// @Success      200  {object}  dto.ImportPreviewResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/boards/import/preview [post]
func (h *BoardHandler) PreviewImport(c *fiber.Ctx) error {
	data, filename, err := readUpload(c)
	if err != nil {
		return writeError(c, err)
	}
	out, err := h.uc.PreviewImport(c.UserContext(), usecase.DetectBOMFormat(c.FormValue("format"), filename), data)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Report godoc
// @Summary      Board report PDF
// @Tags         boards
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "Board id"
// @Success      200
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/boards/{id}/report.pdf [get]
func (h *BoardHandler) Report(c *fiber.Ctx) error {
	doc, err := h.labels.BoardReportPDF(c.UserContext(), GetRole(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="board-report.pdf"`)
	return c.Send(doc)
}

// readUpload returns the multipart "file" field.
func readUpload(c *fiber.Ctx) ([]byte, string, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidInput)
	}
	if fh.Size > maxBOMUpload {
		return nil, "", fmt.Errorf("%w: BOM file larger than %d bytes", domain.ErrInvalidInput, maxBOMUpload)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxBOMUpload+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxBOMUpload {
		return nil, "", fmt.Errorf("%w: BOM file larger than %d bytes", domain.ErrInvalidInput, maxBOMUpload)
	}
	return data, fh.Filename, nil
}
