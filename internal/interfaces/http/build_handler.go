package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/build"
	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// BuildRunner executes builds. Implemented by *build.Runner and *build.Engine.
type BuildRunner interface {
	Build(ctx context.Context, in build.Input) (*build.Result, error)
}

// BuildQuerier answers read-only build questions. Implemented by *build.Engine.
type BuildQuerier interface {
	Check(ctx context.Context, boardID string, quantity int, role string) (*build.Feasibility, error)
	History(ctx context.Context, boardID string, limit, offset int) ([]entity.BuildView, int, error)
}

// BuildHandler serves feasibility checks, builds and build history of a board.
type BuildHandler struct {
	runner BuildRunner
	query  BuildQuerier
}

// NewBuildHandler builds the handler.
func NewBuildHandler(runner BuildRunner, query BuildQuerier) *BuildHandler {
	return &BuildHandler{runner: runner, query: query}
}

// Feasibility godoc
// @Summary      Can the board be built
// @Tags         builds
// @Security     Bearer
// @Produce      json
// @Param        id        path   string  true   "Board id"
// @Param        quantity  query  int     false  "Units"  default(1)
// @Success      200  {object}  dto.FeasibilityResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/boards/{id}/feasibility [get]
func (h *BuildHandler) Feasibility(c *fiber.Ctx) error {
	f, err := h.query.Check(c.UserContext(), c.Params("id"), c.QueryInt("quantity", 1), GetRole(c))
	if err != nil {
		return writeError(c, err)
	}
	out := dto.FeasibilityResponse{
		BoardID:      f.BoardID,
		Board:        f.Board,
		Quantity:     f.Quantity,
		CanBuild:     f.CanBuild,
		Requirements: make([]dto.ConsumedDTO, 0, len(f.Requirements)),
		Shortfalls:   f.Shortfalls,
	}
	if out.Shortfalls == nil {
		out.Shortfalls = []domain.Shortfall{}
	}
	if f.Bounded {
		out.MaxBuildable = &f.MaxBuildable
	}
	for _, r := range f.Requirements {
		out.Requirements = append(out.Requirements, dto.ConsumedDTO{PartID: r.PartNumber, UnitsConsumed: r.Units})
	}
	return c.JSON(out)
}

// Build godoc
// @Summary      Build a board
// @Description  Consumes every BOM part and records the build atomically, or changes nothing.
// @Tags         builds
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string            true  "Board id"
// @Param        body  body  dto.BuildRequest  true  "Quantity defaults to 1"
// @Success      201  {object}  dto.BuildResponse
// @Failure      400  {object}  dto.BuildErrorResponse
// @Failure      404  {object}  dto.BuildErrorResponse
// @Failure      409  {object}  dto.BuildErrorResponse
// @Failure      503  {object}  dto.BuildErrorResponse
// @Router       /api/boards/{id}/build [post]
func (h *BuildHandler) Build(c *fiber.Ctx) error {
	var in dto.BuildRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.BuildErrorResponse{ErrorKind: build.KindInvalidInput, Message: "invalid request body"})
		}
	}
	quantity := 1
	if in.Quantity != nil {
		quantity = *in.Quantity
	}

	res, err := h.runner.Build(c.UserContext(), build.Input{
		BoardID:    c.Params("id"),
		Quantity:   quantity,
		ActorID:    GetUserID(c),
		Notes:      in.Notes,
		RequestKey: in.RequestKey,
	})
	if err != nil {
		return writeBuildError(c, err)
	}

	out := dto.BuildResponse{
		BuildID:  res.BuildID,
		Consumed: make([]dto.ConsumedDTO, 0, len(res.Consumed)),
		Message:  res.Message,
	}
	for _, cs := range res.Consumed {
		out.Consumed = append(out.Consumed, dto.ConsumedDTO{PartID: cs.PartNumber, UnitsConsumed: cs.Units})
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Builds godoc
// @Summary      Build history of a board
// @Tags         builds
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "Board id"
// @Param        limit   query  int     false  "Limit"   default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.BuildListResponse
// @Router       /api/boards/{id}/builds [get]
func (h *BuildHandler) Builds(c *fiber.Ctx) error {
	page := pageOf(c)
	views, total, err := h.query.History(c.UserContext(), c.Params("id"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	items := make([]dto.BuildRecordResponse, 0, len(views))
	for _, v := range views {
		items = append(items, dto.BuildRecordResponse{
			ID:            v.ID,
			BoardID:       v.BoardID,
			Board:         v.BoardName + " v" + v.BoardVersion,
			BuiltBy:       v.BuiltBy,
			BuilderName:   v.BuilderName,
			QuantityBuilt: v.QuantityBuilt,
			Notes:         v.Notes,
			BuiltAt:       v.BuiltAt,
		})
	}
	return c.JSON(dto.BuildListResponse{
		Items: items,
		Page:  page.Of(total),
	})
}

// writeBuildError reports a rejected build with its failure kind.
//
//	InvalidInput        → 400
//	BoardNotFound       → 404
//	InsufficientStock   → 409 (with shortfalls)
//	DuplicateRequest    → 409
//	ConcurrentConflict  → 503, the caller may retry
//	PersistenceFailure  → 503 once retries gave up, 500 otherwise
func writeBuildError(c *fiber.Ctx, err error) error {
	kind := build.Kind(err)
	body := dto.BuildErrorResponse{ErrorKind: kind, Message: err.Error()}

	status := fiber.StatusInternalServerError
	switch kind {
	case build.KindInvalidInput:
		status = fiber.StatusBadRequest
	case build.KindBoardNotFound:
		status = fiber.StatusNotFound
	case build.KindInsufficientStock:
		status = fiber.StatusConflict
		body.Shortfalls = domain.ShortfallsOf(err)
	case build.KindDuplicateRequest:
		status = fiber.StatusConflict
	case build.KindConcurrentConflict:
		status = fiber.StatusServiceUnavailable
	case build.KindPersistenceFailure:
		if errors.Is(err, build.ErrTryAgain) {
			status = fiber.StatusServiceUnavailable
		}
	}
	if errors.Is(err, build.ErrTryAgain) {
		c.Set(fiber.HeaderRetryAfter, "1")
		body.Message = build.ErrTryAgain.Error()
	}
	if status == fiber.StatusInternalServerError {
		c.Locals(localError, err)
		if body.ErrorKind == "" {
			body.ErrorKind = build.KindPersistenceFailure
		}
		body.Message = "the build could not be saved"
	}
	return c.Status(status).JSON(body)
}
