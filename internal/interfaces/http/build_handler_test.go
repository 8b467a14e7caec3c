package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/application/build"
	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	apphttp "github.com/stanfordssi/sats-inventory/internal/interfaces/http"
	"github.com/stanfordssi/sats-inventory/internal/testutil/memstore"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fixtures
// ──────────────────────────────────────────────────────────────────────────────

const (
	epsBoard = "board-eps"
	regPart  = "part-reg"
	capPart  = "part-cap"
)

// seedEPS: EPS v2.0 needs 1 × PWR-REG and 4 × CAP-10U.
func seedEPS(regStock, capStock int) *memstore.Store {
	s := memstore.New()
	s.AddUser(entity.User{ID: testUserID, Name: "Ops", Role: entity.RoleMember})
	s.AddPart(entity.Part{ID: regPart, Number: "PWR-REG", Description: "Buck regulator", Quantity: regStock})
	s.AddPart(entity.Part{ID: capPart, Number: "CAP-10U", Description: "10uF 0805", Quantity: capStock})
	s.AddBoard(entity.Board{ID: epsBoard, Name: "EPS", Version: "2.0", IsActive: true},
		entity.BOMLine{PartID: regPart, QuantityRequired: 1},
		entity.BOMLine{PartID: capPart, QuantityRequired: 4},
	)
	return s
}

func buildApp(runner apphttp.BuildRunner, query apphttp.BuildQuerier) *fiber.App {
	h := apphttp.NewBuildHandler(runner, query)
	app := fiber.New(fiber.Config{ErrorHandler: apphttp.ErrorHandler})
	boards := app.Group("/api/boards", apphttp.AuthMiddleware(testJWTSecret, "", nil))
	boards.Get("/:id/feasibility", h.Feasibility)
	boards.Post("/:id/build", h.Build)
	boards.Get("/:id/builds", h.Builds)
	return app
}

func engineFor(s *memstore.Store) *build.Engine {
	r := s.Repos()
	return build.NewEngine(s.TxRunner(), r.Boards, r.Users, r.Builds, nil, nil, time.Second)
}

func appFor(s *memstore.Store) *fiber.App {
	eng := engineFor(s)
	return buildApp(build.NewRunner(eng, build.RetryPolicy{MaxRetries: 2}), eng)
}

func call(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", tokenForRole(t, entity.RoleMember))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

// ──────────────────────────────────────────────────────────────────────────────
// POST /api/boards/:id/build
// ──────────────────────────────────────────────────────────────────────────────

func TestBuildHandler_Success(t *testing.T) {
	s := seedEPS(3, 10)
	app := appFor(s)

	resp, body := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", `{"quantity":2,"notes":"qual unit"}`)

	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out dto.BuildResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out.BuildID)
	assert.Equal(t, "Built 2 × EPS v2.0", out.Message)
	assert.ElementsMatch(t, []dto.ConsumedDTO{
		{PartID: "PWR-REG", UnitsConsumed: 2},
		{PartID: "CAP-10U", UnitsConsumed: 8},
	}, out.Consumed)

	assert.Equal(t, 1, s.Quantity(regPart))
	assert.Equal(t, 2, s.Quantity(capPart))
	assert.Len(t, s.Builds(), 1)
}

func TestBuildHandler_QuantityDefaultsToOne(t *testing.T) {
	s := seedEPS(3, 10)
	app := appFor(s)

	resp, body := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", "")

	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, 2, s.Quantity(regPart))
	assert.Equal(t, 6, s.Quantity(capPart))
}

func TestBuildHandler_InsufficientStockListsShortfalls(t *testing.T) {
	s := seedEPS(3, 5)
	app := appFor(s)

	resp, body := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", `{"quantity":2}`)

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var out dto.BuildErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, build.KindInsufficientStock, out.ErrorKind)
	require.Len(t, out.Shortfalls, 1)
	assert.Equal(t, "CAP-10U", out.Shortfalls[0].PartNumber)
	assert.Equal(t, 8, out.Shortfalls[0].Required)
	assert.Equal(t, 5, out.Shortfalls[0].Available)

	assert.Equal(t, 3, s.Quantity(regPart), "a rejected build consumes nothing")
	assert.Equal(t, 5, s.Quantity(capPart))
	assert.Empty(t, s.Transactions())
}

func TestBuildHandler_ErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
	}{
		{"unknown board", "/api/boards/nope/build", `{"quantity":1}`, http.StatusNotFound, build.KindBoardNotFound},
		{"zero quantity", "/api/boards/" + epsBoard + "/build", `{"quantity":0}`, http.StatusBadRequest, build.KindInvalidInput},
		{"negative quantity", "/api/boards/" + epsBoard + "/build", `{"quantity":-3}`, http.StatusBadRequest, build.KindInvalidInput},
		{"broken body", "/api/boards/" + epsBoard + "/build", `{"quantity":`, http.StatusBadRequest, build.KindInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := seedEPS(3, 10)
			resp, body := call(t, appFor(s), http.MethodPost, tc.path, tc.body)

			assert.Equal(t, tc.status, resp.StatusCode, string(body))
			var out dto.BuildErrorResponse
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Equal(t, tc.kind, out.ErrorKind)
			assert.Empty(t, s.Builds())
		})
	}
}

func TestBuildHandler_RepeatedRequestKeyIsRefused(t *testing.T) {
	s := seedEPS(3, 10)
	app := appFor(s)
	req := `{"quantity":1,"request_key":"bench-7"}`

	first, _ := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", req)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second, body := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", req)
	assert.Equal(t, http.StatusConflict, second.StatusCode)
	var out dto.BuildErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, build.KindDuplicateRequest, out.ErrorKind)
	assert.Equal(t, 2, s.Quantity(regPart), "only the first request consumed stock")
}

type failingRunner struct{ err error }

func (f failingRunner) Build(context.Context, build.Input) (*build.Result, error) {
	return nil, f.err
}

func TestBuildHandler_RetryExhaustedIsServiceUnavailable(t *testing.T) {
	s := seedEPS(3, 10)
	err := fmt.Errorf("%w: %w", build.ErrTryAgain, domain.ErrConcurrentConflict)
	app := buildApp(failingRunner{err}, engineFor(s))

	resp, body := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", `{"quantity":1}`)

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
	var out dto.BuildErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, build.KindConcurrentConflict, out.ErrorKind)
	assert.Equal(t, build.ErrTryAgain.Error(), out.Message)
}

func TestBuildHandler_PersistenceFailureHidesDetails(t *testing.T) {
	s := seedEPS(3, 10)
	err := fmt.Errorf("%w: write tcp 10.0.0.5:5432: broken pipe", domain.ErrPersistenceFailure)
	app := buildApp(failingRunner{err}, engineFor(s))

	resp, body := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", `{"quantity":1}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(body), "10.0.0.5")
	var out dto.BuildErrorResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, build.KindPersistenceFailure, out.ErrorKind)
}

// ──────────────────────────────────────────────────────────────────────────────
// Feasibility and history
// ──────────────────────────────────────────────────────────────────────────────

func TestBuildHandler_Feasibility(t *testing.T) {
	s := seedEPS(3, 10)
	app := appFor(s)

	resp, body := call(t, app, http.MethodGet, "/api/boards/"+epsBoard+"/feasibility?quantity=3", "")

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out dto.FeasibilityResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.CanBuild, "3 units need 12 capacitors")
	require.NotNil(t, out.MaxBuildable)
	assert.Equal(t, 2, *out.MaxBuildable)
	require.Len(t, out.Shortfalls, 1)
	assert.Equal(t, "CAP-10U", out.Shortfalls[0].PartNumber)
	assert.Equal(t, 3, s.Quantity(regPart), "feasibility is read-only")
}

func TestBuildHandler_History(t *testing.T) {
	s := seedEPS(5, 20)
	app := appFor(s)
	for i := 0; i < 3; i++ {
		resp, _ := call(t, app, http.MethodPost, "/api/boards/"+epsBoard+"/build", `{"quantity":1}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := call(t, app, http.MethodGet, "/api/boards/"+epsBoard+"/builds?limit=2", "")

	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out dto.BuildListResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Items, 2)
	assert.Equal(t, 3, out.Page.Total)
	assert.Equal(t, "EPS v2.0", out.Items[0].Board)
	assert.Equal(t, "Ops", out.Items[0].BuilderName)
}
