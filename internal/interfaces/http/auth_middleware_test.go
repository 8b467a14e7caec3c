package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	apphttp "github.com/stanfordssi/sats-inventory/internal/interfaces/http"
	pkgjwt "github.com/stanfordssi/sats-inventory/pkg/jwt"
)

// ──────────────────────────────────────────────────────────────────────────────
// Test helpers
// ──────────────────────────────────────────────────────────────────────────────

const (
	testJWTSecret      = "test-secret-key-for-unit-tests"
	testProviderSecret = "provider-secret-for-unit-tests"
	testUserID         = "00000000-0000-0000-0000-000000000001"
	testIssuer         = "sats-inventory-test"
	testExpMin         = 60
)

// buildTestApp is a minimal Fiber app with AuthMiddleware (claims trusted as is),
// RequireRole and a handler that answers 200 when both let the request through.
func buildTestApp(allowedRoles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret, testProviderSecret, nil),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"ok":   true,
				"role": apphttp.GetRole(c),
			})
		},
	)
	return app
}

func tokenFor(t *testing.T, secret, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(secret, testUserID, "ops@sats.example", "Ops", role, testIssuer, testExpMin)
	require.NoError(t, err)
	return "Bearer " + tok
}

func tokenForRole(t *testing.T, role string) string {
	return tokenFor(t, testJWTSecret, role)
}

func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ──────────────────────────────────────────────────────────────────────────────
// RequireRole
// ──────────────────────────────────────────────────────────────────────────────

func TestRequireRole_AdminReachesAdminRoute(t *testing.T) {
	app := buildTestApp(entity.RoleAdmin)
	resp := doRequest(t, app, tokenForRole(t, entity.RoleAdmin))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, entity.RoleAdmin, body["role"])
}

func TestRequireRole_MemberReachesSharedRoute(t *testing.T) {
	app := buildTestApp(entity.RoleAdmin, entity.RoleMember)
	resp := doRequest(t, app, tokenForRole(t, entity.RoleMember))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireRole_MemberBlockedOnAdminRoute(t *testing.T) {
	app := buildTestApp(entity.RoleAdmin)
	resp := doRequest(t, app, tokenForRole(t, entity.RoleMember))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "FORBIDDEN")
}

func TestRequireRole_TokenWithoutRole_Returns401(t *testing.T) {
	app := buildTestApp(entity.RoleAdmin)
	resp := doRequest(t, app, tokenForRole(t, ""))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "MISSING_ROLE")
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthMiddleware
// ──────────────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_RejectsBadHeaders(t *testing.T) {
	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"no header", "", "MISSING_TOKEN"},
		{"wrong scheme", "Basic abc", "INVALID_TOKEN"},
		{"garbage", "Bearer not.a.token", "INVALID_TOKEN"},
		{"foreign secret", tokenFor(t, "someone-else", entity.RoleAdmin), "INVALID_TOKEN"},
	}
	app := buildTestApp(entity.RoleAdmin)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doRequest(t, app, tc.header)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), tc.code)
		})
	}
}

func TestAuthMiddleware_AcceptsProviderTokens(t *testing.T) {
	app := buildTestApp(entity.RoleMember)
	resp := doRequest(t, app, tokenFor(t, testProviderSecret, entity.RoleMember))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type stubResolver struct {
	user *entity.User
	err  error
	got  []string
}

func (s *stubResolver) ResolveIdentity(_ context.Context, subject, email, name string) (*entity.User, error) {
	s.got = []string{subject, email, name}
	return s.user, s.err
}

func TestAuthMiddleware_RoleComesFromStoredUser(t *testing.T) {
	resolver := &stubResolver{user: &entity.User{ID: "u-42", Name: "Grace", Role: entity.RoleMember}}
	app := fiber.New()
	app.Get("/me", apphttp.AuthMiddleware(testJWTSecret, "", resolver), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":   apphttp.GetUserID(c),
			"role":      apphttp.GetRole(c),
			"user_name": apphttp.GetUserName(c),
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	// the token still says admin; the user was demoted since
	req.Header.Set("Authorization", tokenForRole(t, entity.RoleAdmin))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "u-42", body["user_id"])
	assert.Equal(t, entity.RoleMember, body["role"])
	assert.Equal(t, "Grace", body["user_name"])
	assert.Equal(t, []string{testUserID, "ops@sats.example", "Ops"}, resolver.got)
}

func TestAuthMiddleware_ResolverFailures(t *testing.T) {
	cases := []struct {
		name     string
		resolver *stubResolver
		status   int
		code     string
	}{
		{"unknown subject", &stubResolver{err: domain.ErrUnauthorized}, http.StatusUnauthorized, "UNKNOWN_USER"},
		{"no user", &stubResolver{}, http.StatusUnauthorized, "UNKNOWN_USER"},
		{"store down", &stubResolver{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/me", apphttp.AuthMiddleware(testJWTSecret, "", tc.resolver), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", tokenForRole(t, entity.RoleAdmin))
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(body), tc.code)
		})
	}
}
