package http

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/pkg/jwt"
)

// Locals keys set by AuthMiddleware.
const (
	LocalUserID   = "user_id"
	LocalRole     = "role"
	LocalUserName = "user_name"
)

// IdentityResolver maps a verified token subject onto a stored user.
// Implemented by *auth.AuthUseCase.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, subject, email, name string) (*entity.User, error)
}

// AuthMiddleware validates the Bearer token and loads the caller into c.Locals.
//
// Tokens signed with localSecret (issued by /api/auth/login) are tried first, then tokens
// of the identity provider signed with providerSecret. With a resolver the role comes from
// the stored user, so role changes apply to tokens already issued; without one the token
// claims are trusted as is.
func AuthMiddleware(localSecret, providerSecret string, resolver IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header required"})
		}
		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "format: Bearer <token>"})
		}
		tokenString = strings.TrimSpace(tokenString)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "empty token"})
		}

		id, err := jwt.Parse(localSecret, tokenString)
		if err != nil && providerSecret != "" && providerSecret != localSecret {
			id, err = jwt.Parse(providerSecret, tokenString)
		}
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "invalid or expired token"})
		}

		if resolver == nil {
			c.Locals(LocalUserID, id.Subject)
			c.Locals(LocalRole, id.Role)
			c.Locals(LocalUserName, id.Name)
			return c.Next()
		}
		user, err := resolver.ResolveIdentity(c.UserContext(), id.Subject, id.Email, id.Name)
		if err != nil && !errors.Is(err, domain.ErrUnauthorized) {
			c.Locals(localError, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "AUTH_UNAVAILABLE", Message: "could not load the caller, try again"})
		}
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNKNOWN_USER", Message: "token does not map to a user"})
		}
		c.Locals(LocalUserID, user.ID)
		c.Locals(LocalRole, user.Role)
		c.Locals(LocalUserName, user.Name)
		return c.Next()
	}
}

// RequireRole lets the request through only when the caller's role is one of roles.
// Must run after AuthMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := GetRole(c)
		if role == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "token carries no role"})
		}
		if !slices.Contains(roles, role) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "insufficient permissions"})
		}
		return c.Next()
	}
}

// GetUserID returns the caller's user id (after AuthMiddleware).
func GetUserID(c *fiber.Ctx) string { return localString(c, LocalUserID) }

// GetRole returns the caller's role (after AuthMiddleware).
func GetRole(c *fiber.Ctx) string { return localString(c, LocalRole) }

// GetUserName returns the caller's display name (after AuthMiddleware).
func GetUserName(c *fiber.Ctx) string { return localString(c, LocalUserName) }

func localString(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}
