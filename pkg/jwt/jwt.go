package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims covers both the tokens this API issues for local accounts and the access
// tokens of the hosted identity provider (HS256, subject = provider user id,
// display name under user_metadata).
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email,omitempty"`
	Name         string         `json:"name,omitempty"`
	Role         string         `json:"app_role,omitempty"` // admin | member; only set on local tokens
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Identity is what the HTTP layer needs from a verified token.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Role    string
}

// Generate signs a token for subject with the given email, display name and role.
func Generate(secret, subject, email, name, role, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: empty secret")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		Email: email,
		Name:  name,
		Role:  role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse validates the token against secret and returns the identity it carries.
// Fails on bad signature, unexpected algorithm, expiry or a missing subject.
func Parse(secret, tokenString string) (*Identity, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt: empty secret")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("jwt: invalid claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("jwt: missing subject")
	}
	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    displayName(claims),
		Role:    claims.Role,
	}, nil
}

func displayName(c *Claims) string {
	if c.Name != "" {
		return c.Name
	}
	for _, key := range []string{"full_name", "name", "user_name"} {
		if s, ok := c.UserMetadata[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
