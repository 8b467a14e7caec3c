package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stanfordssi/sats-inventory/internal/application/auth"
	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/testutil/memstore"
	"github.com/stanfordssi/sats-inventory/pkg/jwt"
)

const secret = "test-secret"

func newAuth(t *testing.T) (*memstore.Store, *auth.AuthUseCase, entity.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	s := memstore.New()
	u := s.AddUser(entity.User{
		ID: uuid.New().String(), Email: "ops@sats.example", Name: "Ops", Role: entity.RoleAdmin, PasswordHash: string(hash),
	})
	uc := auth.NewAuthUseCase(s.Repos().Users, auth.JWTConfig{Secret: secret, ExpMinutes: 60, Issuer: "sats-inventory"})
	return s, uc, u
}

func TestLogin(t *testing.T) {
	_, uc, u := newAuth(t)

	res, err := uc.Login(context.Background(), dto.LoginRequest{Email: "ops@sats.example", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)

	id, err := jwt.Parse(secret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.Subject)
	assert.Equal(t, entity.RoleAdmin, id.Role)

	_, err = uc.Login(context.Background(), dto.LoginRequest{Email: "ops@sats.example", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.Login(context.Background(), dto.LoginRequest{Email: "nobody@sats.example", Password: "hunter22"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResolveIdentity_LocalSubject(t *testing.T) {
	_, uc, u := newAuth(t)

	got, err := uc.ResolveIdentity(context.Background(), u.ID, "", "")

	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestResolveIdentity_ProvisionsMemberOnce(t *testing.T) {
	s, uc, _ := newAuth(t)
	ctx := context.Background()

	first, err := uc.ResolveIdentity(ctx, "oauth|123", "new@sats.example", "")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleMember, first.Role)
	assert.Equal(t, "new", first.Name)

	again, err := uc.ResolveIdentity(ctx, "oauth|123", "new@sats.example", "New Person")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	n, err := s.Repos().Users.CountByRole(ctx, entity.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResolveIdentity_LinksByEmail(t *testing.T) {
	_, uc, u := newAuth(t)

	got, err := uc.ResolveIdentity(context.Background(), "oauth|999", "ops@sats.example", "Ops")

	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, entity.RoleAdmin, got.Role)
}

func TestResolveIdentity_EmptySubject(t *testing.T) {
	_, uc, _ := newAuth(t)

	_, err := uc.ResolveIdentity(context.Background(), "", "a@b.c", "A")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
