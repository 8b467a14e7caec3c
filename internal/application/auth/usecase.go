package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
	"github.com/stanfordssi/sats-inventory/pkg/jwt"
)

// JWTConfig configures local token generation.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase logs local accounts in and maps identity-provider subjects onto users.
type AuthUseCase struct {
	userRepo repository.UserRepository
	jwtCfg   JWTConfig
}

// NewAuthUseCase builds the use case.
func NewAuthUseCase(userRepo repository.UserRepository, jwtCfg JWTConfig) *AuthUseCase {
	return &AuthUseCase{userRepo: userRepo, jwtCfg: jwtCfg}
}

// Login checks email/password of a local account and returns a signed token.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := uc.userRepo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, user.ID, user.Email, user.Name, user.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token: token,
		User:  *toUserResponse(user),
	}, nil
}

// ResolveIdentity returns the user behind a token subject. Local tokens carry the user id;
// identity-provider tokens carry the provider subject, which is linked on first sight,
// by email when a matching account exists, otherwise by creating a member.
func (uc *AuthUseCase) ResolveIdentity(ctx context.Context, subject, email, name string) (*entity.User, error) {
	if subject == "" {
		return nil, domain.ErrUnauthorized
	}
	if _, err := uuid.Parse(subject); err == nil {
		u, err := uc.userRepo.GetByID(ctx, subject)
		if err != nil || u != nil {
			return u, err
		}
	}
	u, err := uc.userRepo.GetByAuthID(ctx, subject)
	if err != nil || u != nil {
		return u, err
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if u, err = uc.userRepo.GetByEmail(ctx, email); err != nil || u != nil {
			return u, err
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if name == "" {
		name = "Member"
	}
	now := time.Now().UTC()
	u = &entity.User{
		ID:        uuid.New().String(),
		AuthID:    subject,
		Email:     email,
		Name:      name,
		Role:      entity.RoleMember,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.userRepo.Create(ctx, u); err != nil {
		// a concurrent request provisioned the same subject first
		if errors.Is(err, domain.ErrDuplicate) || errors.Is(err, domain.ErrEmailAlreadyExists) {
			return uc.userRepo.GetByAuthID(ctx, subject)
		}
		return nil, err
	}
	return u, nil
}

// Me returns the caller's profile.
func (uc *AuthUseCase) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	u, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return toUserResponse(u), nil
}

func toUserResponse(u *entity.User) *dto.UserResponse {
	if u == nil {
		return nil
	}
	return &dto.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
