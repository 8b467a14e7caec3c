package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stanfordssi/sats-inventory/internal/application/dto"
	"github.com/stanfordssi/sats-inventory/internal/application/ports"
	"github.com/stanfordssi/sats-inventory/internal/domain"
	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
	"github.com/stanfordssi/sats-inventory/internal/domain/repository"
	"github.com/stanfordssi/sats-inventory/pkg/logger"
)

// UserUseCase applies the rules around users and roles.
type UserUseCase struct {
	txRunner ports.TxRunner
	repo     repository.UserRepository
	log      *logger.Logger
}

// NewUserUseCase builds the use case.
func NewUserUseCase(txRunner ports.TxRunner, repo repository.UserRepository, log *logger.Logger) *UserUseCase {
	if log == nil {
		log = logger.Nop()
	}
	return &UserUseCase{txRunner: txRunner, repo: repo, log: log.Named("users")}
}

// GetByID returns one user.
func (uc *UserUseCase) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return entityToUserResponse(user), nil
}

// List returns every user (admin only).
func (uc *UserUseCase) List(ctx context.Context, role string) ([]dto.UserResponse, error) {
	if role != entity.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	users, err := uc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, *entityToUserResponse(u))
	}
	return out, nil
}

// UpdateRole changes targetID's role. The rules are checked against locked rows inside a
// serializable transaction:
//   - only an admin may change roles, and the request must repeat the target's name;
//   - an admin can never demote another admin;
//   - an admin may step down only while another admin remains.
func (uc *UserUseCase) UpdateRole(ctx context.Context, actorID, targetID string, in dto.UpdateRoleRequest) (*dto.UserResponse, error) {
	if !entity.ValidRole(in.Role) {
		return nil, fmt.Errorf("%w: role must be %s or %s", domain.ErrInvalidInput, entity.RoleAdmin, entity.RoleMember)
	}

	var updated *entity.User
	err := uc.txRunner.RunSerializable(ctx, func(r ports.Repos) error {
		actor, err := r.Users.GetForUpdate(ctx, actorID)
		if err != nil {
			return err
		}
		if actor == nil || !actor.IsAdmin() {
			return domain.ErrForbidden
		}
		target := actor
		if targetID != actorID {
			if target, err = r.Users.GetForUpdate(ctx, targetID); err != nil {
				return err
			}
		}
		if target == nil {
			return domain.ErrUserNotFound
		}
		if !strings.EqualFold(strings.TrimSpace(in.ConfirmName), strings.TrimSpace(target.Name)) {
			return fmt.Errorf("%w: confirmation name does not match", domain.ErrInvalidInput)
		}
		if target.Role == in.Role {
			updated = target
			return nil
		}

		if target.IsAdmin() && in.Role != entity.RoleAdmin {
			if target.ID != actor.ID {
				return fmt.Errorf("%w: an admin cannot demote another admin", domain.ErrForbidden)
			}
			admins, err := r.Users.CountByRole(ctx, entity.RoleAdmin)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return fmt.Errorf("%w: the last admin cannot step down", domain.ErrConflict)
			}
		}

		if err := r.Users.UpdateRole(ctx, target.ID, in.Role); err != nil {
			return err
		}
		target.Role = in.Role
		target.UpdatedAt = time.Now().UTC()
		updated = target
		return nil
	})
	if err != nil {
		uc.log.For(ctx).Warn().Err(err).Str("actor_id", actorID).Str("target_id", targetID).Str("role", in.Role).Msg("role change refused")
		return nil, err
	}
	uc.log.For(ctx).Info().Str("actor_id", actorID).Str("target_id", targetID).Str("role", in.Role).Msg("role changed")
	return entityToUserResponse(updated), nil
}

func entityToUserResponse(u *entity.User) *dto.UserResponse {
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
