package repository

import (
	"context"

	"github.com/stanfordssi/sats-inventory/internal/domain/entity"
)

// UserRepository persistence port for users. Getters return (nil, nil) when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByAuthID(ctx context.Context, authID string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetForUpdate(ctx context.Context, id string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	UpdateRole(ctx context.Context, id, role string) error
	CountByRole(ctx context.Context, role string) (int, error)
}
