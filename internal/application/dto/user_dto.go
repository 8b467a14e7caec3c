package dto

import "time"

// UserResponse is a user without credentials.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the local JWT.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UpdateRoleRequest is the body of PATCH /api/users/:id/role.
// ConfirmName must repeat the target user's name.
type UpdateRoleRequest struct {
	Role        string `json:"role" validate:"required,oneof=admin member"`
	ConfirmName string `json:"confirm_name" validate:"required"`
}
