package entity

import "time"

// Roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool { return r == RoleAdmin || r == RoleMember }

// User is a club member. AuthID links the row to the identity provider subject;
// PasswordHash is only set for local accounts.
type User struct {
	ID           string
	AuthID       string
	Email        string
	Name         string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the privileged role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
