package model

import "time"

// Role values stored in users.role.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an account as stored in the `users` table. The password
// hash and the refresh token hash never leave the server: both are tagged
// out of JSON so a User can be returned directly from the profile endpoint.
type User struct {
	ID               uint64    `json:"id"`
	UserName         string    `json:"userName"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Role             string    `json:"role"`
	IsActive         bool      `json:"isActive"`
	RefreshTokenHash string    `json:"-"` // empty when no session is open
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user may manage the catalog.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
