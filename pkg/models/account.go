package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider identifies how an account authenticates.
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderGoogle AuthProvider = "google"
)

// AccountRole is an account's global role, independent of any team role.
type AccountRole string

const (
	RoleOwner   AccountRole = "owner"
	RoleManager AccountRole = "manager"
	RoleAdmin   AccountRole = "admin"
	RoleUser    AccountRole = "user"
)

// ValidAccountRoles contains all valid global role values.
var ValidAccountRoles = []AccountRole{RoleOwner, RoleManager, RoleAdmin, RoleUser}

// IsValidAccountRole checks if the given role is valid.
func IsValidAccountRole(r AccountRole) bool {
	for _, v := range ValidAccountRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Account represents a user account.
// PasswordHash is stored opaquely; hashing and verification happen in the
// external auth system and are never performed here.
type Account struct {
	ID                uuid.UUID    `json:"id"`
	Provider          AuthProvider `json:"provider"`
	ProviderAccountID string       `json:"provider_account_id,omitempty"`
	Email             string       `json:"email"`
	Name              string       `json:"name,omitempty"`
	Username          string       `json:"username"`
	Role              AccountRole  `json:"role"`
	AvatarURL         string       `json:"avatar_url,omitempty"`
	PasswordHash      string       `json:"-"`
	EmailVerified     bool         `json:"email_verified"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}
