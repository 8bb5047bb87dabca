package models

import (
	"time"

	"github.com/google/uuid"
)

// Session tracks an authenticated login with an opaque token and expiry.
type Session struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	SessionToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	IPAddress    string    `json:"ip_address,omitempty"`
	IsActive     bool      `json:"is_active"`
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}
