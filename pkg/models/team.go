package models

import (
	"time"

	"github.com/google/uuid"
)

// Team is a group of accounts that can share data sources.
// An account relates to a team through three disjoint relations: the singular
// owner (OwnerID), the member relation, and the manager relation. The set of
// teams "associated with" an account is the union of all three.
type Team struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"` // SET NULL when the owner account is deleted
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TeamMember is a row in the team member relation.
type TeamMember struct {
	TeamID    uuid.UUID `json:"team_id"`
	AccountID uuid.UUID `json:"account_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// TeamManager is a row in the team manager relation.
type TeamManager struct {
	TeamID     uuid.UUID `json:"team_id"`
	AccountID  uuid.UUID `json:"account_id"`
	AssignedAt time.Time `json:"assigned_at"`
}
