// Package authz implements the access-control policy for owned and
// team-scoped resources. The policy is evaluated in order, first match wins:
// global admin, resource owner, team membership. Everything else is denied.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/models"
)

// Actor is an authenticated account performing a request.
type Actor struct {
	ID   uuid.UUID
	Role models.AccountRole
}

// IsAdmin reports whether the actor carries the global admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// MembershipStore resolves the three team relations for an account.
// Satisfied by repositories.TeamRepository.
type MembershipStore interface {
	OwnedTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
	MemberTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
	ManagerTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
}

// Authorizer decides whether an actor may access a resource.
type Authorizer struct {
	teams MembershipStore
}

// NewAuthorizer creates an Authorizer backed by the given membership store.
func NewAuthorizer(teams MembershipStore) *Authorizer {
	return &Authorizer{teams: teams}
}

// CanAccess decides ALLOW or DENY for a single resource, identified by its
// optional owner and optional team. Invoked identically for read, update and
// delete. Returns nil on ALLOW and apperrors.ErrForbidden on DENY.
func (a *Authorizer) CanAccess(ctx context.Context, actor Actor, ownerID, teamID *uuid.UUID) error {
	if actor.IsAdmin() {
		return nil
	}

	if ownerID != nil && *ownerID == actor.ID {
		return nil
	}

	if teamID != nil {
		teamIDs, err := a.TeamIDsForAccount(ctx, actor.ID)
		if err != nil {
			return fmt.Errorf("failed to resolve team membership: %w", err)
		}
		for _, id := range teamIDs {
			if id == *teamID {
				return nil
			}
		}
	}

	return apperrors.ErrForbidden
}

// TeamIDsForAccount returns every team associated with an account: teams it
// owns, teams it is a member of, and teams it manages, deduplicated.
func (a *Authorizer) TeamIDsForAccount(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	owned, err := a.teams.OwnedTeamIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get owned teams: %w", err)
	}
	member, err := a.teams.MemberTeamIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member teams: %w", err)
	}
	manager, err := a.teams.ManagerTeamIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get managed teams: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(owned)+len(member)+len(manager))
	var ids []uuid.UUID
	for _, group := range [][]uuid.UUID{owned, member, manager} {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
