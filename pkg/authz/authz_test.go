package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/models"
)

type fakeMembershipStore struct {
	owned   []uuid.UUID
	member  []uuid.UUID
	manager []uuid.UUID
	err     error
}

func (f *fakeMembershipStore) OwnedTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return f.owned, f.err
}

func (f *fakeMembershipStore) MemberTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return f.member, f.err
}

func (f *fakeMembershipStore) ManagerTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return f.manager, f.err
}

func TestCanAccess_AdminAlwaysAllowed(t *testing.T) {
	az := NewAuthorizer(&fakeMembershipStore{err: errors.New("must not be called")})
	admin := Actor{ID: uuid.New(), Role: models.RoleAdmin}

	otherOwner := uuid.New()
	otherTeam := uuid.New()

	assert.NoError(t, az.CanAccess(context.Background(), admin, nil, nil))
	assert.NoError(t, az.CanAccess(context.Background(), admin, &otherOwner, nil))
	assert.NoError(t, az.CanAccess(context.Background(), admin, &otherOwner, &otherTeam))
}

func TestCanAccess_OwnerMatch(t *testing.T) {
	az := NewAuthorizer(&fakeMembershipStore{})
	actor := Actor{ID: uuid.New(), Role: models.RoleUser}

	assert.NoError(t, az.CanAccess(context.Background(), actor, &actor.ID, nil))
}

func TestCanAccess_TeamMembership(t *testing.T) {
	teamID := uuid.New()
	actor := Actor{ID: uuid.New(), Role: models.RoleUser}
	otherOwner := uuid.New()

	tests := []struct {
		name  string
		store *fakeMembershipStore
		want  error
	}{
		{name: "via owner relation", store: &fakeMembershipStore{owned: []uuid.UUID{teamID}}, want: nil},
		{name: "via member relation", store: &fakeMembershipStore{member: []uuid.UUID{teamID}}, want: nil},
		{name: "via manager relation", store: &fakeMembershipStore{manager: []uuid.UUID{teamID}}, want: nil},
		{name: "no relation", store: &fakeMembershipStore{member: []uuid.UUID{uuid.New()}}, want: apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			az := NewAuthorizer(tt.store)
			err := az.CanAccess(context.Background(), actor, &otherOwner, &teamID)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCanAccess_DeniedWithoutOwnerOrTeam(t *testing.T) {
	az := NewAuthorizer(&fakeMembershipStore{})
	actor := Actor{ID: uuid.New(), Role: models.RoleUser}
	otherOwner := uuid.New()

	assert.ErrorIs(t, az.CanAccess(context.Background(), actor, &otherOwner, nil), apperrors.ErrForbidden)
	assert.ErrorIs(t, az.CanAccess(context.Background(), actor, nil, nil), apperrors.ErrForbidden)
}

func TestTeamIDsForAccount_UnionDeduplicates(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	az := NewAuthorizer(&fakeMembershipStore{
		owned:   []uuid.UUID{a},
		member:  []uuid.UUID{a, b},
		manager: []uuid.UUID{b, c},
	})

	ids, err := az.TeamIDsForAccount(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a, b, c}, ids)
}

func TestTeamIDsForAccount_EmptyUnion(t *testing.T) {
	az := NewAuthorizer(&fakeMembershipStore{})

	ids, err := az.TeamIDsForAccount(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
