package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/testhelpers"
)

func insertTestSession(t *testing.T, repo SessionRepository, accountID uuid.UUID, expiresAt time.Time, active bool) *models.Session {
	t.Helper()
	session := &models.Session{
		AccountID:    accountID,
		SessionToken: "tok-" + uuid.NewString(),
		ExpiresAt:    expiresAt,
		IPAddress:    "10.0.0.1",
		IsActive:     active,
	}
	require.NoError(t, repo.Create(context.Background(), session))
	require.NotEqual(t, uuid.Nil, session.ID)
	return session
}

func TestSessionRepository_GetByToken(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewSessionRepository(db.DB)
	accountID := insertTestAccount(t, db)

	active := insertTestSession(t, repo, accountID, time.Now().UTC().Add(time.Hour), true)
	expired := insertTestSession(t, repo, accountID, time.Now().UTC().Add(-time.Minute), true)
	revoked := insertTestSession(t, repo, accountID, time.Now().UTC().Add(time.Hour), false)

	got, err := repo.GetByToken(context.Background(), active.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
	assert.Equal(t, accountID, got.AccountID)
	assert.Equal(t, "10.0.0.1", got.IPAddress)
	assert.True(t, got.IsActive)

	_, err = repo.GetByToken(context.Background(), expired.SessionToken)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.GetByToken(context.Background(), revoked.SessionToken)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.GetByToken(context.Background(), "tok-unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionRepository_RevokeHidesToken(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewSessionRepository(db.DB)
	accountID := insertTestAccount(t, db)

	session := insertTestSession(t, repo, accountID, time.Now().UTC().Add(time.Hour), true)

	_, err := repo.GetByToken(context.Background(), session.SessionToken)
	require.NoError(t, err)

	require.NoError(t, repo.Revoke(context.Background(), session.ID))

	_, err = repo.GetByToken(context.Background(), session.SessionToken)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// The row itself survives revocation for audit listing.
	got, err := repo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewSessionRepository(db.DB)
	accountID := insertTestAccount(t, db)

	keep := insertTestSession(t, repo, accountID, time.Now().UTC().Add(time.Hour), true)
	gone := insertTestSession(t, repo, accountID, time.Now().UTC().Add(-time.Hour), true)

	removed, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	_, err = repo.GetByID(context.Background(), gone.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = repo.GetByID(context.Background(), keep.ID)
	require.NoError(t, err)
}
