package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/models"
)

func newAccountFixture() (AccountService, *mockAccountRepo, *mockSessionRepo, *mockOTPRepo) {
	acctRepo := &mockAccountRepo{}
	sessRepo := &mockSessionRepo{}
	otpRepo := &mockOTPRepo{}
	svc := NewAccountService(acctRepo, sessRepo, otpRepo, 10*time.Minute, zap.NewNop())
	return svc, acctRepo, sessRepo, otpRepo
}

func seedAccount(repo *mockAccountRepo, role models.AccountRole) authz.Actor {
	id := uuid.New()
	repo.accounts = append(repo.accounts, &models.Account{
		ID:       id,
		Provider: models.ProviderEmail,
		Email:    id.String() + "@example.com",
		Username: "u-" + id.String()[:8],
		Role:     role,
	})
	return authz.Actor{ID: id, Role: role}
}

func TestAccountService_Get(t *testing.T) {
	svc, acctRepo, _, _ := newAccountFixture()
	me := seedAccount(acctRepo, models.RoleUser)
	other := seedAccount(acctRepo, models.RoleUser)
	admin := seedAccount(acctRepo, models.RoleAdmin)

	got, err := svc.Get(context.Background(), me, me.ID)
	require.NoError(t, err)
	assert.Equal(t, me.ID, got.ID)

	_, err = svc.Get(context.Background(), me, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Get(context.Background(), admin, other.ID)
	assert.NoError(t, err)
}

func TestAccountService_List_AdminOnly(t *testing.T) {
	svc, acctRepo, _, _ := newAccountFixture()
	user := seedAccount(acctRepo, models.RoleUser)
	admin := seedAccount(acctRepo, models.RoleAdmin)

	_, err := svc.List(context.Background(), user, 0, 50)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	got, err := svc.List(context.Background(), admin, 0, 50)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAccountService_UpdateRole(t *testing.T) {
	svc, acctRepo, _, _ := newAccountFixture()
	admin := seedAccount(acctRepo, models.RoleAdmin)
	user := seedAccount(acctRepo, models.RoleUser)

	assert.ErrorIs(t,
		svc.UpdateRole(context.Background(), user, admin.ID, models.RoleUser),
		apperrors.ErrForbidden)

	var verr *apperrors.ValidationError
	assert.ErrorAs(t,
		svc.UpdateRole(context.Background(), admin, user.ID, "superuser"),
		&verr)

	require.NoError(t, svc.UpdateRole(context.Background(), admin, user.ID, models.RoleManager))
	got, err := acctRepo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, got.Role)
}

func TestAccountService_LastAdminGuard(t *testing.T) {
	svc, acctRepo, _, _ := newAccountFixture()
	admin := seedAccount(acctRepo, models.RoleAdmin)

	// The sole admin can neither demote nor delete itself.
	assert.ErrorIs(t,
		svc.UpdateRole(context.Background(), admin, admin.ID, models.RoleUser),
		apperrors.ErrLastAdmin)
	assert.ErrorIs(t,
		svc.Delete(context.Background(), admin, admin.ID),
		apperrors.ErrLastAdmin)

	// With a second admin present both operations go through.
	second := seedAccount(acctRepo, models.RoleAdmin)
	require.NoError(t, svc.UpdateRole(context.Background(), admin, second.ID, models.RoleUser))
	require.NoError(t, svc.Delete(context.Background(), admin, second.ID))
}

func TestAccountService_EmailVerification(t *testing.T) {
	svc, acctRepo, _, otpRepo := newAccountFixture()
	me := seedAccount(acctRepo, models.RoleUser)

	otp, err := svc.RequestEmailVerification(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, otp.Code, models.OTPCodeLength)

	// Wrong code is rejected and the real one stays redeemable.
	err = svc.VerifyEmail(context.Background(), me, "000000x")
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)

	require.NoError(t, svc.VerifyEmail(context.Background(), me, otp.Code))
	acct, err := acctRepo.GetByID(context.Background(), me.ID)
	require.NoError(t, err)
	assert.True(t, acct.EmailVerified)

	// A consumed code cannot be replayed.
	err = svc.VerifyEmail(context.Background(), me, otp.Code)
	assert.ErrorAs(t, err, &verr)

	// Already-verified accounts cannot request another code.
	_, err = svc.RequestEmailVerification(context.Background(), me)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, otpRepo.otps, 1)
}

func TestAccountService_Sessions(t *testing.T) {
	svc, acctRepo, sessRepo, _ := newAccountFixture()
	me := seedAccount(acctRepo, models.RoleUser)
	other := seedAccount(acctRepo, models.RoleUser)
	admin := seedAccount(acctRepo, models.RoleAdmin)

	mine := &models.Session{AccountID: me.ID, SessionToken: "tok-1", ExpiresAt: time.Now().Add(time.Hour), IsActive: true}
	theirs := &models.Session{AccountID: other.ID, SessionToken: "tok-2", ExpiresAt: time.Now().Add(time.Hour), IsActive: true}
	require.NoError(t, sessRepo.Create(context.Background(), mine))
	require.NoError(t, sessRepo.Create(context.Background(), theirs))

	got, err := svc.ListSessions(context.Background(), me, me.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.ListSessions(context.Background(), me, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	assert.ErrorIs(t, svc.RevokeSession(context.Background(), me, theirs.ID), apperrors.ErrForbidden)
	require.NoError(t, svc.RevokeSession(context.Background(), me, mine.ID))
	assert.False(t, mine.IsActive)

	require.NoError(t, svc.RevokeSession(context.Background(), admin, theirs.ID))
}

func TestAccountService_CleanupSessions(t *testing.T) {
	svc, acctRepo, sessRepo, _ := newAccountFixture()
	me := seedAccount(acctRepo, models.RoleUser)
	admin := seedAccount(acctRepo, models.RoleAdmin)

	expired := &models.Session{AccountID: me.ID, SessionToken: "old", ExpiresAt: time.Now().Add(-time.Hour), IsActive: true}
	live := &models.Session{AccountID: me.ID, SessionToken: "new", ExpiresAt: time.Now().Add(time.Hour), IsActive: true}
	require.NoError(t, sessRepo.Create(context.Background(), expired))
	require.NoError(t, sessRepo.Create(context.Background(), live))

	_, err := svc.CleanupSessions(context.Background(), me)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	removed, err := svc.CleanupSessions(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Len(t, sessRepo.sessions, 1)
}
