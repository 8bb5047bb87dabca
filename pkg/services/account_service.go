package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/repositories"
)

// AccountService defines operations over accounts, their sessions and
// email verification codes.
type AccountService interface {
	// Get retrieves an account. Admin may read any account, others only
	// their own.
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Account, error)

	// List retrieves accounts with pagination. Admin only.
	List(ctx context.Context, actor authz.Actor, skip, limit int) ([]*models.Account, error)

	// UpdateRole changes an account's global role. Admin only. Demoting the
	// last remaining admin returns apperrors.ErrLastAdmin.
	UpdateRole(ctx context.Context, actor authz.Actor, id uuid.UUID, role models.AccountRole) error

	// Delete removes an account. Admin only, with the same last-admin guard.
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error

	// RequestEmailVerification issues a fresh verification code for the
	// acting account. The code is returned for the mail dispatcher; it is
	// never written to the response body or logs.
	RequestEmailVerification(ctx context.Context, actor authz.Actor) (*models.OTP, error)

	// VerifyEmail redeems the latest code for the acting account.
	VerifyEmail(ctx context.Context, actor authz.Actor, code string) error

	// ListSessions retrieves an account's sessions. Admin may list any
	// account's, others only their own.
	ListSessions(ctx context.Context, actor authz.Actor, accountID uuid.UUID) ([]*models.Session, error)

	// RevokeSession marks a session inactive. Admin may revoke any session,
	// others only sessions belonging to them.
	RevokeSession(ctx context.Context, actor authz.Actor, sessionID uuid.UUID) error

	// CleanupSessions deletes expired sessions. Admin only.
	CleanupSessions(ctx context.Context, actor authz.Actor) (int64, error)
}

type accountService struct {
	accounts repositories.AccountRepository
	sessions repositories.SessionRepository
	otps     repositories.OTPRepository
	otpTTL   time.Duration
	logger   *zap.Logger
}

// NewAccountService creates a new account service with dependencies.
func NewAccountService(
	accounts repositories.AccountRepository,
	sessions repositories.SessionRepository,
	otps repositories.OTPRepository,
	otpTTL time.Duration,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		accounts: accounts,
		sessions: sessions,
		otps:     otps,
		otpTTL:   otpTTL,
		logger:   logger,
	}
}

func (s *accountService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Account, error) {
	if !actor.IsAdmin() && actor.ID != id {
		return nil, apperrors.ErrForbidden
	}
	return s.accounts.GetByID(ctx, id)
}

func (s *accountService) List(ctx context.Context, actor authz.Actor, skip, limit int) ([]*models.Account, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return s.accounts.List(ctx, skip, limit)
}

func (s *accountService) UpdateRole(ctx context.Context, actor authz.Actor, id uuid.UUID, role models.AccountRole) error {
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}
	if !models.IsValidAccountRole(role) {
		return apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}

	current, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if current.Role == models.RoleAdmin && role != models.RoleAdmin {
		if err := s.guardLastAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.accounts.UpdateRole(ctx, id, role); err != nil {
		return err
	}

	s.logger.Info("Updated account role",
		zap.String("id", id.String()),
		zap.String("role", string(role)),
		zap.String("actor", actor.ID.String()),
	)
	return nil
}

func (s *accountService) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return apperrors.ErrForbidden
	}

	current, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if current.Role == models.RoleAdmin {
		if err := s.guardLastAdmin(ctx); err != nil {
			return err
		}
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Deleted account",
		zap.String("id", id.String()),
		zap.String("actor", actor.ID.String()),
	)
	return nil
}

func (s *accountService) RequestEmailVerification(ctx context.Context, actor authz.Actor) (*models.OTP, error) {
	acct, err := s.accounts.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if acct.EmailVerified {
		return nil, apperrors.ErrConflict
	}

	otp, err := models.NewOTP(acct.ID, acct.Email, s.otpTTL)
	if err != nil {
		return nil, err
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		return nil, err
	}

	s.logger.Info("Issued email verification code",
		zap.String("account_id", acct.ID.String()),
	)
	return otp, nil
}

func (s *accountService) VerifyEmail(ctx context.Context, actor authz.Actor, code string) error {
	otp, err := s.otps.GetLatest(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !otp.IsValid() || otp.Code != code {
		return apperrors.NewValidationError("code", "invalid or expired verification code")
	}

	if err := s.otps.MarkUsed(ctx, otp.ID); err != nil {
		return err
	}
	if err := s.accounts.MarkEmailVerified(ctx, actor.ID); err != nil {
		return err
	}

	s.logger.Info("Verified account email",
		zap.String("account_id", actor.ID.String()),
	)
	return nil
}

func (s *accountService) ListSessions(ctx context.Context, actor authz.Actor, accountID uuid.UUID) ([]*models.Session, error) {
	if !actor.IsAdmin() && actor.ID != accountID {
		return nil, apperrors.ErrForbidden
	}
	return s.sessions.ListByAccount(ctx, accountID)
}

func (s *accountService) RevokeSession(ctx context.Context, actor authz.Actor, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && session.AccountID != actor.ID {
		return apperrors.ErrForbidden
	}
	return s.sessions.Revoke(ctx, sessionID)
}

func (s *accountService) CleanupSessions(ctx context.Context, actor authz.Actor) (int64, error) {
	if !actor.IsAdmin() {
		return 0, apperrors.ErrForbidden
	}

	removed, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Removed expired sessions", zap.Int64("count", removed))
	return removed, nil
}

func (s *accountService) guardLastAdmin(ctx context.Context) error {
	count, err := s.accounts.CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if count <= 1 {
		return apperrors.ErrLastAdmin
	}
	return nil
}

var _ AccountService = (*accountService)(nil)
