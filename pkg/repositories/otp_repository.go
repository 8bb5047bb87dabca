package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/database"
	"github.com/kosix-io/datahub/pkg/models"
)

// OTPRepository defines data access for one-time verification codes.
type OTPRepository interface {
	// Create inserts a new code and fills in its ID.
	Create(ctx context.Context, otp *models.OTP) error

	// GetLatest retrieves the most recently issued code for an account.
	// Returns apperrors.ErrNotFound if none exists.
	GetLatest(ctx context.Context, accountID uuid.UUID) (*models.OTP, error)

	// MarkUsed consumes a code so it cannot be redeemed again.
	MarkUsed(ctx context.Context, id uuid.UUID) error
}

type otpRepository struct {
	db *database.DB
}

// NewOTPRepository creates a new OTP repository.
func NewOTPRepository(db *database.DB) OTPRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) Create(ctx context.Context, otp *models.OTP) error {
	query := `
		INSERT INTO otps (account_id, email, otp_code, is_used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		otp.AccountID,
		otp.Email,
		otp.Code,
		otp.IsUsed,
		otp.ExpiresAt,
		otp.CreatedAt,
	).Scan(&otp.ID)
	if err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}
	return nil
}

func (r *otpRepository) GetLatest(ctx context.Context, accountID uuid.UUID) (*models.OTP, error) {
	query := `
		SELECT id, account_id, email, otp_code, is_used, expires_at, created_at
		FROM otps
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var otp models.OTP
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&otp.ID,
		&otp.AccountID,
		&otp.Email,
		&otp.Code,
		&otp.IsUsed,
		&otp.ExpiresAt,
		&otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	return &otp, nil
}

func (r *otpRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE otps SET is_used = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark otp used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

var _ OTPRepository = (*otpRepository)(nil)
