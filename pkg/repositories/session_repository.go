package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/database"
	"github.com/kosix-io/datahub/pkg/models"
)

// SessionRepository defines data access for login sessions.
type SessionRepository interface {
	// Create inserts a new session and fills in its ID.
	Create(ctx context.Context, session *models.Session) error

	// GetByToken retrieves an active, unexpired session by its opaque token.
	// Returns apperrors.ErrNotFound for unknown, revoked or expired tokens.
	GetByToken(ctx context.Context, token string) (*models.Session, error)

	// GetByID retrieves a session by ID. Returns apperrors.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// ListByAccount retrieves all sessions for an account, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error)

	// Revoke marks a session inactive.
	Revoke(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes sessions past their expiry, returning the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	session.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO sessions (account_id, session_token, expires_at, created_at, ip_address, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		session.AccountID,
		session.SessionToken,
		session.ExpiresAt,
		session.CreatedAt,
		nullableString(session.IPAddress),
		session.IsActive,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT id, account_id, session_token, expires_at, created_at, ip_address, is_active
		FROM sessions
		WHERE session_token = $1 AND is_active AND expires_at > $2`

	var session models.Session
	var ipAddress *string
	err := r.db.QueryRow(ctx, query, token, time.Now().UTC()).Scan(
		&session.ID,
		&session.AccountID,
		&session.SessionToken,
		&session.ExpiresAt,
		&session.CreatedAt,
		&ipAddress,
		&session.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if ipAddress != nil {
		session.IPAddress = *ipAddress
	}
	return &session, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, account_id, session_token, expires_at, created_at, ip_address, is_active
		FROM sessions
		WHERE id = $1`

	var session models.Session
	var ipAddress *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.AccountID,
		&session.SessionToken,
		&session.ExpiresAt,
		&session.CreatedAt,
		&ipAddress,
		&session.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if ipAddress != nil {
		session.IPAddress = *ipAddress
	}
	return &session, nil
}

func (r *sessionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Session, error) {
	query := `
		SELECT id, account_id, session_token, expires_at, created_at, ip_address, is_active
		FROM sessions
		WHERE account_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var session models.Session
		var ipAddress *string
		err := rows.Scan(
			&session.ID,
			&session.AccountID,
			&session.SessionToken,
			&session.ExpiresAt,
			&session.CreatedAt,
			&ipAddress,
			&session.IsActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if ipAddress != nil {
			session.IPAddress = *ipAddress
		}
		out = append(out, &session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `UPDATE sessions SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

var _ SessionRepository = (*sessionRepository)(nil)
