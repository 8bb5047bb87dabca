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

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	// GetByID retrieves an account. Returns apperrors.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)

	// Exists reports whether an account with the given ID exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// List retrieves accounts with pagination.
	List(ctx context.Context, skip, limit int) ([]*models.Account, error)

	// UpdateRole changes an account's global role.
	UpdateRole(ctx context.Context, id uuid.UUID, role models.AccountRole) error

	// CountByRole counts accounts holding the given global role.
	CountByRole(ctx context.Context, role models.AccountRole) (int, error)

	// MarkEmailVerified flags the account's email as verified.
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error

	// Delete removes an account. Data sources it created keep existing with
	// created_by set to NULL by the foreign key policy.
	Delete(ctx context.Context, id uuid.UUID) error
}

type accountRepository struct {
	db *database.DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *database.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, provider, provider_account_id, email, name, username, role, avatar_url, password_hash, email_verified, created_at, updated_at`

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acct, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

func (r *accountRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

func (r *accountRepository) List(ctx context.Context, skip, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, acct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return out, nil
}

func (r *accountRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.AccountRole) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1`,
		id, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update account role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *accountRepository) CountByRole(ctx context.Context, role models.AccountRole) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE role = $1`, role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

func (r *accountRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`UPDATE accounts SET email_verified = true, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var acct models.Account
	var providerAccountID, name, avatarURL, passwordHash *string
	err := row.Scan(
		&acct.ID,
		&acct.Provider,
		&providerAccountID,
		&acct.Email,
		&name,
		&acct.Username,
		&acct.Role,
		&avatarURL,
		&passwordHash,
		&acct.EmailVerified,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerAccountID != nil {
		acct.ProviderAccountID = *providerAccountID
	}
	if name != nil {
		acct.Name = *name
	}
	if avatarURL != nil {
		acct.AvatarURL = *avatarURL
	}
	if passwordHash != nil {
		acct.PasswordHash = *passwordHash
	}
	return &acct, nil
}

var _ AccountRepository = (*accountRepository)(nil)
