package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/database"
	"github.com/kosix-io/datahub/pkg/models"
)

// TeamRepository defines data access for teams and their two membership
// relations. The member and manager relations are stored independently;
// an account may appear in both for the same team.
type TeamRepository interface {
	// Create inserts a new team and fills in its ID and timestamps.
	Create(ctx context.Context, team *models.Team) error

	// GetByID retrieves a team. Returns apperrors.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error)

	// Exists reports whether a team with the given ID exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// Delete removes a team. Data sources pointing at it keep existing with
	// team_id set to NULL by the foreign key policy; membership rows cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	// AddMember inserts into the member relation. Adding an existing member
	// returns apperrors.ErrConflict.
	AddMember(ctx context.Context, teamID, accountID uuid.UUID) error

	// RemoveMember deletes from the member relation.
	RemoveMember(ctx context.Context, teamID, accountID uuid.UUID) error

	// AddManager inserts into the manager relation. Adding an existing
	// manager returns apperrors.ErrConflict.
	AddManager(ctx context.Context, teamID, accountID uuid.UUID) error

	// RemoveManager deletes from the manager relation.
	RemoveManager(ctx context.Context, teamID, accountID uuid.UUID) error

	// OwnedTeamIDs returns teams where the account is the owner.
	OwnedTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)

	// MemberTeamIDs returns teams where the account appears in the member relation.
	MemberTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)

	// ManagerTeamIDs returns teams where the account appears in the manager relation.
	ManagerTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error)
}

type teamRepository struct {
	db *database.DB
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *database.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	now := time.Now().UTC()
	team.CreatedAt = now
	team.UpdatedAt = now

	query := `
		INSERT INTO teams (name, avatar_url, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		team.Name,
		nullableString(team.AvatarURL),
		team.OwnerID,
		team.CreatedAt,
		team.UpdatedAt,
	).Scan(&team.ID)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *teamRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	query := `SELECT id, name, avatar_url, owner_id, created_at, updated_at FROM teams WHERE id = $1`

	var team models.Team
	var avatarURL *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&team.ID,
		&team.Name,
		&avatarURL,
		&team.OwnerID,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	if avatarURL != nil {
		team.AvatarURL = *avatarURL
	}
	return &team, nil
}

func (r *teamRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM teams WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check team: %w", err)
	}
	return exists, nil
}

func (r *teamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *teamRepository) AddMember(ctx context.Context, teamID, accountID uuid.UUID) error {
	return r.addRelation(ctx,
		`INSERT INTO team_members (team_id, account_id, joined_at) VALUES ($1, $2, $3)`,
		teamID, accountID)
}

func (r *teamRepository) RemoveMember(ctx context.Context, teamID, accountID uuid.UUID) error {
	return r.removeRelation(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND account_id = $2`,
		teamID, accountID)
}

func (r *teamRepository) AddManager(ctx context.Context, teamID, accountID uuid.UUID) error {
	return r.addRelation(ctx,
		`INSERT INTO team_managers (team_id, account_id, assigned_at) VALUES ($1, $2, $3)`,
		teamID, accountID)
}

func (r *teamRepository) RemoveManager(ctx context.Context, teamID, accountID uuid.UUID) error {
	return r.removeRelation(ctx,
		`DELETE FROM team_managers WHERE team_id = $1 AND account_id = $2`,
		teamID, accountID)
}

func (r *teamRepository) addRelation(ctx context.Context, query string, teamID, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, query, teamID, accountID, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to add team relation: %w", err)
	}
	return nil
}

func (r *teamRepository) removeRelation(ctx context.Context, query string, teamID, accountID uuid.UUID) error {
	result, err := r.db.Exec(ctx, query, teamID, accountID)
	if err != nil {
		return fmt.Errorf("failed to remove team relation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *teamRepository) OwnedTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return r.teamIDs(ctx, `SELECT id FROM teams WHERE owner_id = $1`, accountID)
}

func (r *teamRepository) MemberTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return r.teamIDs(ctx, `SELECT team_id FROM team_members WHERE account_id = $1`, accountID)
}

func (r *teamRepository) ManagerTeamIDs(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	return r.teamIDs(ctx, `SELECT team_id FROM team_managers WHERE account_id = $1`, accountID)
}

func (r *teamRepository) teamIDs(ctx context.Context, query string, accountID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query team ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating team ids: %w", err)
	}
	return ids, nil
}

// nullableString maps "" to NULL for optional text columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ TeamRepository = (*teamRepository)(nil)
