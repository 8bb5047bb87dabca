// Package repositories implements data access against PostgreSQL using pgx.
// Repositories return apperrors sentinels for not-found and conflict cases
// and wrap everything else; no retries happen at this layer.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/database"
	"github.com/kosix-io/datahub/pkg/models"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// DataSourceFilter narrows list queries. Nil fields are not applied.
type DataSourceFilter struct {
	Type   *models.DataSourceType
	Status *models.DataSourceStatus
	Skip   int
	Limit  int
}

// DataSourceRepository defines data access for data source records.
type DataSourceRepository interface {
	// Create inserts a new data source and fills in its ID and timestamps.
	// Returns apperrors.ErrConflict if the title is already taken, whether
	// caught by the in-process pre-check or by the unique index when a
	// concurrent insert wins the race.
	Create(ctx context.Context, ds *models.DataSource) error

	// GetByID retrieves a data source by ID. Returns apperrors.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, error)

	// TitleExists reports whether any record other than excludeID holds the
	// title. Pass uuid.Nil to check against all records.
	TitleExists(ctx context.Context, title string, excludeID uuid.UUID) (bool, error)

	// Update persists the full record. Returns apperrors.ErrNotFound if absent
	// and apperrors.ErrConflict on a title collision.
	Update(ctx context.Context, ds *models.DataSource) error

	// Delete removes a data source. Returns apperrors.ErrNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// List retrieves data sources matching the filter.
	List(ctx context.Context, f DataSourceFilter) ([]*models.DataSource, error)

	// ListByCreator retrieves data sources created by an account.
	ListByCreator(ctx context.Context, accountID uuid.UUID, skip, limit int) ([]*models.DataSource, error)

	// ListByTeam retrieves data sources belonging to a team.
	ListByTeam(ctx context.Context, teamID uuid.UUID, skip, limit int) ([]*models.DataSource, error)

	// ListByTeams retrieves data sources belonging to any of the teams.
	// An empty team set yields an empty result, not an error.
	ListByTeams(ctx context.Context, teamIDs []uuid.UUID, skip, limit int) ([]*models.DataSource, error)

	// ListAccessible retrieves data sources the account created or whose team
	// is in teamIDs, narrowed by the filter. This pre-filters at the query so
	// the visible set matches per-row policy evaluation.
	ListAccessible(ctx context.Context, accountID uuid.UUID, teamIDs []uuid.UUID, f DataSourceFilter) ([]*models.DataSource, error)
}

// dataSourceRepository implements DataSourceRepository using PostgreSQL.
type dataSourceRepository struct {
	db *database.DB
}

// NewDataSourceRepository creates a new data source repository.
func NewDataSourceRepository(db *database.DB) DataSourceRepository {
	return &dataSourceRepository{db: db}
}

const dataSourceColumns = `id, title, type, status, created_by, team_id, config, created_at, updated_at`

func (r *dataSourceRepository) Create(ctx context.Context, ds *models.DataSource) error {
	// Early rejection only. The unique index on title is the actual
	// correctness guard under concurrent inserts.
	taken, err := r.TitleExists(ctx, ds.Title, uuid.Nil)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.ErrConflict
	}

	now := time.Now().UTC()
	ds.CreatedAt = now
	ds.UpdatedAt = now

	query := `
		INSERT INTO data_sources (title, type, status, created_by, team_id, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err = r.db.QueryRow(ctx, query,
		ds.Title,
		ds.Type,
		ds.Status,
		ds.CreatedBy,
		ds.TeamID,
		ds.Config,
		ds.CreatedAt,
		ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create data source: %w", err)
	}

	return nil
}

func (r *dataSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources WHERE id = $1`

	var ds models.DataSource
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ds.ID,
		&ds.Title,
		&ds.Type,
		&ds.Status,
		&ds.CreatedBy,
		&ds.TeamID,
		&ds.Config,
		&ds.CreatedAt,
		&ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data source: %w", err)
	}

	return &ds, nil
}

func (r *dataSourceRepository) TitleExists(ctx context.Context, title string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM data_sources WHERE title = $1 AND id <> $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, title, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check title: %w", err)
	}
	return exists, nil
}

func (r *dataSourceRepository) Update(ctx context.Context, ds *models.DataSource) error {
	ds.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE data_sources
		SET title = $2, status = $3, team_id = $4, config = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		ds.ID,
		ds.Title,
		ds.Status,
		ds.TeamID,
		ds.Config,
		ds.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update data source: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataSourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM data_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete data source: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *dataSourceRepository) List(ctx context.Context, f DataSourceFilter) ([]*models.DataSource, error) {
	var conds []string
	var args []any

	if f.Type != nil {
		args = append(args, *f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	return r.list(ctx, conds, args, f.Skip, f.Limit)
}

func (r *dataSourceRepository) ListByCreator(ctx context.Context, accountID uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	return r.list(ctx, []string{"created_by = $1"}, []any{accountID}, skip, limit)
}

func (r *dataSourceRepository) ListByTeam(ctx context.Context, teamID uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	return r.list(ctx, []string{"team_id = $1"}, []any{teamID}, skip, limit)
}

func (r *dataSourceRepository) ListByTeams(ctx context.Context, teamIDs []uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	return r.list(ctx, []string{"team_id = ANY($1)"}, []any{teamIDs}, skip, limit)
}

func (r *dataSourceRepository) ListAccessible(ctx context.Context, accountID uuid.UUID, teamIDs []uuid.UUID, f DataSourceFilter) ([]*models.DataSource, error) {
	var conds []string
	var args []any

	if len(teamIDs) > 0 {
		args = append(args, accountID, teamIDs)
		conds = append(conds, "(created_by = $1 OR team_id = ANY($2))")
	} else {
		args = append(args, accountID)
		conds = append(conds, "created_by = $1")
	}

	if f.Type != nil {
		args = append(args, *f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	return r.list(ctx, conds, args, f.Skip, f.Limit)
}

// list runs a filtered, paginated scan ordered by creation time descending.
func (r *dataSourceRepository) list(ctx context.Context, conds []string, args []any, skip, limit int) ([]*models.DataSource, error) {
	query := `SELECT ` + dataSourceColumns + ` FROM data_sources`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, skip)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	var out []*models.DataSource
	for rows.Next() {
		var ds models.DataSource
		err := rows.Scan(
			&ds.ID,
			&ds.Title,
			&ds.Type,
			&ds.Status,
			&ds.CreatedBy,
			&ds.TeamID,
			&ds.Config,
			&ds.CreatedAt,
			&ds.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		out = append(out, &ds)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating data sources: %w", err)
	}

	return out, nil
}

// Ensure dataSourceRepository implements DataSourceRepository at compile time.
var _ DataSourceRepository = (*dataSourceRepository)(nil)
