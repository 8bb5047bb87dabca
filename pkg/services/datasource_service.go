// Package services orchestrates validation, authorization and persistence.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/dsconfig"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/repositories"
)

const maxTitleLength = 255

// CreateDataSourceInput carries a create request.
type CreateDataSourceInput struct {
	Title  string
	Type   models.DataSourceType
	Config map[string]any
	TeamID *uuid.UUID
}

// UpdateDataSourceInput carries a partial update. Nil pointer fields were
// omitted from the request and leave the stored value untouched; a non-nil
// pointer applies even when it points at a zero value. TeamIDSet
// distinguishes "team_id omitted" from "team_id supplied as null".
type UpdateDataSourceInput struct {
	Title     *string
	Status    *models.DataSourceStatus
	Config    map[string]any
	TeamID    *uuid.UUID
	TeamIDSet bool
}

// DataSourceService defines the operations exposed over data sources.
// Single-record reads and mutations are authorization-checked per record;
// list variants pre-filter their queries to the same visible set.
type DataSourceService interface {
	Create(ctx context.Context, actor authz.Actor, in CreateDataSourceInput) (*models.DataSource, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.DataSource, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateDataSourceInput) (*models.DataSource, error)
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error

	// ListAll returns every record matching the filter. The API layer routes
	// only admin actors here.
	ListAll(ctx context.Context, f repositories.DataSourceFilter) ([]*models.DataSource, error)

	// ListAccessibleTo returns records the account created or that belong to
	// one of its associated teams. Admin may query any account, others only
	// themselves.
	ListAccessibleTo(ctx context.Context, actor authz.Actor, accountID uuid.UUID, f repositories.DataSourceFilter) ([]*models.DataSource, error)

	// ListByCreator returns records created by the account. Admin may query
	// any account, others only themselves.
	ListByCreator(ctx context.Context, actor authz.Actor, accountID uuid.UUID, skip, limit int) ([]*models.DataSource, error)

	// ListByTeam returns records belonging to a team. Admin may query any
	// team, others only teams they are associated with.
	ListByTeam(ctx context.Context, actor authz.Actor, teamID uuid.UUID, skip, limit int) ([]*models.DataSource, error)

	// ListForAccountTeams returns records belonging to any team associated
	// with the account. An account with no teams gets an empty result.
	ListForAccountTeams(ctx context.Context, actor authz.Actor, accountID uuid.UUID, skip, limit int) ([]*models.DataSource, error)
}

type dataSourceService struct {
	repo       repositories.DataSourceRepository
	accounts   repositories.AccountRepository
	teams      repositories.TeamRepository
	authorizer *authz.Authorizer
	logger     *zap.Logger
}

// NewDataSourceService creates a new data source service with dependencies.
func NewDataSourceService(
	repo repositories.DataSourceRepository,
	accounts repositories.AccountRepository,
	teams repositories.TeamRepository,
	authorizer *authz.Authorizer,
	logger *zap.Logger,
) DataSourceService {
	return &dataSourceService{
		repo:       repo,
		accounts:   accounts,
		teams:      teams,
		authorizer: authorizer,
		logger:     logger,
	}
}

func (s *dataSourceService) Create(ctx context.Context, actor authz.Actor, in CreateDataSourceInput) (*models.DataSource, error) {
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if !models.IsValidDataSourceType(in.Type) {
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("unsupported data source type %q", in.Type))
	}

	cfg, err := dsconfig.Validate(in.Type, in.Config)
	if err != nil {
		return nil, err
	}

	createdBy := actor.ID
	ds := &models.DataSource{
		Title:     in.Title,
		Type:      in.Type,
		Status:    models.StatusPending, // always pending at birth, regardless of client input
		CreatedBy: &createdBy,
		TeamID:    in.TeamID,
		Config:    cfg.Map(),
	}

	if err := s.repo.Create(ctx, ds); err != nil {
		return nil, err
	}

	s.logger.Info("Created data source",
		zap.String("id", ds.ID.String()),
		zap.String("title", ds.Title),
		zap.String("type", string(ds.Type)),
		zap.String("created_by", actor.ID.String()),
	)

	return ds, nil
}

func (s *dataSourceService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.DataSource, error) {
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizer.CanAccess(ctx, actor, ds.CreatedBy, ds.TeamID); err != nil {
		return nil, err
	}

	return ds, nil
}

func (s *dataSourceService) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateDataSourceInput) (*models.DataSource, error) {
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizer.CanAccess(ctx, actor, ds.CreatedBy, ds.TeamID); err != nil {
		return nil, err
	}

	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return nil, err
		}
		if *in.Title != ds.Title {
			taken, err := s.repo.TitleExists(ctx, *in.Title, ds.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, apperrors.ErrConflict
			}
			ds.Title = *in.Title
		}
	}

	if in.Status != nil {
		if !models.IsValidDataSourceStatus(*in.Status) {
			return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
		ds.Status = *in.Status
	}

	if in.Config != nil {
		// The type is immutable, so a new blob validates against the
		// record's existing type.
		cfg, err := dsconfig.Validate(ds.Type, in.Config)
		if err != nil {
			return nil, err
		}
		ds.Config = cfg.Map()
	}

	if in.TeamIDSet {
		ds.TeamID = in.TeamID
	}

	if err := s.repo.Update(ctx, ds); err != nil {
		return nil, err
	}

	s.logger.Info("Updated data source",
		zap.String("id", ds.ID.String()),
		zap.String("actor", actor.ID.String()),
	)

	return ds, nil
}

func (s *dataSourceService) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	ds, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.authorizer.CanAccess(ctx, actor, ds.CreatedBy, ds.TeamID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Deleted data source",
		zap.String("id", id.String()),
		zap.String("actor", actor.ID.String()),
	)

	return nil
}

func (s *dataSourceService) ListAll(ctx context.Context, f repositories.DataSourceFilter) ([]*models.DataSource, error) {
	return s.repo.List(ctx, f)
}

func (s *dataSourceService) ListAccessibleTo(ctx context.Context, actor authz.Actor, accountID uuid.UUID, f repositories.DataSourceFilter) ([]*models.DataSource, error) {
	if !actor.IsAdmin() && actor.ID != accountID {
		return nil, apperrors.ErrForbidden
	}

	if err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	teamIDs, err := s.authorizer.TeamIDsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return s.repo.ListAccessible(ctx, accountID, teamIDs, f)
}

func (s *dataSourceService) ListByCreator(ctx context.Context, actor authz.Actor, accountID uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	if !actor.IsAdmin() && actor.ID != accountID {
		return nil, apperrors.ErrForbidden
	}

	if err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	return s.repo.ListByCreator(ctx, accountID, skip, limit)
}

func (s *dataSourceService) ListByTeam(ctx context.Context, actor authz.Actor, teamID uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	if !actor.IsAdmin() {
		teamIDs, err := s.authorizer.TeamIDsForAccount(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if !containsUUID(teamIDs, teamID) {
			return nil, apperrors.ErrForbidden
		}
	}

	exists, err := s.teams.Exists(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.ErrNotFound
	}

	return s.repo.ListByTeam(ctx, teamID, skip, limit)
}

func (s *dataSourceService) ListForAccountTeams(ctx context.Context, actor authz.Actor, accountID uuid.UUID, skip, limit int) ([]*models.DataSource, error) {
	if !actor.IsAdmin() && actor.ID != accountID {
		return nil, apperrors.ErrForbidden
	}

	if err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	teamIDs, err := s.authorizer.TeamIDsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(teamIDs) == 0 {
		return nil, nil
	}

	return s.repo.ListByTeams(ctx, teamIDs, skip, limit)
}

func (s *dataSourceService) requireAccount(ctx context.Context, accountID uuid.UUID) error {
	exists, err := s.accounts.Exists(ctx, accountID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return apperrors.NewValidationError("title", "title is required")
	}
	if len(title) > maxTitleLength {
		return apperrors.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	return nil
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Ensure dataSourceService implements DataSourceService at compile time.
var _ DataSourceService = (*dataSourceService)(nil)
