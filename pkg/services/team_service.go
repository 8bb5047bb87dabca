package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/repositories"
)

// CreateTeamInput carries a team create request.
type CreateTeamInput struct {
	Name      string
	AvatarURL string
}

// TeamService defines operations over teams and their membership relations.
type TeamService interface {
	// Create inserts a team owned by the acting account.
	Create(ctx context.Context, actor authz.Actor, in CreateTeamInput) (*models.Team, error)

	// Get retrieves a team. Non-admins must be associated with it.
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Team, error)

	// Delete removes a team. Only admins and the team owner may delete.
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error

	// AddMember and the other membership mutations require the actor to be
	// an admin, the team owner, or a manager of the team.
	AddMember(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error
	RemoveMember(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error
	AddManager(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error
	RemoveManager(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error
}

type teamService struct {
	teams      repositories.TeamRepository
	accounts   repositories.AccountRepository
	authorizer *authz.Authorizer
	logger     *zap.Logger
}

// NewTeamService creates a new team service with dependencies.
func NewTeamService(
	teams repositories.TeamRepository,
	accounts repositories.AccountRepository,
	authorizer *authz.Authorizer,
	logger *zap.Logger,
) TeamService {
	return &teamService{
		teams:      teams,
		accounts:   accounts,
		authorizer: authorizer,
		logger:     logger,
	}
}

func (s *teamService) Create(ctx context.Context, actor authz.Actor, in CreateTeamInput) (*models.Team, error) {
	if in.Name == "" {
		return nil, apperrors.NewValidationError("name", "name is required")
	}

	ownerID := actor.ID
	team := &models.Team{
		Name:      in.Name,
		AvatarURL: in.AvatarURL,
		OwnerID:   &ownerID,
	}

	if err := s.teams.Create(ctx, team); err != nil {
		return nil, err
	}

	s.logger.Info("Created team",
		zap.String("id", team.ID.String()),
		zap.String("owner_id", actor.ID.String()),
	)

	return team, nil
}

func (s *teamService) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Team, error) {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() {
		associated, err := s.isAssociated(ctx, actor.ID, id)
		if err != nil {
			return nil, err
		}
		if !associated {
			return nil, apperrors.ErrForbidden
		}
	}

	return team, nil
}

func (s *teamService) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() && !isOwner(actor, team) {
		return apperrors.ErrForbidden
	}

	if err := s.teams.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Deleted team",
		zap.String("id", id.String()),
		zap.String("actor", actor.ID.String()),
	)
	return nil
}

func (s *teamService) AddMember(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error {
	if err := s.requireManagement(ctx, actor, teamID); err != nil {
		return err
	}
	if err := s.requireAccountExists(ctx, accountID); err != nil {
		return err
	}
	return s.teams.AddMember(ctx, teamID, accountID)
}

func (s *teamService) RemoveMember(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error {
	if err := s.requireManagement(ctx, actor, teamID); err != nil {
		return err
	}
	return s.teams.RemoveMember(ctx, teamID, accountID)
}

func (s *teamService) AddManager(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error {
	if err := s.requireManagement(ctx, actor, teamID); err != nil {
		return err
	}
	if err := s.requireAccountExists(ctx, accountID); err != nil {
		return err
	}
	return s.teams.AddManager(ctx, teamID, accountID)
}

func (s *teamService) RemoveManager(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error {
	if err := s.requireManagement(ctx, actor, teamID); err != nil {
		return err
	}
	return s.teams.RemoveManager(ctx, teamID, accountID)
}

// requireManagement allows admins, the team owner, and the team's managers
// to mutate membership. Plain members may not. Returns ErrNotFound when the
// team itself does not exist so callers don't leak membership of unknown IDs.
func (s *teamService) requireManagement(ctx context.Context, actor authz.Actor, teamID uuid.UUID) error {
	team, err := s.teams.GetByID(ctx, teamID)
	if err != nil {
		return err
	}

	if actor.IsAdmin() || isOwner(actor, team) {
		return nil
	}

	managed, err := s.teams.ManagerTeamIDs(ctx, actor.ID)
	if err != nil {
		return err
	}
	if containsUUID(managed, teamID) {
		return nil
	}
	return apperrors.ErrForbidden
}

func (s *teamService) requireAccountExists(ctx context.Context, accountID uuid.UUID) error {
	exists, err := s.accounts.Exists(ctx, accountID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *teamService) isAssociated(ctx context.Context, accountID, teamID uuid.UUID) (bool, error) {
	ids, err := s.authorizer.TeamIDsForAccount(ctx, accountID)
	if err != nil {
		return false, err
	}
	return containsUUID(ids, teamID), nil
}

func isOwner(actor authz.Actor, team *models.Team) bool {
	return team.OwnerID != nil && *team.OwnerID == actor.ID
}

var _ TeamService = (*teamService)(nil)
