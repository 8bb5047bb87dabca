package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/auth"
	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/services"
)

// TeamResponse is the API representation of a team.
type TeamResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	OwnerID   *string `json:"owner_id"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// CreateTeamRequest for POST body.
type CreateTeamRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// TeamsHandler handles team HTTP requests.
type TeamsHandler struct {
	service services.TeamService
	logger  *zap.Logger
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(service services.TeamService, logger *zap.Logger) *TeamsHandler {
	return &TeamsHandler{service: service, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *TeamsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/teams", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/teams/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("DELETE /api/teams/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/teams/{id}/members/{accountID}", authMiddleware.RequireAuth(h.AddMember))
	mux.HandleFunc("DELETE /api/teams/{id}/members/{accountID}", authMiddleware.RequireAuth(h.RemoveMember))
	mux.HandleFunc("POST /api/teams/{id}/managers/{accountID}", authMiddleware.RequireAuth(h.AddManager))
	mux.HandleFunc("DELETE /api/teams/{id}/managers/{accountID}", authMiddleware.RequireAuth(h.RemoveManager))
}

// Create handles POST /api/teams.
func (h *TeamsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}

	team, err := h.service.Create(r.Context(), actor, services.CreateTeamInput{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusCreated, teamResponse(team)))
}

// Get handles GET /api/teams/{id}.
func (h *TeamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	team, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, teamResponse(team)))
}

// Delete handles DELETE /api/teams/{id}.
func (h *TeamsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	id, err := pathUUID(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddMember handles POST /api/teams/{id}/members/{accountID}.
func (h *TeamsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.AddMember, http.StatusCreated)
}

// RemoveMember handles DELETE /api/teams/{id}/members/{accountID}.
func (h *TeamsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.RemoveMember, http.StatusNoContent)
}

// AddManager handles POST /api/teams/{id}/managers/{accountID}.
func (h *TeamsHandler) AddManager(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.AddManager, http.StatusCreated)
}

// RemoveManager handles DELETE /api/teams/{id}/managers/{accountID}.
func (h *TeamsHandler) RemoveManager(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.service.RemoveManager, http.StatusNoContent)
}

type membershipFunc func(ctx context.Context, actor authz.Actor, teamID, accountID uuid.UUID) error

func (h *TeamsHandler) membership(w http.ResponseWriter, r *http.Request, mutate membershipFunc, successStatus int) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	teamID, err := pathUUID(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}
	accountID, err := pathUUID(r, "accountID")
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	if err := mutate(r.Context(), actor, teamID, accountID); err != nil {
		writeServiceError(w, h.logger, err, "already_exists", "The account already holds this team role")
		return
	}

	w.WriteHeader(successStatus)
}

func teamResponse(team *models.Team) TeamResponse {
	return TeamResponse{
		ID:        team.ID.String(),
		Name:      team.Name,
		AvatarURL: team.AvatarURL,
		OwnerID:   uuidString(team.OwnerID),
		CreatedAt: team.CreatedAt.Format(timestampFormat),
		UpdatedAt: team.UpdatedAt.Format(timestampFormat),
	}
}
