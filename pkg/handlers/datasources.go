package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/auth"
	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/dsconfig"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/services"
)

const timestampFormat = "2006-01-02T15:04:05Z07:00"

// DataSourceResponse is the single-record representation. Config is always
// masked before it leaves the service boundary.
type DataSourceResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	CreatedBy *string        `json:"created_by"`
	TeamID    *string        `json:"team_id"`
	Config    map[string]any `json:"config"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

// DataSourceListItem is the list representation. Connection config is
// omitted from list views entirely.
type DataSourceListItem struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	CreatedBy *string `json:"created_by"`
	TeamID    *string `json:"team_id"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// ListDataSourcesResponse wraps the list array.
type ListDataSourcesResponse struct {
	DataSources []DataSourceListItem `json:"data_sources"`
}

// CreateDataSourceRequest for POST body.
type CreateDataSourceRequest struct {
	Title  string         `json:"title"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config"`
	TeamID *uuid.UUID     `json:"team_id"`
}

// UpdateDataSourceRequest for PATCH body. team_id keeps its raw JSON so an
// explicit null (clear the association) is distinguishable from omission.
type UpdateDataSourceRequest struct {
	Title  *string         `json:"title"`
	Status *string         `json:"status"`
	Config map[string]any  `json:"config"`
	TeamID json.RawMessage `json:"team_id"`
}

// DataSourcesHandler handles data-source HTTP requests.
type DataSourcesHandler struct {
	service services.DataSourceService
	logger  *zap.Logger
}

// NewDataSourcesHandler creates a new data sources handler.
func NewDataSourcesHandler(service services.DataSourceService, logger *zap.Logger) *DataSourcesHandler {
	return &DataSourcesHandler{service: service, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
// The literal segments (my, by-creator, ...) are registered before the {id}
// wildcard so the mux never mistakes them for record IDs.
func (h *DataSourcesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/data-sources", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/data-sources", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/data-sources/my", authMiddleware.RequireAuth(h.ListMine))
	mux.HandleFunc("GET /api/data-sources/by-creator/{accountID}", authMiddleware.RequireAuth(h.ListByCreator))
	mux.HandleFunc("GET /api/data-sources/by-team/{teamID}", authMiddleware.RequireAuth(h.ListByTeam))
	mux.HandleFunc("GET /api/data-sources/for-account-teams/{accountID}", authMiddleware.RequireAuth(h.ListForAccountTeams))
	mux.HandleFunc("GET /api/data-sources/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/data-sources/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/data-sources/{id}", authMiddleware.RequireAuth(h.Delete))
}

// Create handles POST /api/data-sources.
func (h *DataSourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	var req CreateDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}

	ds, err := h.service.Create(r.Context(), actor, services.CreateDataSourceInput{
		Title:  req.Title,
		Type:   models.DataSourceType(req.Type),
		Config: req.Config,
		TeamID: req.TeamID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "duplicate_title", "A data source with this title already exists")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusCreated, dataSourceResponse(ds)))
}

// Get handles GET /api/data-sources/{id}.
func (h *DataSourcesHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	ds, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, dataSourceResponse(ds)))
}

// Update handles PATCH /api/data-sources/{id}.
func (h *DataSourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateDataSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}

	in := services.UpdateDataSourceInput{
		Title:  req.Title,
		Config: req.Config,
	}
	if req.Status != nil {
		status := models.DataSourceStatus(*req.Status)
		in.Status = &status
	}
	if len(req.TeamID) > 0 {
		in.TeamIDSet = true
		if !bytes.Equal(bytes.TrimSpace(req.TeamID), []byte("null")) {
			var teamID uuid.UUID
			if err := json.Unmarshal(req.TeamID, &teamID); err != nil {
				writeServiceError(w, h.logger, apperrors.NewValidationError("team_id", "must be a valid UUID or null"), "", "")
				return
			}
			in.TeamID = &teamID
		}
	}

	ds, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, h.logger, err, "duplicate_title", "A data source with this title already exists")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, dataSourceResponse(ds)))
}

// Delete handles DELETE /api/data-sources/{id}.
func (h *DataSourcesHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// List handles GET /api/data-sources. Admins see everything; everyone else
// gets the records they created or can reach through a team.
func (h *DataSourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	filter, err := parseDataSourceFilter(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	var records []*models.DataSource
	if actor.IsAdmin() {
		records, err = h.service.ListAll(r.Context(), filter)
	} else {
		records, err = h.service.ListAccessibleTo(r.Context(), actor, actor.ID, filter)
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, listResponse(records)))
}

// ListMine handles GET /api/data-sources/my.
func (h *DataSourcesHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	filter, err := parseDataSourceFilter(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	records, err := h.service.ListAccessibleTo(r.Context(), actor, actor.ID, filter)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, listResponse(records)))
}

// ListByCreator handles GET /api/data-sources/by-creator/{accountID}.
func (h *DataSourcesHandler) ListByCreator(w http.ResponseWriter, r *http.Request) {
	h.scopedList(w, r, "accountID", h.service.ListByCreator)
}

// ListByTeam handles GET /api/data-sources/by-team/{teamID}.
func (h *DataSourcesHandler) ListByTeam(w http.ResponseWriter, r *http.Request) {
	h.scopedList(w, r, "teamID", h.service.ListByTeam)
}

// ListForAccountTeams handles GET /api/data-sources/for-account-teams/{accountID}.
func (h *DataSourcesHandler) ListForAccountTeams(w http.ResponseWriter, r *http.Request) {
	h.scopedList(w, r, "accountID", h.service.ListForAccountTeams)
}

type scopedListFunc func(ctx context.Context, actor authz.Actor, id uuid.UUID, skip, limit int) ([]*models.DataSource, error)

func (h *DataSourcesHandler) scopedList(w http.ResponseWriter, r *http.Request, param string, list scopedListFunc) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	id, err := pathUUID(r, param)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	skip, limit, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	records, err := list(r.Context(), actor, id, skip, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, listResponse(records)))
}

func dataSourceResponse(ds *models.DataSource) DataSourceResponse {
	return DataSourceResponse{
		ID:        ds.ID.String(),
		Title:     ds.Title,
		Type:      string(ds.Type),
		Status:    string(ds.Status),
		CreatedBy: uuidString(ds.CreatedBy),
		TeamID:    uuidString(ds.TeamID),
		Config:    dsconfig.MaskPassword(ds.Config),
		CreatedAt: ds.CreatedAt.Format(timestampFormat),
		UpdatedAt: ds.UpdatedAt.Format(timestampFormat),
	}
}

func listResponse(records []*models.DataSource) ListDataSourcesResponse {
	resp := ListDataSourcesResponse{DataSources: make([]DataSourceListItem, len(records))}
	for i, ds := range records {
		resp.DataSources[i] = DataSourceListItem{
			ID:        ds.ID.String(),
			Title:     ds.Title,
			Type:      string(ds.Type),
			Status:    string(ds.Status),
			CreatedBy: uuidString(ds.CreatedBy),
			TeamID:    uuidString(ds.TeamID),
			CreatedAt: ds.CreatedAt.Format(timestampFormat),
			UpdatedAt: ds.UpdatedAt.Format(timestampFormat),
		}
	}
	return resp
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
