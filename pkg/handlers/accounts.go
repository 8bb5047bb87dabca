package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/auth"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/services"
)

// AccountResponse is the API representation of an account.
type AccountResponse struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	Email         string `json:"email"`
	Name          string `json:"name,omitempty"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// ListAccountsResponse wraps the list array.
type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// UpdateRoleRequest for PATCH role body.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// VerifyEmailRequest for POST verify body.
type VerifyEmailRequest struct {
	Code string `json:"code"`
}

// SessionResponse is the API representation of a login session. The opaque
// token itself is never echoed back.
type SessionResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	IPAddress string `json:"ip_address,omitempty"`
	IsActive  bool   `json:"is_active"`
	ExpiresAt string `json:"expires_at"`
	CreatedAt string `json:"created_at"`
}

// ListSessionsResponse wraps the list array.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// CleanupSessionsResponse reports how many expired sessions were removed.
type CleanupSessionsResponse struct {
	Removed int64 `json:"removed"`
}

// AccountsHandler handles account, session and verification HTTP requests.
type AccountsHandler struct {
	service services.AccountService
	logger  *zap.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(service services.AccountService, logger *zap.Logger) *AccountsHandler {
	return &AccountsHandler{service: service, logger: logger}
}

// RegisterRoutes registers the handler's routes on the given mux.
func (h *AccountsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/accounts", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/accounts/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/accounts/{id}/role", authMiddleware.RequireAuth(h.UpdateRole))
	mux.HandleFunc("DELETE /api/accounts/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/accounts/me/verification", authMiddleware.RequireAuth(h.RequestVerification))
	mux.HandleFunc("POST /api/accounts/me/verification/confirm", authMiddleware.RequireAuth(h.ConfirmVerification))
	mux.HandleFunc("GET /api/accounts/{id}/sessions", authMiddleware.RequireAuth(h.ListSessions))
	mux.HandleFunc("DELETE /api/sessions/{id}", authMiddleware.RequireAuth(h.RevokeSession))
	mux.HandleFunc("POST /api/sessions/cleanup", authMiddleware.RequireAuth(h.CleanupSessions))
}

// List handles GET /api/accounts.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	skip, limit, err := parsePagination(r)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	accounts, err := h.service.List(r.Context(), actor, skip, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	resp := ListAccountsResponse{Accounts: make([]AccountResponse, len(accounts))}
	for i, a := range accounts {
		resp.Accounts[i] = accountResponse(a)
	}
	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, resp))
}

// Get handles GET /api/accounts/{id}.
func (h *AccountsHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	acct, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, accountResponse(acct)))
}

// UpdateRole handles PATCH /api/accounts/{id}/role.
func (h *AccountsHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}

	if err := h.service.UpdateRole(r.Context(), actor, id, models.AccountRole(req.Role)); err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/accounts/{id}.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// RequestVerification handles POST /api/accounts/me/verification.
// The generated code goes to the mail dispatcher, not the response.
func (h *AccountsHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	if _, err := h.service.RequestEmailVerification(r.Context(), actor); err != nil {
		writeServiceError(w, h.logger, err, "already_verified", "Email is already verified")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// ConfirmVerification handles POST /api/accounts/me/verification/confirm.
func (h *AccountsHandler) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"))
		return
	}

	if err := h.service.VerifyEmail(r.Context(), actor, req.Code); err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /api/accounts/{id}/sessions.
func (h *AccountsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
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

	sessions, err := h.service.ListSessions(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	resp := ListSessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
	for i, s := range sessions {
		resp.Sessions[i] = SessionResponse{
			ID:        s.ID.String(),
			AccountID: s.AccountID.String(),
			IPAddress: s.IPAddress,
			IsActive:  s.IsActive,
			ExpiresAt: s.ExpiresAt.Format(timestampFormat),
			CreatedAt: s.CreatedAt.Format(timestampFormat),
		}
	}
	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, resp))
}

// RevokeSession handles DELETE /api/sessions/{id}.
func (h *AccountsHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.RevokeSession(r.Context(), actor, id); err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CleanupSessions handles POST /api/sessions/cleanup.
func (h *AccountsHandler) CleanupSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.GetActor(r.Context())
	if !ok {
		writeOrLog(h.logger, ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"))
		return
	}

	removed, err := h.service.CleanupSessions(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err, "", "")
		return
	}

	writeOrLog(h.logger, WriteJSON(w, http.StatusOK, CleanupSessionsResponse{Removed: removed}))
}

func accountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:            a.ID.String(),
		Provider:      string(a.Provider),
		Email:         a.Email,
		Name:          a.Name,
		Username:      a.Username,
		Role:          string(a.Role),
		AvatarURL:     a.AvatarURL,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt.Format(timestampFormat),
		UpdatedAt:     a.UpdatedAt.Format(timestampFormat),
	}
}
