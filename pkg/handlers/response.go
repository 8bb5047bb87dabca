// Package handlers implements the HTTP API surface. Handlers are thin:
// they parse requests, delegate to services and translate errors.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service-layer error to its HTTP response.
// conflictCode names the 409 variant since it differs per resource
// (duplicate_title for data sources, already_exists for memberships).
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, conflictCode, conflictMessage string) {
	var verr *apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		writeOrLog(logger, ErrorResponse(w, http.StatusBadRequest, "validation_error", verr.Error()))
	case errors.Is(err, apperrors.ErrNotFound):
		writeOrLog(logger, ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found"))
	case errors.Is(err, apperrors.ErrForbidden):
		writeOrLog(logger, ErrorResponse(w, http.StatusForbidden, "forbidden", "You do not have access to this resource"))
	case errors.Is(err, apperrors.ErrLastAdmin):
		writeOrLog(logger, ErrorResponse(w, http.StatusConflict, "last_admin", "Cannot remove the last admin account"))
	case errors.Is(err, apperrors.ErrConflict):
		writeOrLog(logger, ErrorResponse(w, http.StatusConflict, conflictCode, conflictMessage))
	default:
		// Driver errors can echo connection strings; scrub before logging.
		logger.Error("Request failed", zap.String("error", logging.SanitizeError(err)))
		writeOrLog(logger, ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error"))
	}
}

func writeOrLog(logger *zap.Logger, err error) {
	if err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
