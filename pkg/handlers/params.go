package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/models"
	"github.com/kosix-io/datahub/pkg/repositories"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// pathUUID parses a UUID path segment by name.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperrors.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}

// parsePagination reads skip and limit query parameters with bounds.
// Out-of-range values are rejected rather than clamped.
func parsePagination(r *http.Request) (skip, limit int, err error) {
	skip, err = queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		return 0, 0, apperrors.NewValidationError("skip", "must be a non-negative integer")
	}
	limit, err = queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		return 0, 0, apperrors.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", maxListLimit))
	}
	return skip, limit, nil
}

// parseDataSourceFilter reads pagination plus the optional type and status
// query filters.
func parseDataSourceFilter(r *http.Request) (repositories.DataSourceFilter, error) {
	var f repositories.DataSourceFilter

	skip, limit, err := parsePagination(r)
	if err != nil {
		return f, err
	}
	f.Skip = skip
	f.Limit = limit

	if v := r.URL.Query().Get("type"); v != "" {
		t := models.DataSourceType(v)
		if !models.IsValidDataSourceType(t) {
			return f, apperrors.NewValidationError("type", fmt.Sprintf("unsupported data source type %q", v))
		}
		f.Type = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		s := models.DataSourceStatus(v)
		if !models.IsValidDataSourceStatus(s) {
			return f, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", v))
		}
		f.Status = &s
	}
	return f, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
