package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/store"
)

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrInvalidID)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// parseListQuery reads skip, limit, title and task_status.
func parseListQuery(r *http.Request) (store.TaskFilter, error) {
	q := r.URL.Query()
	filter := store.TaskFilter{Limit: store.DefaultListLimit}

	if raw := q.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return filter, fmt.Errorf("%w: skip must be a non-negative integer", ErrInvalidQuery)
		}
		filter.Offset = skip
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > store.MaxListLimit {
			return filter, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, store.MaxListLimit)
		}
		filter.Limit = limit
	}

	filter.Title = q.Get("title")

	if raw := q.Get("task_status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: unknown task_status %q", ErrInvalidQuery, raw)
		}
		filter.Status = status
	}

	return filter, nil
}
