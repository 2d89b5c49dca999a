package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/service"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/task"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid id", domain.NewValidationError("id", "has invalid format", domain.ErrInvalidID), http.StatusBadRequest},
		{"invalid query", fmt.Errorf("%w: skip", ErrInvalidQuery), http.StatusBadRequest},
		{"empty title", domain.ErrEmptyTitle, http.StatusUnprocessableEntity},
		{"illegal transition", domain.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"reserved status", service.ErrStatusNotSettable, http.StatusUnprocessableEntity},
		{"not found", store.ErrTaskNotFound, http.StatusNotFound},
		{"status conflict", store.ErrStatusConflict, http.StatusConflict},
		{"duplicate", store.ErrDuplicate, http.StatusConflict},
		{"integrity", store.ErrInvalidEntity, http.StatusConflict},
		{"no active job", task.ErrNoActiveJob, http.StatusConflict},
		{"queue full", task.ErrQueueFull, http.StatusServiceUnavailable},
		{"queue closed", task.ErrQueueClosed, http.StatusServiceUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
	assert.Equal(t, "An unexpected error occurred",
		GetSafeErrorMessage(errors.New("pq: password authentication failed")))
	assert.Equal(t, "Invalid priority: must be between 1 and 10",
		GetSafeErrorMessage(domain.NewValidationError("priority", "must be between 1 and 10", domain.ErrInvalidPriority)))
	assert.Equal(t, "Task not found", GetSafeErrorMessage(fmt.Errorf("get: %w", store.ErrTaskNotFound)))
	assert.Equal(t, "Processing queue is full, try again later", GetSafeErrorMessage(task.ErrQueueFull))
	assert.Equal(t, "Status failed can only be set by processing", GetSafeErrorMessage(service.ErrStatusNotSettable))
}

func TestSanitizeValidationError(t *testing.T) {
	v := validator.New()
	type payload struct {
		Priority int `validate:"min=1"`
	}

	err := v.Struct(payload{})
	assert.Equal(t, "Invalid Priority: too small", SanitizeValidationError(err))
	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("other")))
}
