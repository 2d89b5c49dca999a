package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/tasktrack/internal/api/shared"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/service"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/task"
)

// ErrInvalidQuery is returned for malformed query parameters.
var ErrInvalidQuery = errors.New("invalid query parameter")

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking their type or text.
func MapErrorToStatusCode(err error) int {
	switch {
	// Malformed input
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest

	// Well-formed input that breaks a rule
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrConflict),
		errors.Is(err, task.ErrNoActiveJob):
		return http.StatusConflict

	case errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return err.Error()

	case errors.Is(err, service.ErrStatusNotSettable):
		return "Status failed can only be set by processing"

	case errors.As(err, &validationErr):
		return fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message)

	case errors.Is(err, domain.ErrValidation):
		return "Validation error"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrStatusConflict):
		return "Task status changed, please retry"

	case errors.Is(err, store.ErrConflict):
		return "Conflicting update"

	case errors.Is(err, task.ErrNoActiveJob):
		return "Task has no active job"

	case errors.Is(err, task.ErrQueueFull):
		return "Processing queue is full, try again later"

	case errors.Is(err, task.ErrQueueClosed):
		return "Processing is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns request validation errors into a short
// message naming the first offending field.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too small"
	case "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err and
// logs err. fallback replaces the generic message of 500 responses.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	var opts []shared.ResponseOption
	if errors.Is(err, store.ErrStatusConflict) {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// HandleValidationError writes a 422 for a request that failed struct validation.
func HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusUnprocessableEntity, SanitizeValidationError(err), err)
}
