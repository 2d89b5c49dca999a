package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/task"
)

// Service errors. Callers check them with errors.Is; the API layer maps them
// to status codes.
var (
	// ErrStatusNotSettable is returned when a caller asks for a status that
	// only background processing may assign.
	ErrStatusNotSettable = fmt.Errorf("%w: status can only be set by processing", domain.ErrValidation)
)

// TaskServiceError wraps unexpected errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task", "update_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// expected lists the error families callers are meant to act on. They are
// returned as is instead of being wrapped.
var expected = []error{
	domain.ErrValidation,
	store.ErrNotFound,
	store.ErrConflict,
	task.ErrQueueFull,
	task.ErrQueueClosed,
	task.ErrNoActiveJob,
}

// NewTaskServiceError wraps err in a TaskServiceError unless it belongs to a
// known error family, in which case err is returned unchanged.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range expected {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
