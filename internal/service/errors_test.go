package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskServiceError_Error(t *testing.T) {
	withCause := &TaskServiceError{Operation: "create_task", Message: "insert failed", Err: errors.New("disk full")}
	assert.Equal(t, "task service create_task failed: insert failed: disk full", withCause.Error())

	bare := &TaskServiceError{Operation: "list_tasks", Message: "no handle"}
	assert.Equal(t, "task service list_tasks failed: no handle", bare.Error())
}

func TestNewTaskServiceError(t *testing.T) {
	assert.NoError(t, NewTaskServiceError("op", "msg", nil))

	passthrough := []error{
		domain.ErrEmptyTitle,
		domain.NewValidationError("status", "cannot change", domain.ErrInvalidTransition),
		ErrStatusNotSettable,
		store.ErrTaskNotFound,
		fmt.Errorf("lost race: %w", store.ErrStatusConflict),
		store.ErrDuplicate,
		task.ErrQueueFull,
		task.ErrQueueClosed,
		task.ErrNoActiveJob,
	}
	for _, err := range passthrough {
		t.Run(err.Error(), func(t *testing.T) {
			assert.Same(t, err, NewTaskServiceError("op", "msg", err))
		})
	}

	t.Run("unexpected errors are wrapped", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewTaskServiceError("get_task", "failed to get task", cause)

		var serviceErr *TaskServiceError
		require.ErrorAs(t, err, &serviceErr)
		assert.Equal(t, "get_task", serviceErr.Operation)
		assert.ErrorIs(t, err, cause)
	})
}
