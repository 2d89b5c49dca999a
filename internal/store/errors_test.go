package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHierarchy(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		isNotFound bool
		isConflict bool
	}{
		{"not_found", ErrNotFound, true, false},
		{"task_not_found", ErrTaskNotFound, true, false},
		{"wrapped_task_not_found", fmt.Errorf("get: %w", ErrTaskNotFound), true, false},
		{"conflict", ErrConflict, false, true},
		{"duplicate", ErrDuplicate, false, true},
		{"invalid_entity", ErrInvalidEntity, false, true},
		{"status_conflict", ErrStatusConflict, false, true},
		{"unrelated", errors.New("boom"), false, false},
		{"nil", nil, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isNotFound, IsNotFoundError(tt.err))
			assert.Equal(t, tt.isConflict, IsConflictError(tt.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("task", "update", "write failed", cause)

	assert.Equal(t, "update operation on task failed: write failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("task_log", "append", "no rows", nil)
	assert.Equal(t, "append operation on task_log failed: no rows", bare.Error())
	assert.Nil(t, bare.Unwrap())

	var target *StoreError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &target))
	assert.Equal(t, "task", target.Entity)
}
