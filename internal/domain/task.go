package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle position of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Field bounds for Task
const (
	MaxTitleLength = 255
	MinPriority    = 1
	MaxPriority    = 10
)

// Task is a unit of trackable work. ID, CreatedAt and UpdatedAt are assigned
// by the store; callers never set them.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// JobID is the background job that moved the task to in_progress.
	// uuid.Nil when no job owns the task, including a task moved to
	// in_progress by a direct update.
	JobID uuid.UUID `json:"-"`

	// Logs is the ordered status history. Only populated by reads that ask for it.
	Logs []TaskLog `json:"logs,omitempty"`
}

// NewTask creates a pending Task with the given fields.
// Returns an error if validation fails.
func NewTask(title, description string, priority int) (*Task, error) {
	task := &Task{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      TaskStatusPending,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the caller-controlled fields of the Task.
func (t *Task) Validate() error {
	if err := validateTitle(t.Title); err != nil {
		return err
	}

	if err := validatePriority(t.Priority); err != nil {
		return err
	}

	if !t.Status.IsValid() {
		return NewValidationError("status", "is not a known status", ErrInvalidStatus)
	}

	return nil
}

// LatestLog returns the most recent log entry, if any.
func (t *Task) LatestLog() (TaskLog, bool) {
	if len(t.Logs) == 0 {
		return TaskLog{}, false
	}
	return t.Logs[len(t.Logs)-1], true
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ParseTaskStatus converts a raw string into a TaskStatus.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(raw)
	if !status.IsValid() {
		return "", NewValidationError("status", "is not a known status", ErrInvalidStatus)
	}
	return status, nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return NewValidationError("title", "is required", ErrEmptyTitle)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return NewValidationError("title", "exceeds 255 characters", ErrTitleTooLong)
	}
	return nil
}

func validatePriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return NewValidationError("priority", "must be between 1 and 10", ErrInvalidPriority)
	}
	return nil
}
