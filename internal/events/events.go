package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
)

// Source identifies which component caused a transition.
type Source string

const (
	SourceAPI      Source = "api"
	SourceEngine   Source = "engine"
	SourceRecovery Source = "recovery"
)

// TransitionEvent reports one committed status assignment: the task row and
// its log entry are already durable when the event is emitted.
type TransitionEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	TaskID uuid.UUID `json:"task_id"`

	// From is empty for the creation entry.
	From domain.TaskStatus `json:"from,omitempty"`
	To   domain.TaskStatus `json:"to"`

	// LogID is the audit entry written for this transition.
	LogID int64 `json:"log_id"`

	Source Source `json:"source"`

	// JobID is set when a background job caused the transition.
	JobID uuid.UUID `json:"job_id,omitempty"`

	// Reason carries the failure cause for transitions into failed.
	Reason string `json:"reason,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewTransitionEvent creates a TransitionEvent for a committed log entry.
func NewTransitionEvent(from domain.TaskStatus, entry domain.TaskLog, source Source) *TransitionEvent {
	return &TransitionEvent{
		ID:         uuid.New(),
		TaskID:     entry.TaskID,
		From:       from,
		To:         entry.Status,
		LogID:      entry.ID,
		Source:     source,
		OccurredAt: entry.CreatedAt,
	}
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TransitionEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *TransitionEvent) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TransitionEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TransitionEvent) error
}
