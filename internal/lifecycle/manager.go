package lifecycle

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/events"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/phrazzld/tasktrack/internal/store"
)

// Transition asks for a guarded status change from From to To.
type Transition struct {
	TaskID uuid.UUID
	From   domain.TaskStatus
	To     domain.TaskStatus

	Source events.Source
	// JobID becomes the task's owning job when To is in_progress. Any other
	// transition releases ownership.
	JobID  uuid.UUID
	Reason string
}

// Manager runs the transactional lifecycle operations.
type Manager struct {
	audit   *AuditWriter
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewManager creates a Manager. emitter may be nil, in which case no events
// are published.
func NewManager(emitter events.EventEmitter, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		audit:   NewAuditWriter(log),
		emitter: emitter,
		logger:  log.With(slog.String("component", "lifecycle")),
	}
}

// Create inserts task as pending together with its creation entry.
// task receives its store-assigned ID and timestamps.
func (m *Manager) Create(ctx context.Context, h store.Handle, task *domain.Task) (*domain.Task, error) {
	var entry *domain.TaskLog
	err := h.RunInTx(ctx, func(ctx context.Context, tasks store.TaskStore) error {
		if err := tasks.Create(ctx, task); err != nil {
			return err
		}
		var err error
		entry, err = m.audit.Record(ctx, tasks, task.ID, task.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.emit(ctx, events.NewTransitionEvent("", *entry, events.SourceAPI))
	return task, nil
}

// Update applies patch to the task. A status in the patch must be a legal
// transition and always produces exactly one entry, even when unchanged.
// The write is guarded on the status that was read, so a concurrent status
// change surfaces as store.ErrStatusConflict instead of being overwritten.
func (m *Manager) Update(
	ctx context.Context,
	h store.Handle,
	id uuid.UUID,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	var (
		task   *domain.Task
		before domain.TaskStatus
		entry  *domain.TaskLog
	)
	err := h.RunInTx(ctx, func(ctx context.Context, tasks store.TaskStore) error {
		var err error
		task, err = tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		before = task.Status

		record, err := task.ApplyPatch(patch)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return nil
		}

		if err := tasks.Update(ctx, task, before); err != nil {
			return err
		}
		if record {
			entry, err = m.audit.Record(ctx, tasks, task.ID, task.Status)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if entry != nil {
		m.emit(ctx, events.NewTransitionEvent(before, *entry, events.SourceAPI))
	}
	return task, nil
}

// Advance moves a task from tr.From to tr.To in one compare-and-set and
// records the entry. Returns store.ErrStatusConflict if the task is no
// longer in tr.From and store.ErrTaskNotFound if it does not exist.
func (m *Manager) Advance(ctx context.Context, h store.Handle, tr Transition) (*domain.Task, error) {
	if err := domain.CheckTransition(tr.From, tr.To); err != nil {
		return nil, err
	}

	var (
		task  *domain.Task
		entry *domain.TaskLog
	)
	owner := uuid.Nil
	if tr.To == domain.TaskStatusInProgress {
		owner = tr.JobID
	}

	err := h.RunInTx(ctx, func(ctx context.Context, tasks store.TaskStore) error {
		var err error
		task, err = tasks.CompareAndSetStatus(ctx, tr.TaskID, tr.From, tr.To, owner)
		if err != nil {
			return err
		}
		entry, err = m.audit.Record(ctx, tasks, task.ID, task.Status)
		return err
	})
	if err != nil {
		return nil, err
	}

	event := events.NewTransitionEvent(tr.From, *entry, tr.Source)
	event.JobID = tr.JobID
	event.Reason = tr.Reason
	m.emit(ctx, event)
	return task, nil
}

// emit publishes after commit. A failing handler is logged and otherwise ignored.
func (m *Manager) emit(ctx context.Context, event *events.TransitionEvent) {
	if m.emitter == nil {
		return
	}
	if err := m.emitter.EmitEvent(ctx, event); err != nil {
		logger.FromContextOrDefault(ctx, m.logger).Warn("transition event handler failed",
			slog.String("error", err.Error()),
			slog.String("task_id", event.TaskID.String()),
			slog.String("to", string(event.To)))
	}
}
