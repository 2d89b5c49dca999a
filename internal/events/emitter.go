package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
)

// InMemoryEventEmitter dispatches events synchronously to handlers
// registered in this process.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(log *slog.Logger) *InMemoryEventEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: log.With("component", "event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the given event to all registered handlers.
// Every handler sees the event even if an earlier one fails; the first error
// encountered is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TransitionEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	log := logger.FromContextOrDefault(ctx, e.logger)

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			log.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"task_id", event.TaskID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// NewLogHandler returns a handler that writes every transition to log.
func NewLogHandler(log *slog.Logger) EventHandler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "transition_log")
	return EventHandlerFunc(func(ctx context.Context, event *TransitionEvent) error {
		attrs := []any{
			slog.String("task_id", event.TaskID.String()),
			slog.String("from", string(event.From)),
			slog.String("to", string(event.To)),
			slog.Int64("log_id", event.LogID),
			slog.String("source", string(event.Source)),
		}
		if event.JobID != uuid.Nil {
			attrs = append(attrs, slog.String("job_id", event.JobID.String()))
		}
		if event.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.Reason))
		}
		log.InfoContext(ctx, "task status changed", attrs...)
		return nil
	})
}
