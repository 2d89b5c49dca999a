package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/phrazzld/tasktrack/internal/store"
)

// AuditWriter appends status history entries. It never updates or removes one.
type AuditWriter struct {
	logger *slog.Logger
}

// NewAuditWriter creates an AuditWriter. If log is nil, slog.Default() is used.
func NewAuditWriter(log *slog.Logger) *AuditWriter {
	if log == nil {
		log = slog.Default()
	}
	return &AuditWriter{logger: log.With(slog.String("component", "audit_writer"))}
}

// Record appends one entry for taskID with status. tasks must be bound to the
// transaction that carries the status write being recorded.
func (w *AuditWriter) Record(
	ctx context.Context,
	tasks store.TaskStore,
	taskID uuid.UUID,
	status domain.TaskStatus,
) (*domain.TaskLog, error) {
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "is not a known status", domain.ErrInvalidStatus)
	}

	entry, err := tasks.AppendLog(ctx, taskID, status)
	if err != nil {
		logger.FromContextOrDefault(ctx, w.logger).Error("failed to record status",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
		return nil, fmt.Errorf("record %s for task %s: %w", status, taskID, err)
	}
	return entry, nil
}
