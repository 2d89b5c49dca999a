package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskLog is an immutable audit entry: one status value a task held at one
// point in time. Entries are never updated or deleted individually; they go
// away only with their task.
type TaskLog struct {
	ID        int64      `json:"id"`
	TaskID    uuid.UUID  `json:"task_id"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// StatusHistory returns the statuses recorded in logs, in order.
func StatusHistory(logs []TaskLog) []TaskStatus {
	history := make([]TaskStatus, 0, len(logs))
	for _, l := range logs {
		history = append(history, l.Status)
	}
	return history
}
