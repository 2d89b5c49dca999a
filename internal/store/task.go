package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
)

// Listing bounds applied by TaskFilter.Normalize.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// TaskFilter selects a page of tasks. Zero values mean "no filter".
type TaskFilter struct {
	Offset int
	Limit  int

	// Title matches tasks whose title contains it, case-insensitively.
	Title string

	// Status matches tasks in exactly this status.
	Status domain.TaskStatus
}

// Normalize clamps offset and limit into their allowed ranges.
func (f TaskFilter) Normalize() TaskFilter {
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// TaskStore defines the interface for task and task log persistence.
// Implementations assign IDs and timestamps; callers never do.
// Version: 1.0
type TaskStore interface {
	// Create inserts a new task. It assigns ID, CreatedAt and UpdatedAt on the
	// passed task and forces its status to pending.
	// Does not write the creation log entry; see AppendLog.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task without its logs.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns a page of tasks ordered by creation.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// Update writes title, description, priority and status of task, but only
	// if the stored status still equals expectedStatus. Sets task.UpdatedAt.
	// The owning job is kept while the task stays in_progress and cleared
	// otherwise; Update never assigns one.
	// Returns ErrTaskNotFound or ErrStatusConflict.
	Update(ctx context.Context, task *domain.Task, expectedStatus domain.TaskStatus) error

	// CompareAndSetStatus atomically moves the task from one status to
	// another, records jobID as its owning job (uuid.Nil clears it) and
	// returns the updated task.
	// Returns ErrTaskNotFound or ErrStatusConflict.
	CompareAndSetStatus(
		ctx context.Context,
		id uuid.UUID,
		from, to domain.TaskStatus,
		jobID uuid.UUID,
	) (*domain.Task, error)

	// Delete removes the task and all of its logs.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// AppendLog appends an immutable log entry for the task.
	AppendLog(ctx context.Context, taskID uuid.UUID, status domain.TaskStatus) (*domain.TaskLog, error)

	// ListLogs returns the task's log entries in creation order.
	ListLogs(ctx context.Context, taskID uuid.UUID) ([]domain.TaskLog, error)

	// FindByStatus returns tasks in the given status. If olderThan is
	// non-zero, only tasks not updated within that duration are returned.
	// With ownedOnly set, tasks without an owning job are left out.
	FindByStatus(
		ctx context.Context,
		status domain.TaskStatus,
		olderThan time.Duration,
		ownedOnly bool,
	) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}

// likeEscaper escapes the LIKE wildcards so user input only ever matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a LIKE pattern matching any value that contains s.
// Queries using it must declare ESCAPE '\'.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
