package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/phrazzld/tasktrack/internal/store"
)

// timeLayout is fixed-width so stored timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	insertColumns = `id, title, description, priority, status, created_at, updated_at`
	taskColumns   = insertColumns + `, job_id`
)

// SQLiteTaskStore implements store.TaskStore on SQLite. Timestamps are stored
// as UTC text and IDs as their canonical string form.
type SQLiteTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSQLiteTaskStore creates a TaskStore over db, which may be a pool, a
// dedicated connection or a transaction. If logger is nil, a default logger is used.
func NewSQLiteTaskStore(db store.DBTX, logger *slog.Logger) *SQLiteTaskStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ store.TaskStore = (*SQLiteTaskStore)(nil)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                    domain.Task
		status               string
		createdAt, updatedAt string
		jobID                uuid.NullUUID
		err                  error
	)
	if err = row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &status, &createdAt, &updatedAt, &jobID,
	); err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	t.JobID = jobID.UUID
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create implements store.TaskStore.Create.
func (s *SQLiteTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task.Status = domain.TaskStatusPending
	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create", slog.String("error", err.Error()))
		return err
	}

	task.ID = uuid.New()
	task.CreatedAt = time.Now().UTC()
	task.UpdatedAt = task.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (`+insertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID.String(),
		task.Title,
		task.Description,
		task.Priority,
		string(task.Status),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Debug("task created", slog.String("task_id", task.ID.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *SQLiteTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return task, nil
}

// List implements store.TaskStore.List.
func (s *SQLiteTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	// LIKE is case-insensitive for ASCII in SQLite.
	if filter.Title != "" {
		conds = append(conds, `title LIKE ? ESCAPE '\'`)
		args = append(args, store.ContainsPattern(filter.Title))
	}
	if filter.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	tasks, err := s.queryTasks(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()))
		return nil, err
	}
	return tasks, nil
}

func (s *SQLiteTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := []*domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return tasks, nil
}

// Update implements store.TaskStore.Update.
func (s *SQLiteTaskStore) Update(ctx context.Context, task *domain.Task, expectedStatus domain.TaskStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	jobID := task.JobID
	if task.Status != domain.TaskStatusInProgress {
		jobID = uuid.Nil
	}

	updatedAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = ?, description = ?, priority = ?, status = ?, updated_at = ?,
		    job_id = CASE WHEN ? = 'in_progress' THEN job_id END
		WHERE id = ? AND status = ?`,
		task.Title,
		task.Description,
		task.Priority,
		string(task.Status),
		formatTime(updatedAt),
		string(task.Status),
		task.ID.String(),
		string(expectedStatus),
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return s.missOrConflict(ctx, task.ID)
	}

	task.UpdatedAt = updatedAt
	task.JobID = jobID
	return nil
}

// CompareAndSetStatus implements store.TaskStore.CompareAndSetStatus.
func (s *SQLiteTaskStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.TaskStatus,
	jobID uuid.UUID,
) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRowContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?, job_id = ?
		WHERE id = ? AND status = ?
		RETURNING `+taskColumns,
		string(to),
		formatTime(time.Now()),
		uuid.NullUUID{UUID: jobID, Valid: jobID != uuid.Nil},
		id.String(),
		string(from),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missOrConflict(ctx, id)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to set task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		return nil, MapError(err)
	}
	return task, nil
}

func (s *SQLiteTaskStore) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id.String()).Scan(&n); err != nil {
		return MapError(err)
	}
	if n == 0 {
		return store.ErrTaskNotFound
	}
	return store.ErrStatusConflict
}

// Delete implements store.TaskStore.Delete.
// Logs are removed explicitly so correctness does not hinge on the
// foreign_keys pragma being enabled.
func (s *SQLiteTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_logs WHERE task_id = ?`, id.String()); err != nil {
		log.Error("failed to delete task logs",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// AppendLog implements store.TaskStore.AppendLog.
func (s *SQLiteTaskStore) AppendLog(
	ctx context.Context,
	taskID uuid.UUID,
	status domain.TaskStatus,
) (*domain.TaskLog, error) {
	entry := &domain.TaskLog{TaskID: taskID, Status: status, CreatedAt: time.Now().UTC()}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO task_logs (task_id, status, created_at) VALUES (?, ?, ?) RETURNING id`,
		taskID.String(), string(status), formatTime(entry.CreatedAt),
	).Scan(&entry.ID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to append task log",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
		return nil, MapError(err)
	}
	return entry, nil
}

// ListLogs implements store.TaskStore.ListLogs.
func (s *SQLiteTaskStore) ListLogs(ctx context.Context, taskID uuid.UUID) ([]domain.TaskLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, status, created_at FROM task_logs WHERE task_id = ? ORDER BY id`,
		taskID.String())
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	logs := []domain.TaskLog{}
	for rows.Next() {
		var (
			entry     domain.TaskLog
			status    string
			createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &status, &createdAt); err != nil {
			return nil, MapError(err)
		}
		entry.Status = domain.TaskStatus(status)
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return logs, nil
}

// FindByStatus implements store.TaskStore.FindByStatus.
func (s *SQLiteTaskStore) FindByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	olderThan time.Duration,
	ownedOnly bool,
) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = ?`
	args := []any{string(status)}
	if ownedOnly {
		query += ` AND job_id IS NOT NULL`
	}
	if olderThan > 0 {
		query += ` AND updated_at < ?`
		args = append(args, formatTime(time.Now().Add(-olderThan)))
	}
	query += ` ORDER BY created_at, id`

	tasks, err := s.queryTasks(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query tasks by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, err
	}
	return tasks, nil
}

// WithTx implements store.TaskStore.WithTx.
func (s *SQLiteTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &SQLiteTaskStore{db: tx, logger: s.logger}
}
