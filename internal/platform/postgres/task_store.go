package postgres

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

const taskColumns = `id, title, description, priority, status, created_at, updated_at, job_id`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// now returns the current time at the precision PostgreSQL stores, so values
// written and values read back compare equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// jobIDArg stores uuid.Nil as NULL.
func jobIDArg(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	var status string
	var jobID uuid.NullUUID
	if err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&jobID,
	); err != nil {
		return nil, err
	}
	t.Status = domain.TaskStatus(status)
	t.JobID = jobID.UUID
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// Create implements store.TaskStore.Create.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task.Status = domain.TaskStatusPending
	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create", slog.String("error", err.Error()))
		return err
	}

	task.ID = uuid.New()
	task.CreatedAt = now()
	task.UpdatedAt = task.CreatedAt

	query := `
		INSERT INTO tasks (id, title, description, priority, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Priority,
		string(task.Status),
		task.CreatedAt,
		task.UpdatedAt,
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
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.Title != "" {
		args = append(args, store.ContainsPattern(filter.Title))
		conds = append(conds, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks`)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	args = append(args, filter.Limit, filter.Offset)
	fmt.Fprintf(&b, " ORDER BY created_at, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0, filter.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update.
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	task *domain.Task,
	expectedStatus domain.TaskStatus,
) error {
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

	updatedAt := now()
	query := `
		UPDATE tasks
		SET title = $1, description = $2, priority = $3, status = $4, updated_at = $5,
		    job_id = CASE WHEN $4 = 'in_progress' THEN job_id END
		WHERE id = $6 AND status = $7
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		task.Priority,
		string(task.Status),
		updatedAt,
		task.ID,
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
func (s *PostgresTaskStore) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.TaskStatus,
	jobID uuid.UUID,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks SET status = $1, updated_at = $2, job_id = $5
		WHERE id = $3 AND status = $4
		RETURNING ` + taskColumns
	task, err := scanTask(s.db.QueryRowContext(ctx, query,
		string(to), now(), id, string(from), jobIDArg(jobID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.missOrConflict(ctx, id)
		}
		log.Error("failed to set task status",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		return nil, MapError(err)
	}

	return task, nil
}

// missOrConflict explains why a guarded write touched no rows.
func (s *PostgresTaskStore) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrTaskNotFound
	}
	return store.ErrStatusConflict
}

// Delete implements store.TaskStore.Delete.
// Logs are removed explicitly so the store does not depend on the cascade.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_logs WHERE task_id = $1`, id); err != nil {
		log.Error("failed to delete task logs",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return MapError(err)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
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

	log.Debug("task deleted", slog.String("task_id", id.String()))
	return nil
}

// AppendLog implements store.TaskStore.AppendLog.
func (s *PostgresTaskStore) AppendLog(
	ctx context.Context,
	taskID uuid.UUID,
	status domain.TaskStatus,
) (*domain.TaskLog, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	entry := &domain.TaskLog{TaskID: taskID, Status: status, CreatedAt: now()}
	query := `
		INSERT INTO task_logs (task_id, status, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, taskID, string(status), entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to append task log",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
		return nil, MapError(err)
	}

	return entry, nil
}

// ListLogs implements store.TaskStore.ListLogs.
func (s *PostgresTaskStore) ListLogs(ctx context.Context, taskID uuid.UUID) ([]domain.TaskLog, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, status, created_at FROM task_logs WHERE task_id = $1 ORDER BY id`,
		taskID)
	if err != nil {
		log.Error("failed to list task logs",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	logs := []domain.TaskLog{}
	for rows.Next() {
		var entry domain.TaskLog
		var status string
		if err := rows.Scan(&entry.ID, &entry.TaskID, &status, &entry.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		entry.Status = domain.TaskStatus(status)
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return logs, nil
}

// FindByStatus implements store.TaskStore.FindByStatus.
func (s *PostgresTaskStore) FindByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	olderThan time.Duration,
	ownedOnly bool,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1`
	args := []any{string(status)}
	if ownedOnly {
		query += ` AND job_id IS NOT NULL`
	}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, now().Add(-olderThan))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
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

// WithTx implements store.TaskStore.WithTx.
// It returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}
