package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/lifecycle"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/task"
)

// TaskProcessor runs task workloads in the background.
// *task.Engine implements it.
type TaskProcessor interface {
	// StartProcessing moves a pending task to in_progress and schedules its workload
	StartProcessing(ctx context.Context, taskID uuid.UUID) (*task.Job, error)

	// Cancel stops the active job of a task
	Cancel(taskID uuid.UUID) (*task.Job, error)
}

// CreateTaskInput carries the caller-controlled fields of a new task.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    int
}

// TaskService provides task operations
type TaskService interface {
	// CreateTask creates a pending task together with its first log entry
	CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error)

	// ListTasks returns a page of tasks without their logs
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error)

	// GetTask returns a task with its ordered logs
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateTask applies a partial update; a status in the patch is logged
	UpdateTask(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)

	// DeleteTask removes a task and its logs, cancelling any active job
	DeleteTask(ctx context.Context, id uuid.UUID) error

	// StartProcessing starts the task's workload in the background
	StartProcessing(ctx context.Context, id uuid.UUID) (*task.Job, error)

	// CancelProcessing cancels the task's active job
	CancelProcessing(ctx context.Context, id uuid.UUID) (*task.Job, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	handles   store.HandleFactory
	lifecycle *lifecycle.Manager
	processor TaskProcessor
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	handles store.HandleFactory,
	manager *lifecycle.Manager,
	processor TaskProcessor,
	logger *slog.Logger,
) (TaskService, error) {
	if handles == nil {
		return nil, domain.NewValidationError("handles", "cannot be nil", domain.ErrValidation)
	}
	if manager == nil {
		return nil, domain.NewValidationError("manager", "cannot be nil", domain.ErrValidation)
	}
	if processor == nil {
		return nil, domain.NewValidationError("processor", "cannot be nil", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		handles:   handles,
		lifecycle: manager,
		processor: processor,
		logger:    logger.With(slog.String("component", "task_service")),
	}, nil
}

// withHandle runs fn with a handle owned by this call.
func (s *taskServiceImpl) withHandle(ctx context.Context, fn func(h store.Handle) error) error {
	h, err := s.handles.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Warn("failed to release persistence handle",
				slog.String("error", err.Error()))
		}
	}()
	return fn(h)
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	draft, err := domain.NewTask(input.Title, input.Description, input.Priority)
	if err != nil {
		return nil, err
	}

	var created *domain.Task
	err = s.withHandle(ctx, func(h store.Handle) error {
		var err error
		created, err = s.lifecycle.Create(ctx, h, draft)
		return err
	})
	if err != nil {
		log.Error("failed to create task", slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create_task", "failed to create task", err)
	}

	log.Info("task created", slog.String("task_id", created.ID.String()))
	return created, nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.NewValidationError("task_status", "is not a known status", domain.ErrInvalidStatus)
	}
	filter = filter.Normalize()

	var tasks []*domain.Task
	err := s.withHandle(ctx, func(h store.Handle) error {
		var err error
		tasks, err = h.Tasks().List(ctx, filter)
		return err
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return tasks, nil
}

// GetTask implements TaskService.GetTask
// The task and its logs are read in one transaction so they agree.
func (s *taskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var found *domain.Task
	err := s.withHandle(ctx, func(h store.Handle) error {
		return h.RunInTx(ctx, func(ctx context.Context, tasks store.TaskStore) error {
			t, err := tasks.GetByID(ctx, id)
			if err != nil {
				return err
			}
			t.Logs, err = tasks.ListLogs(ctx, id)
			if err != nil {
				return err
			}
			found = t
			return nil
		})
	})
	if err != nil {
		if !store.IsNotFoundError(err) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
				slog.String("error", err.Error()),
				slog.String("task_id", id.String()))
		}
		return nil, NewTaskServiceError("get_task", "failed to get task", err)
	}
	return found, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	id uuid.UUID,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if patch.Status != nil && *patch.Status == domain.TaskStatusFailed {
		return nil, ErrStatusNotSettable
	}

	var updated *domain.Task
	err := s.withHandle(ctx, func(h store.Handle) error {
		var err error
		updated, err = s.lifecycle.Update(ctx, h, id, patch)
		return err
	})
	if err != nil {
		log.Debug("task update rejected",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, NewTaskServiceError("update_task", "failed to update task", err)
	}

	log.Info("task updated", slog.String("task_id", id.String()))
	return updated, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	err := s.withHandle(ctx, func(h store.Handle) error {
		return h.RunInTx(ctx, func(ctx context.Context, tasks store.TaskStore) error {
			return tasks.Delete(ctx, id)
		})
	})
	if err != nil {
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	if job, err := s.processor.Cancel(id); err == nil {
		log.Info("cancelled job of deleted task",
			slog.String("task_id", id.String()),
			slog.String("job_id", job.ID().String()))
	} else if !errors.Is(err, task.ErrNoActiveJob) {
		log.Warn("failed to cancel job of deleted task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	return nil
}

// StartProcessing implements TaskService.StartProcessing
func (s *taskServiceImpl) StartProcessing(ctx context.Context, id uuid.UUID) (*task.Job, error) {
	job, err := s.processor.StartProcessing(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("start_processing", "failed to start processing", err)
	}
	return job, nil
}

// CancelProcessing implements TaskService.CancelProcessing
func (s *taskServiceImpl) CancelProcessing(ctx context.Context, id uuid.UUID) (*task.Job, error) {
	err := s.withHandle(ctx, func(h store.Handle) error {
		_, err := h.Tasks().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, NewTaskServiceError("cancel_processing", "failed to cancel processing", err)
	}

	job, err := s.processor.Cancel(id)
	if err != nil {
		return nil, NewTaskServiceError("cancel_processing", "failed to cancel processing", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("task processing cancellation requested",
		slog.String("task_id", id.String()),
		slog.String("job_id", job.ID().String()))
	return job, nil
}
