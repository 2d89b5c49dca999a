package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/lifecycle"
	"github.com/phrazzld/tasktrack/internal/platform/sqlite"
	"github.com/phrazzld/tasktrack/internal/service"
	"github.com/phrazzld/tasktrack/internal/store"
	"github.com/phrazzld/tasktrack/internal/task"
	"github.com/phrazzld/tasktrack/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProcessor is a function-field TaskProcessor.
type mockProcessor struct {
	mu        sync.Mutex
	cancelled []uuid.UUID
	StartFn   func(ctx context.Context, taskID uuid.UUID) (*task.Job, error)
	CancelFn  func(taskID uuid.UUID) (*task.Job, error)
}

func (m *mockProcessor) StartProcessing(ctx context.Context, taskID uuid.UUID) (*task.Job, error) {
	if m.StartFn != nil {
		return m.StartFn(ctx, taskID)
	}
	return nil, nil
}

func (m *mockProcessor) Cancel(taskID uuid.UUID) (*task.Job, error) {
	m.mu.Lock()
	m.cancelled = append(m.cancelled, taskID)
	m.mu.Unlock()
	if m.CancelFn != nil {
		return m.CancelFn(taskID)
	}
	return nil, task.ErrNoActiveJob
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceFixture struct {
	handles   store.HandleFactory
	manager   *lifecycle.Manager
	processor *mockProcessor
	svc       service.TaskService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := testdb.OpenSQLite(t)
	f := &serviceFixture{
		handles:   sqlite.NewHandleFactory(db, quiet()),
		manager:   lifecycle.NewManager(nil, quiet()),
		processor: &mockProcessor{},
	}
	svc, err := service.NewTaskService(f.handles, f.manager, f.processor, quiet())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *serviceFixture) create(t *testing.T, title string, priority int) *domain.Task {
	t.Helper()
	created, err := f.svc.CreateTask(context.Background(), service.CreateTaskInput{
		Title:    title,
		Priority: priority,
	})
	require.NoError(t, err)
	return created
}

func statusPtr(s domain.TaskStatus) *domain.TaskStatus { return &s }
func strPtr(s string) *string                          { return &s }
func intPtr(i int) *int                                { return &i }

func TestNewTaskServiceRequiresDependencies(t *testing.T) {
	db := testdb.OpenSQLite(t)
	handles := sqlite.NewHandleFactory(db, quiet())
	manager := lifecycle.NewManager(nil, quiet())

	_, err := service.NewTaskService(nil, manager, &mockProcessor{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = service.NewTaskService(handles, nil, &mockProcessor{}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = service.NewTaskService(handles, manager, nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateAndGetTask(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateTask(ctx, service.CreateTaskInput{
		Title:       "Write report",
		Description: "quarterly",
		Priority:    3,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, domain.TaskStatusPending, created.Status)

	got, err := f.svc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Title)
	assert.Equal(t, "quarterly", got.Description)
	require.Len(t, got.Logs, 1)
	assert.Equal(t, domain.TaskStatusPending, got.Logs[0].Status)
}

func TestCreateTaskValidation(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateTask(context.Background(), service.CreateTaskInput{Title: " ", Priority: 1})
	assert.ErrorIs(t, err, domain.ErrEmptyTitle)

	_, err = f.svc.CreateTask(context.Background(), service.CreateTaskInput{Title: "ok", Priority: 11})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)

	tasks, err := f.svc.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestGetTaskNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GetTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestListTasks(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	first := f.create(t, "Buy milk", 1)
	f.create(t, "Sell MILKSHAKE", 2)
	f.create(t, "Walk dog", 3)

	_, err := f.svc.UpdateTask(ctx, first.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusInProgress)})
	require.NoError(t, err)

	all, err := f.svc.ListTasks(ctx, store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	milk, err := f.svc.ListTasks(ctx, store.TaskFilter{Title: "milk"})
	require.NoError(t, err)
	assert.Len(t, milk, 2)

	active, err := f.svc.ListTasks(ctx, store.TaskFilter{Status: domain.TaskStatusInProgress})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	page, err := f.svc.ListTasks(ctx, store.TaskFilter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Sell MILKSHAKE", page[0].Title)

	_, err = f.svc.ListTasks(ctx, store.TaskFilter{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("illegal transition leaves task untouched", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.create(t, "skip ahead", 5)

		_, err := f.svc.UpdateTask(ctx, created.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusCompleted)})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := f.svc.GetTask(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusPending, got.Status)
		assert.Len(t, got.Logs, 1)
	})

	t.Run("failed is reserved for processing", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.create(t, "give up", 5)
		_, err := f.svc.UpdateTask(ctx, created.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusInProgress)})
		require.NoError(t, err)

		_, err = f.svc.UpdateTask(ctx, created.ID, domain.TaskPatch{Status: statusPtr(domain.TaskStatusFailed)})
		assert.ErrorIs(t, err, service.ErrStatusNotSettable)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("fields and walk", func(t *testing.T) {
		f := newServiceFixture(t)
		created := f.create(t, "draft", 5)

		updated, err := f.svc.UpdateTask(ctx, created.ID, domain.TaskPatch{
			Title:       strPtr("final"),
			Description: strPtr("done right"),
			Priority:    intPtr(9),
		})
		require.NoError(t, err)
		assert.Equal(t, "final", updated.Title)
		assert.Equal(t, 9, updated.Priority)

		for _, s := range []domain.TaskStatus{domain.TaskStatusInProgress, domain.TaskStatusCompleted} {
			_, err = f.svc.UpdateTask(ctx, created.ID, domain.TaskPatch{Status: statusPtr(s)})
			require.NoError(t, err)
		}

		got, err := f.svc.GetTask(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.TaskStatus{
			domain.TaskStatusPending, domain.TaskStatusInProgress, domain.TaskStatusCompleted,
		}, domain.StatusHistory(got.Logs))
	})

	t.Run("missing task", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.svc.UpdateTask(ctx, uuid.New(), domain.TaskPatch{Priority: intPtr(2)})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestDeleteTask(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	created := f.create(t, "temporary", 4)

	require.NoError(t, f.svc.DeleteTask(ctx, created.ID))
	assert.Equal(t, []uuid.UUID{created.ID}, f.processor.cancelled, "an active job is cancelled")

	_, err := f.svc.GetTask(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	h, err := f.handles.Acquire(ctx)
	require.NoError(t, err)
	defer func() { _ = h.Close() }()
	logs, err := h.Tasks().ListLogs(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestDeleteTaskNotFound(t *testing.T) {
	f := newServiceFixture(t)

	err := f.svc.DeleteTask(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.Empty(t, f.processor.cancelled)
}

func TestStartProcessingPassesErrorsThrough(t *testing.T) {
	f := newServiceFixture(t)
	f.processor.StartFn = func(context.Context, uuid.UUID) (*task.Job, error) {
		return nil, task.ErrQueueFull
	}

	_, err := f.svc.StartProcessing(context.Background(), uuid.New())
	assert.ErrorIs(t, err, task.ErrQueueFull)
}

func TestCancelProcessing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CancelProcessing(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	created := f.create(t, "idle", 1)
	_, err = f.svc.CancelProcessing(ctx, created.ID)
	assert.ErrorIs(t, err, task.ErrNoActiveJob)
}

func TestProcessingWithEngine(t *testing.T) {
	db := testdb.OpenSQLite(t)
	handles := sqlite.NewHandleFactory(db, quiet())
	manager := lifecycle.NewManager(nil, quiet())
	engine := task.NewEngine(handles, manager, task.SimulatedWorkload{Duration: 20 * time.Millisecond},
		task.Config{}, quiet())
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Stop(ctx)
	})

	svc, err := service.NewTaskService(handles, manager, engine, quiet())
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, service.CreateTaskInput{Title: "Scenario A", Priority: 5})
	require.NoError(t, err)

	job, err := svc.StartProcessing(ctx, created.ID)
	require.NoError(t, err)

	got, err := svc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.TaskStatus{domain.TaskStatusInProgress, domain.TaskStatusCompleted}, got.Status)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, job.Wait(waitCtx))

	got, err = svc.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Equal(t, []domain.TaskStatus{
		domain.TaskStatusPending, domain.TaskStatusInProgress, domain.TaskStatusCompleted,
	}, domain.StatusHistory(got.Logs))

	_, err = svc.StartProcessing(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}
