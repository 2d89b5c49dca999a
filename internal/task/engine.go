package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktrack/internal/domain"
	"github.com/phrazzld/tasktrack/internal/events"
	"github.com/phrazzld/tasktrack/internal/lifecycle"
	"github.com/phrazzld/tasktrack/internal/platform/logger"
	"github.com/phrazzld/tasktrack/internal/store"
)

// Engine errors
var (
	// ErrNoActiveJob is returned by Cancel when the task has no queued or running job.
	ErrNoActiveJob = errors.New("task has no active job")

	// ErrWorkloadPanic wraps a panic recovered from a workload.
	ErrWorkloadPanic = errors.New("workload panicked")

	// ErrEngineStopped is the failure cause of jobs still queued at shutdown.
	ErrEngineStopped = errors.New("engine stopped before the job ran")
)

const (
	reasonRestart = "interrupted: process restarted while the task was in progress"
	reasonStuck   = "abandoned: task stayed in progress without an active job"
)

// Config holds configuration for the engine
type Config struct {
	// WorkerCount determines how many jobs run concurrently
	WorkerCount int

	// QueueSize bounds how many jobs may wait for a worker
	QueueSize int

	// JobTimeout is the deadline for one workload run. Zero disables it.
	JobTimeout time.Duration

	// StuckTaskAge defines how long a task can stay in progress without an
	// active job before the monitor fails it
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks
	StuckTaskCheckInterval time.Duration

	// StoreTimeout bounds each store round trip made on behalf of a job
	StoreTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount:            2,
		QueueSize:              100,
		JobTimeout:             time.Minute,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		StoreTimeout:           10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.StuckTaskAge <= 0 {
		c.StuckTaskAge = d.StuckTaskAge
	}
	if c.StuckTaskCheckInterval <= 0 {
		c.StuckTaskCheckInterval = d.StuckTaskCheckInterval
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = d.StoreTimeout
	}
	return c
}

// Engine runs task workloads in the background with bounded concurrency.
type Engine struct {
	handles   store.HandleFactory
	lifecycle *lifecycle.Manager
	workload  Workload
	cfg       Config
	queue     *JobQueue
	pool      *WorkerPool
	logger    *slog.Logger

	mu            sync.Mutex
	active        map[uuid.UUID]*Job
	started       bool
	stopped       bool
	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// NewEngine creates an Engine. A nil workload falls back to a
// SimulatedWorkload of DefaultWorkloadDuration.
func NewEngine(
	handles store.HandleFactory,
	manager *lifecycle.Manager,
	workload Workload,
	cfg Config,
	log *slog.Logger,
) *Engine {
	if handles == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("handles cannot be nil")
	}
	if manager == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("lifecycle manager cannot be nil")
	}
	if workload == nil {
		workload = SimulatedWorkload{Duration: DefaultWorkloadDuration}
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "task_engine"))
	cfg = cfg.withDefaults()

	e := &Engine{
		handles:   handles,
		lifecycle: manager,
		workload:  workload,
		cfg:       cfg,
		logger:    log,
		active:    make(map[uuid.UUID]*Job),
	}
	e.queue = NewJobQueue(cfg.QueueSize, log)
	e.pool = NewWorkerPool(e.queue, WorkerPoolConfig{WorkerCount: cfg.WorkerCount}, e.process, log)
	return e
}

// Start fails tasks whose job was lost with a previous process, then starts
// the workers and the stuck-task monitor. Jobs submitted before Start wait in
// the queue.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	recovered, err := e.failOrphans(ctx, 0, reasonRestart)
	if err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}
	e.logger.Info("recovered unfinished tasks", "failed_count", recovered)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if e.started {
		return nil
	}
	e.started = true

	monitorCtx, cancel := context.WithCancel(context.Background())
	e.monitorCancel = cancel
	e.monitorDone = make(chan struct{})
	e.pool.Start()
	go e.stuckTaskMonitor(monitorCtx, e.monitorDone)

	return nil
}

// StartProcessing moves the task from pending to in_progress and schedules
// its workload. It returns as soon as the job is queued.
//
// Returns ErrQueueFull or ErrQueueClosed when no job can be accepted,
// store.ErrTaskNotFound for an unknown task and store.ErrStatusConflict
// when the task is not pending. None of these leave any trace in the store.
func (e *Engine) StartProcessing(ctx context.Context, taskID uuid.UUID) (*Job, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	// An unknown or non-pending task is reported as such even when the
	// queue is full. The guarded write below still decides races.
	if err := e.checkStartable(ctx, taskID); err != nil {
		return nil, err
	}

	reservation, err := e.queue.Reserve()
	if err != nil {
		log.Warn("cannot accept job", "task_id", taskID, "error", err)
		return nil, err
	}

	job := NewJob(taskID)
	if !e.claim(job) {
		reservation.Release()
		return nil, fmt.Errorf("%w: task already has an active job", store.ErrStatusConflict)
	}

	h, err := e.handles.Acquire(ctx)
	if err != nil {
		e.untrack(job)
		reservation.Release()
		return nil, err
	}
	_, err = e.lifecycle.Advance(ctx, h, lifecycle.Transition{
		TaskID: taskID,
		From:   domain.TaskStatusPending,
		To:     domain.TaskStatusInProgress,
		Source: events.SourceAPI,
		JobID:  job.ID(),
	})
	if closeErr := h.Close(); closeErr != nil {
		log.Warn("failed to release persistence handle", "error", closeErr)
	}
	if err != nil {
		e.untrack(job)
		reservation.Release()
		return nil, err
	}

	if err := reservation.Submit(job); err != nil {
		// The queue closed after the task went in progress.
		e.failJob(job, err)
		return nil, err
	}

	log.Info("task processing scheduled", "task_id", taskID, "job_id", job.ID())
	return job, nil
}

func (e *Engine) checkStartable(ctx context.Context, taskID uuid.UUID) error {
	h, err := e.handles.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	current, err := h.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if current.Status != domain.TaskStatusPending {
		return fmt.Errorf("%w: task is %s", store.ErrStatusConflict, current.Status)
	}
	return nil
}

// Cancel stops the active job of a task. The task ends up failed.
func (e *Engine) Cancel(taskID uuid.UUID) (*Job, error) {
	job, ok := e.ActiveJob(taskID)
	if !ok {
		return nil, ErrNoActiveJob
	}
	job.Cancel()
	e.logger.Info("job cancellation requested", "task_id", taskID, "job_id", job.ID())
	return job, nil
}

// ActiveJob returns the queued or running job of a task, if any.
func (e *Engine) ActiveJob(taskID uuid.UUID) (*Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	job, ok := e.active[taskID]
	return job, ok
}

// ActiveCount returns the number of queued and running jobs.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Stop closes the queue and waits for the workers to finish what is queued.
// If ctx ends first, remaining jobs are cancelled and their tasks failed,
// and ctx.Err() is returned.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	started := e.started
	monitorCancel, monitorDone := e.monitorCancel, e.monitorDone
	e.mu.Unlock()

	if monitorCancel != nil {
		monitorCancel()
		<-monitorDone
	}

	e.queue.Close()

	var stopErr error
	if started {
		select {
		case <-e.pool.Done():
		case <-ctx.Done():
			e.logger.Warn("shutdown deadline reached, cancelling active jobs",
				"active_count", e.ActiveCount())
			e.cancelAll()
			e.pool.Shutdown()
			<-e.pool.Done()
			stopErr = ctx.Err()
		}
	}

	for _, job := range e.queue.Drain() {
		e.failJob(job, ErrEngineStopped)
	}

	e.logger.Info("task engine stopped")
	return stopErr
}

// claim registers job as the task's active job unless it already has one.
// Claiming before the pending→in_progress write means an in-progress task
// with a live job is always visible as active.
func (e *Engine) claim(job *Job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.active[job.TaskID()]; ok {
		return false
	}
	e.active[job.TaskID()] = job
	return true
}

func (e *Engine) untrack(job *Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if current, ok := e.active[job.TaskID()]; ok && current == job {
		delete(e.active, job.TaskID())
	}
}

func (e *Engine) cancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, job := range e.active {
		job.Cancel()
	}
}

// process runs one job on a worker goroutine.
func (e *Engine) process(workerID int, job *Job) {
	defer e.untrack(job)

	log := e.logger.With(
		"job_id", job.ID(),
		"task_id", job.TaskID(),
		"worker_id", workerID,
	)

	if err := job.ctx.Err(); err != nil {
		log.Info("job cancelled before it ran")
		e.failJob(job, fmt.Errorf("cancelled before start: %w", err))
		return
	}
	if !job.transition(JobRunning) {
		log.Warn("job cannot start", "state", job.State())
		return
	}

	task, err := e.loadTask(job)
	if err != nil {
		log.Error("failed to load task for job", "error", err)
		e.failJob(job, fmt.Errorf("failed to load task: %w", err))
		return
	}
	if task.Status != domain.TaskStatusInProgress {
		// Someone else moved the task on; there is nothing left to record.
		log.Warn("task left in_progress before its job ran", "status", task.Status)
		job.finish(fmt.Errorf("%w: task is %s", store.ErrStatusConflict, task.Status))
		return
	}

	runCtx, cancel := job.ctx, context.CancelFunc(func() {})
	if e.cfg.JobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(job.ctx, e.cfg.JobTimeout)
	}
	runCtx = logger.WithLogger(runCtx, log)

	log.Info("processing task")
	start := time.Now()
	runErr := e.runWorkload(runCtx, task)
	if runErr == nil && runCtx.Err() != nil {
		runErr = runCtx.Err()
	}
	cancel()

	if runErr != nil {
		log.Error("task processing failed",
			"error", runErr,
			"duration_ms", time.Since(start).Milliseconds())
		e.failJob(job, runErr)
		return
	}

	if _, err := e.advance(job, domain.TaskStatusCompleted, ""); err != nil {
		log.Error("failed to record task completion", "error", err)
		job.finish(fmt.Errorf("failed to record completion: %w", err))
		return
	}

	job.finish(nil)
	log.Info("task processing completed", "duration_ms", time.Since(start).Milliseconds())
}

func (e *Engine) runWorkload(ctx context.Context, task *domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkloadPanic, r)
		}
	}()
	return e.workload.Run(ctx, task)
}

// failJob records in_progress→failed for the job's task and fails the job
// with cause. A failure to record is joined to cause.
func (e *Engine) failJob(job *Job, cause error) {
	if _, err := e.advance(job, domain.TaskStatusFailed, cause.Error()); err != nil {
		e.logger.Error("failed to record task failure",
			"job_id", job.ID(),
			"task_id", job.TaskID(),
			"error", err)
		cause = errors.Join(cause, fmt.Errorf("failed to record failure: %w", err))
	}
	job.finish(cause)
	e.untrack(job)
}

// storeContext outlives a cancelled job so its outcome can still be recorded.
func (e *Engine) storeContext(job *Job) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(job.ctx), e.cfg.StoreTimeout)
}

func (e *Engine) loadTask(job *Job) (*domain.Task, error) {
	ctx, cancel := e.storeContext(job)
	defer cancel()

	h, err := e.handles.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	return h.Tasks().GetByID(ctx, job.TaskID())
}

func (e *Engine) advance(job *Job, to domain.TaskStatus, reason string) (*domain.Task, error) {
	ctx, cancel := e.storeContext(job)
	defer cancel()

	h, err := e.handles.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = h.Close() }()

	return e.lifecycle.Advance(ctx, h, lifecycle.Transition{
		TaskID: job.TaskID(),
		From:   domain.TaskStatusInProgress,
		To:     to,
		Source: events.SourceEngine,
		JobID:  job.ID(),
		Reason: reason,
	})
}

// failOrphans fails in-progress tasks owned by a job that is not active in
// this engine. Tasks moved to in_progress by a direct update have no owning
// job and are left alone. With olderThan > 0 only tasks not updated within
// that window are considered. Returns how many tasks were failed.
func (e *Engine) failOrphans(ctx context.Context, olderThan time.Duration, reason string) (int, error) {
	h, err := e.handles.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	candidates, err := h.Tasks().FindByStatus(ctx, domain.TaskStatusInProgress, olderThan, true)
	_ = h.Close()
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, task := range candidates {
		if _, ok := e.ActiveJob(task.ID); ok {
			continue
		}
		if err := e.failOrphan(ctx, task, reason); err != nil {
			if store.IsConflictError(err) || store.IsNotFoundError(err) {
				e.logger.Debug("orphaned task changed before it could be failed",
					"task_id", task.ID, "error", err)
				continue
			}
			e.logger.Error("failed to fail orphaned task", "task_id", task.ID, "error", err)
			continue
		}
		e.logger.Warn("failed orphaned task", "task_id", task.ID, "job_id", task.JobID, "reason", reason)
		failed++
	}
	return failed, nil
}

func (e *Engine) failOrphan(ctx context.Context, task *domain.Task, reason string) error {
	h, err := e.handles.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	_, err = e.lifecycle.Advance(ctx, h, lifecycle.Transition{
		TaskID: task.ID,
		From:   domain.TaskStatusInProgress,
		To:     domain.TaskStatusFailed,
		Source: events.SourceRecovery,
		JobID:  task.JobID,
		Reason: reason,
	})
	return err
}

// stuckTaskMonitor periodically fails job-owned tasks that have been in
// progress for too long without an active job.
func (e *Engine) stuckTaskMonitor(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.failOrphans(ctx, e.cfg.StuckTaskAge, reasonStuck)
			if err != nil {
				if ctx.Err() == nil {
					e.logger.Error("failed to check for stuck tasks", "error", err)
				}
				continue
			}
			if n > 0 {
				e.logger.Info("failed stuck tasks", "count", n)
			}
		}
	}
}
