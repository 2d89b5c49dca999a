package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// JobProcessor handles one dequeued job on a worker goroutine.
type JobProcessor func(workerID int, job *Job)

// WorkerPool manages a fixed set of goroutines that take jobs from a JobQueue.
type WorkerPool struct {
	queue       *JobQueue
	workerCount int
	process     JobProcessor

	// wg tracks active worker goroutines for clean shutdown
	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once

	// ctx stops idle workers
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{WorkerCount: 2}
}

// NewWorkerPool creates a worker pool that hands every job to process.
func NewWorkerPool(queue *JobQueue, config WorkerPoolConfig, process JobProcessor, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		queue:       queue,
		workerCount: workerCount,
		process:     process,
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *WorkerPool) Start() {
	p.once.Do(func() {
		p.logger.Info("starting worker pool", "worker_count", p.workerCount)
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
		go func() {
			p.wg.Wait()
			close(p.done)
		}()
	})
}

// Done is closed once every worker has exited: after the queue is closed
// and drained, or after Shutdown.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.done
}

// Shutdown makes workers exit after their current job instead of draining
// the queue.
func (p *WorkerPool) Shutdown() {
	p.cancel()
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	p.logger.Debug("starting worker", "worker_id", id)

	for {
		job, ok := p.queue.Next(p.ctx)
		if !ok {
			p.logger.Debug("stopping worker", "worker_id", id)
			return
		}
		p.run(id, job)
	}
}

// run shields the worker goroutine from a panicking processor.
func (p *WorkerPool) run(id int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job processor panicked",
				"worker_id", id,
				"job_id", job.ID(),
				"panic", fmt.Sprint(r))
			job.finish(fmt.Errorf("%w: %v", ErrWorkloadPanic, r))
		}
	}()
	p.process(id, job)
}
