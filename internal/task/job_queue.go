package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Common errors returned by the JobQueue
var (
	ErrQueueClosed = errors.New("job queue is closed")
	ErrQueueFull   = errors.New("job queue is full")
)

// JobQueue is a bounded FIFO of scheduled jobs. Capacity is claimed with
// Reserve before a job exists, so a caller can find out that the queue is
// full before committing any state change for the job.
type JobQueue struct {
	jobs   chan *Job
	slots  chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewJobQueue creates a queue holding at most size jobs, counting both
// queued jobs and outstanding reservations.
func NewJobQueue(size int, logger *slog.Logger) *JobQueue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		jobs:   make(chan *Job, size),
		slots:  make(chan struct{}, size),
		logger: logger,
	}
}

// Reservation is one claimed queue slot. Exactly one of Submit or Release
// should be called; later calls are no-ops.
type Reservation struct {
	q    *JobQueue
	once sync.Once
}

// Reserve claims a slot without blocking.
func (q *JobQueue) Reserve() (*Reservation, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	select {
	case q.slots <- struct{}{}:
		return &Reservation{q: q}, nil
	default:
		return nil, fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.slots))
	}
}

// Submit schedules job in the reserved slot. It never blocks. If the queue
// was closed after the reservation was taken, the slot is released and
// ErrQueueClosed returned.
func (r *Reservation) Submit(job *Job) error {
	err := ErrQueueClosed
	r.once.Do(func() {
		q := r.q
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			<-q.slots
			return
		}
		if !job.transition(JobScheduled) {
			<-q.slots
			err = fmt.Errorf("job %s cannot be scheduled from state %s", job.ID(), job.State())
			return
		}
		q.jobs <- job
		err = nil
		q.logger.Debug("job enqueued",
			"job_id", job.ID(),
			"task_id", job.TaskID(),
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
	})
	return err
}

// Release gives the slot back without submitting.
func (r *Reservation) Release() {
	r.once.Do(func() { <-r.q.slots })
}

// Next returns the next job, blocking until one is available, the queue is
// closed and empty, or ctx is done.
func (q *JobQueue) Next(ctx context.Context) (*Job, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	case job, ok := <-q.jobs:
		if !ok {
			return nil, false
		}
		<-q.slots
		return job, true
	}
}

// Close stops new reservations and submissions. Jobs already queued can
// still be taken with Next or Drain.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.jobs)
	q.logger.Info("job queue closed")
}

// Drain removes and returns every queued job. Call only after Close.
func (q *JobQueue) Drain() []*Job {
	var left []*Job
	for job := range q.jobs {
		<-q.slots
		left = append(left, job)
	}
	return left
}

// Len returns the number of queued jobs.
func (q *JobQueue) Len() int {
	return len(q.jobs)
}
