package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the position of a Job in its own lifecycle.
type JobState string

const (
	JobNotStarted JobState = "not_started"
	JobScheduled  JobState = "scheduled"
	JobRunning    JobState = "running"
	JobFinished   JobState = "finished"
	JobFailed     JobState = "failed"
)

// IsTerminal reports whether the job can no longer change state.
func (s JobState) IsTerminal() bool {
	return s == JobFinished || s == JobFailed
}

var jobTransitions = map[JobState][]JobState{
	JobNotStarted: {JobScheduled, JobFailed},
	JobScheduled:  {JobRunning, JobFailed},
	JobRunning:    {JobFinished, JobFailed},
}

// Job is a handle on one background execution of a task's workload.
// It behaves as a future: Done is closed once the job reaches a terminal
// state, after which Err reports the outcome.
type Job struct {
	id     uuid.UUID
	taskID uuid.UUID

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	state      JobState
	err        error
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// NewJob creates a job for taskID that has not been scheduled yet.
func NewJob(taskID uuid.UUID) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	return &Job{
		id:        uuid.New(),
		taskID:    taskID,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     JobNotStarted,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the job's unique identifier.
func (j *Job) ID() uuid.UUID { return j.id }

// TaskID returns the task this job works on.
func (j *Job) TaskID() uuid.UUID { return j.taskID }

// State returns the current job state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure cause once the job has failed, and nil otherwise.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed when the job finishes or fails.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job ends or ctx is done. It returns the job's error,
// or ctx.Err() if ctx ended first.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel asks the job to stop. A job that has not run yet fails without
// running; a running workload sees its context cancelled.
func (j *Job) Cancel() { j.cancel() }

// Times returns when the job was created, started running and ended.
// Zero values mean the step has not happened.
func (j *Job) Times() (created, started, finished time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.createdAt, j.startedAt, j.finishedAt
}

// transition moves the job to next if the job state machine allows it.
func (j *Job) transition(next JobState) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, allowed := range jobTransitions[j.state] {
		if allowed == next {
			j.state = next
			if next == JobRunning {
				j.startedAt = time.Now().UTC()
			}
			return true
		}
	}
	return false
}

// finish moves the job to Finished (err == nil) or Failed and releases waiters.
// Only the first call has an effect.
func (j *Job) finish(err error) bool {
	j.mu.Lock()
	if j.state.IsTerminal() {
		j.mu.Unlock()
		return false
	}
	next := JobFinished
	if err != nil {
		next = JobFailed
	}
	if next == JobFinished && j.state != JobRunning {
		j.mu.Unlock()
		return false
	}
	j.state = next
	j.err = err
	j.finishedAt = time.Now().UTC()
	j.mu.Unlock()

	j.cancel()
	close(j.done)
	return true
}
