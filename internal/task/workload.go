package task

import (
	"context"
	"time"

	"github.com/phrazzld/tasktrack/internal/domain"
)

// Workload is the work performed for a task once it is in progress.
// Implementations must return promptly when ctx is cancelled.
type Workload interface {
	Run(ctx context.Context, task *domain.Task) error
}

// WorkloadFunc adapts a function to Workload.
type WorkloadFunc func(ctx context.Context, task *domain.Task) error

// Run calls f.
func (f WorkloadFunc) Run(ctx context.Context, task *domain.Task) error {
	return f(ctx, task)
}

// SimulatedWorkload stands in for real work by waiting for Duration.
type SimulatedWorkload struct {
	Duration time.Duration
}

// DefaultWorkloadDuration is how long the simulated workload takes by default.
const DefaultWorkloadDuration = 5 * time.Second

// Run waits for the configured duration or until ctx is done.
func (w SimulatedWorkload) Run(ctx context.Context, _ *domain.Task) error {
	if w.Duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(w.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
