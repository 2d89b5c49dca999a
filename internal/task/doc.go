// Package task runs task workloads in the background.
//
// An Engine owns a bounded JobQueue and a fixed WorkerPool. Starting a task
// reserves queue capacity, commits pending→in_progress, and only then hands
// a Job to the workers, so the caller never waits for the workload and a full
// queue never leaves a task stranded in progress. Each store round trip made
// on behalf of a job uses its own persistence handle.
package task
