package ext

import (
	"context"
	"time"

	"github.com/chronopool/chronopool/id"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully pushed to the driver.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, jobID id.JobID, name string) error
}

// JobStarted is called when a worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, jobID id.JobID, name string) error
}

// JobSucceeded is called after a job's handler returns nil.
type JobSucceeded interface {
	OnJobSucceeded(ctx context.Context, jobID id.JobID, name string, elapsed time.Duration) error
}

// JobFailed is called when a job fails terminally (no more retries, or a
// decode/unrecognised-id error).
type JobFailed interface {
	OnJobFailed(ctx context.Context, jobID id.JobID, name string, err error) error
}

// JobRetried is called when a job's handler failed and a retry was
// re-pushed with backoff, and also when the worker pool re-pushes a job
// it pulled before its DelayUntil (attempt is then unchanged).
type JobRetried interface {
	OnJobRetried(ctx context.Context, jobID id.JobID, name string, attempt int, delayUntil time.Time) error
}

// JobCancelled is called when a job's handler exits because its context
// was cancelled.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, jobID id.JobID, name string) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// CronFired is called when a schedule entry fires and its job is pushed.
type CronFired interface {
	OnCronFired(ctx context.Context, entryName string, jobID id.JobID) error
}

// PoolStarted is called once when a worker.Pool begins running, reporting
// its configured concurrency.
type PoolStarted interface {
	OnPoolStarted(ctx context.Context, numWorkers int) error
}

// Shutdown is called during graceful shutdown of a worker.Pool or
// scheduler.Scheduler.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
