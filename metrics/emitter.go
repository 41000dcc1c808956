package metrics

import (
	"context"
	"time"
)

// Status is the terminal outcome of a job execution.
type Status string

// Terminal statuses recorded by RecordTerminal.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetried   Status = "retried"
)

// Emitter records the pool's lifecycle signals. Implementations must be
// safe for concurrent use; every method is called from worker goroutines.
type Emitter interface {
	// MarkQueued increments jobs.meter{status=queued} for name. Extension
	// calls it when a job is pushed (OnJobEnqueued).
	MarkQueued(ctx context.Context, name string)

	// MarkDequeued transitions a job from queued to processing:
	// jobs.meter{status=queued} decrements, jobs.meter{status=processing}
	// increments.
	MarkDequeued(ctx context.Context, name string)

	// MarkProcessingDone decrements jobs.meter{status=processing}. Called
	// once execution reaches any terminal or retry outcome.
	MarkProcessingDone(ctx context.Context, name string)

	// RecordTerminal records jobs{status} and jobs.duration{status} for a
	// finished attempt. duration is wall-clock handler execution time.
	RecordTerminal(ctx context.Context, name string, status Status, duration time.Duration)

	// RecordQueuedFor records jobs.queued_for_duration_seconds: the time
	// between a request being pushed and a worker starting it, including
	// any DelayUntil wait.
	RecordQueuedFor(ctx context.Context, name string, waited time.Duration)

	// SetWorkers sets the workers gauge. Called once at pool startup.
	SetWorkers(ctx context.Context, n int)
}
