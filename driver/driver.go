// Package driver defines the contract chronopool consumes from a queue
// backend. Concrete drivers (in-memory, Redis, PostgreSQL, ...) implement
// this interface; the core never depends on a specific one.
package driver

import (
	"context"
	"time"

	"github.com/chronopool/chronopool/id"
)

// QueuedJob is the envelope a driver hands to the worker pool: a
// driver-assigned ID and an opaque payload buffer. The buffer's layout is
// owned by the job package (see job.EncodeRequest / job.DecodeRequest);
// drivers never need to interpret it.
type QueuedJob struct {
	ID     id.JobID
	Buffer []byte
}

// PushOptions carries the scheduling metadata a driver needs but the
// opaque buffer does not expose: when a job becomes eligible for
// dequeue, and which named queue it belongs to.
type PushOptions struct {
	// DelayUntil is the earliest time the job may be dequeued. The zero
	// value means immediately eligible.
	DelayUntil time.Time

	// Queue is the logical queue name. Drivers that support only a
	// single queue may ignore it; the empty string selects the default
	// queue.
	Queue string
}

// Driver is the capability set the worker pool and scheduler consume from
// a queue backend. All operations may fail with an *Error. The worker pool
// returns an OnInit error from Run; it logs a failed Push, Finished or
// Failed and carries on. The scheduler logs metadata and Push errors.
//
// Implementations must guarantee at-least-once delivery: once Push
// succeeds, the pushed job is eventually yielded by Jobs, even across a
// process restart.
type Driver interface {
	// OnInit is called exactly once before the first call to Jobs.
	OnInit(ctx context.Context) error

	// Push durably enqueues an opaque, already-encoded job buffer and
	// returns a stable, stringifiable ID for it. The driver does not
	// interpret buffer; it persists it verbatim and hands it back
	// through Jobs.
	Push(ctx context.Context, buffer []byte, opts PushOptions) (id.JobID, error)

	// Jobs returns a channel of queued jobs. Receiving blocks until a job
	// is available. The channel is closed only after Stop has been
	// observed and the driver has finished draining any jobs already
	// in flight to callers.
	Jobs(ctx context.Context) <-chan QueuedJob

	// Finished marks a job as successfully completed. Idempotent.
	Finished(ctx context.Context, jobID id.JobID) error

	// Failed marks a job as terminally failed. Idempotent.
	Failed(ctx context.Context, jobID id.JobID, cause error) error

	// GetMetadata reads a small durable value keyed by name. ok is false
	// if no value has been set for key.
	GetMetadata(ctx context.Context, key string) (value []byte, ok bool, err error)

	// SetMetadata durably stores a small value keyed by name, overwriting
	// any previous value.
	SetMetadata(ctx context.Context, key string, value []byte) error

	// Stop signals the driver to stop accepting new pulls: Jobs should
	// stop yielding new work and close once drained. Push must continue
	// to work after Stop (retries and delayed re-enqueues happen during
	// shutdown drain).
	Stop()

	// ShutdownGracefully is called once the pool has observed Jobs close
	// and all in-flight executions have completed.
	ShutdownGracefully(ctx context.Context) error
}
