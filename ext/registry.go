package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/chronopool/chronopool/id"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobEnqueuedEntry struct {
	name string
	hook JobEnqueued
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobSucceededEntry struct {
	name string
	hook JobSucceeded
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobRetriedEntry struct {
	name string
	hook JobRetried
}

type jobCancelledEntry struct {
	name string
	hook JobCancelled
}

type cronFiredEntry struct {
	name string
	hook CronFired
}

type poolStartedEntry struct {
	name string
	hook PoolStarted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobEnqueued  []jobEnqueuedEntry
	jobStarted   []jobStartedEntry
	jobSucceeded []jobSucceededEntry
	jobFailed    []jobFailedEntry
	jobRetried   []jobRetriedEntry
	jobCancelled []jobCancelledEntry
	cronFired    []cronFiredEntry
	poolStarted  []poolStartedEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobEnqueued); ok {
		r.jobEnqueued = append(r.jobEnqueued, jobEnqueuedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobSucceeded); ok {
		r.jobSucceeded = append(r.jobSucceeded, jobSucceededEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobRetried); ok {
		r.jobRetried = append(r.jobRetried, jobRetriedEntry{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, h})
	}
	if h, ok := e.(CronFired); ok {
		r.cronFired = append(r.cronFired, cronFiredEntry{name, h})
	}
	if h, ok := e.(PoolStarted); ok {
		r.poolStarted = append(r.poolStarted, poolStartedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitJobEnqueued notifies all extensions that implement JobEnqueued.
func (r *Registry) EmitJobEnqueued(ctx context.Context, jobID id.JobID, name string) {
	for _, e := range r.jobEnqueued {
		if err := e.hook.OnJobEnqueued(ctx, jobID, name); err != nil {
			r.logHookError("OnJobEnqueued", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, jobID id.JobID, name string) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, jobID, name); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobSucceeded notifies all extensions that implement JobSucceeded.
func (r *Registry) EmitJobSucceeded(ctx context.Context, jobID id.JobID, name string, elapsed time.Duration) {
	for _, e := range r.jobSucceeded {
		if err := e.hook.OnJobSucceeded(ctx, jobID, name, elapsed); err != nil {
			r.logHookError("OnJobSucceeded", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, jobID id.JobID, name string, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, jobID, name, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobRetried notifies all extensions that implement JobRetried.
func (r *Registry) EmitJobRetried(ctx context.Context, jobID id.JobID, name string, attempt int, delayUntil time.Time) {
	for _, e := range r.jobRetried {
		if err := e.hook.OnJobRetried(ctx, jobID, name, attempt, delayUntil); err != nil {
			r.logHookError("OnJobRetried", e.name, err)
		}
	}
}

// EmitJobCancelled notifies all extensions that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, jobID id.JobID, name string) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, jobID, name); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

// EmitCronFired notifies all extensions that implement CronFired.
func (r *Registry) EmitCronFired(ctx context.Context, entryName string, jobID id.JobID) {
	for _, e := range r.cronFired {
		if err := e.hook.OnCronFired(ctx, entryName, jobID); err != nil {
			r.logHookError("OnCronFired", e.name, err)
		}
	}
}

// EmitPoolStarted notifies all extensions that implement PoolStarted.
func (r *Registry) EmitPoolStarted(ctx context.Context, numWorkers int) {
	for _, e := range r.poolStarted {
		if err := e.hook.OnPoolStarted(ctx, numWorkers); err != nil {
			r.logHookError("OnPoolStarted", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
