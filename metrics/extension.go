package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/chronopool/chronopool/ext"
	"github.com/chronopool/chronopool/id"
)

// Extension adapts an Emitter into an ext.Extension, so worker.Pool and
// scheduler.Scheduler never import this package directly: they only emit
// lifecycle hooks through an ext.Registry, and metrics collection is one
// more subscriber alongside any user-supplied observer.
type Extension struct {
	emitter Emitter

	mu         sync.Mutex
	enqueuedAt map[string]time.Time
	startedAt  map[string]time.Time
}

var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobEnqueued  = (*Extension)(nil)
	_ ext.JobStarted   = (*Extension)(nil)
	_ ext.JobSucceeded = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
	_ ext.JobRetried   = (*Extension)(nil)
	_ ext.JobCancelled = (*Extension)(nil)
	_ ext.PoolStarted  = (*Extension)(nil)
)

// NewExtension wraps emitter as an ext.Extension. Passing a nil emitter is
// a programming error; use Noop{} for no-op collection.
func NewExtension(emitter Emitter) *Extension {
	return &Extension{
		emitter:    emitter,
		enqueuedAt: make(map[string]time.Time),
		startedAt:  make(map[string]time.Time),
	}
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "metrics" }

// OnJobEnqueued implements ext.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, jobID id.JobID, name string) error {
	e.mu.Lock()
	e.enqueuedAt[jobID.String()] = timeNow()
	e.mu.Unlock()

	e.emitter.MarkQueued(ctx, name)
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, jobID id.JobID, name string) error {
	now := timeNow()

	e.mu.Lock()
	if enqueuedAt, ok := e.enqueuedAt[jobID.String()]; ok {
		delete(e.enqueuedAt, jobID.String())
		e.mu.Unlock()
		e.emitter.RecordQueuedFor(ctx, name, now.Sub(enqueuedAt))
	} else {
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.startedAt[jobID.String()] = now
	e.mu.Unlock()

	e.emitter.MarkDequeued(ctx, name)
	return nil
}

// OnJobSucceeded implements ext.JobSucceeded.
func (e *Extension) OnJobSucceeded(ctx context.Context, jobID id.JobID, name string, elapsed time.Duration) error {
	e.finish(jobID)
	e.emitter.RecordTerminal(ctx, name, StatusSucceeded, elapsed)
	e.emitter.MarkProcessingDone(ctx, name)
	return nil
}

// OnJobFailed implements ext.JobFailed. The hook carries no elapsed
// duration, so it is derived from the OnJobStarted timestamp.
func (e *Extension) OnJobFailed(ctx context.Context, jobID id.JobID, name string, _ error) error {
	elapsed := e.finish(jobID)
	e.emitter.RecordTerminal(ctx, name, StatusFailed, elapsed)
	e.emitter.MarkProcessingDone(ctx, name)
	return nil
}

// OnJobRetried implements ext.JobRetried.
func (e *Extension) OnJobRetried(ctx context.Context, jobID id.JobID, name string, _ int, _ time.Time) error {
	elapsed := e.finish(jobID)
	e.emitter.RecordTerminal(ctx, name, StatusRetried, elapsed)
	e.emitter.MarkProcessingDone(ctx, name)
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, jobID id.JobID, name string) error {
	elapsed := e.finish(jobID)
	e.emitter.RecordTerminal(ctx, name, StatusCancelled, elapsed)
	e.emitter.MarkProcessingDone(ctx, name)
	return nil
}

// OnPoolStarted implements ext.PoolStarted.
func (e *Extension) OnPoolStarted(ctx context.Context, numWorkers int) error {
	e.emitter.SetWorkers(ctx, numWorkers)
	return nil
}

// finish removes and returns the elapsed time since OnJobStarted for
// jobID, or zero if no start was recorded.
func (e *Extension) finish(jobID id.JobID) time.Duration {
	key := jobID.String()

	e.mu.Lock()
	defer e.mu.Unlock()

	startedAt, ok := e.startedAt[key]
	if !ok {
		return 0
	}
	delete(e.startedAt, key)

	return timeNow().Sub(startedAt)
}

// timeNow is a var so tests can substitute a deterministic clock.
var timeNow = time.Now
