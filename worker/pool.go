// Package worker drives a driver.Driver's job iterator with a bounded
// pool of concurrent executions, decoding envelopes through a
// job.Registry and retrying failed handlers by re-pushing with a
// computed backoff delay.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chronopool/chronopool"
	"github.com/chronopool/chronopool/backoff"
	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/ext"
	"github.com/chronopool/chronopool/id"
	"github.com/chronopool/chronopool/job"
	"github.com/chronopool/chronopool/middleware"
)

// Pool runs up to Concurrency job executions at a time, pulled from a
// driver.Driver's iterator. Construct one with NewPool and drive it with
// Run; call Shutdown from another goroutine (e.g. a signal handler) to
// stop accepting new work and drain in-flight executions.
type Pool struct {
	drv        driver.Driver
	reg        *job.Registry
	extensions *ext.Registry
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger

	concurrency int
	workerID    id.WorkerID
}

// Options configures a Pool.
type Options struct {
	Concurrency int
	Backoff     backoff.Strategy
	Middleware  []middleware.Middleware
	Extensions  *ext.Registry
	Logger      *slog.Logger
}

// DefaultOptions returns Options with sensible defaults: 10 concurrent
// workers, the default backoff strategy, an empty extension registry, and
// no middleware.
func DefaultOptions() Options {
	return Options{
		Concurrency: 10,
		Backoff:     backoff.Default(),
	}
}

// Option is a functional option for configuring a Pool.
type Option func(*Options)

// WithConcurrency sets the number of concurrent job executions.
func WithConcurrency(n int) Option {
	return func(o *Options) { o.Concurrency = n }
}

// WithBackoff overrides the default retry backoff strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(o *Options) { o.Backoff = s }
}

// WithMiddleware appends middleware run around every handler invocation,
// applied in the order given (first is outermost).
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *Options) { o.Middleware = append(o.Middleware, mws...) }
}

// WithExtensions sets the lifecycle extension registry.
func WithExtensions(reg *ext.Registry) Option {
	return func(o *Options) { o.Extensions = reg }
}

// WithLogger overrides the pool's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// NewPool builds a Pool over drv and reg.
func NewPool(drv driver.Driver, reg *job.Registry, opts ...Option) *Pool {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	extensions := o.Extensions
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}

	return &Pool{
		drv:         drv,
		reg:         reg,
		extensions:  extensions,
		backoff:     o.Backoff,
		mw:          middleware.Chain(o.Middleware...),
		logger:      logger,
		concurrency: o.Concurrency,
		workerID:    id.NewWorkerID(),
	}
}

// WorkerID returns the pool's unique identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Run consumes the driver's iterator with up to Concurrency concurrent
// executions until the iterator ends, then waits for in-flight
// executions to complete and calls ShutdownGracefully on the driver. Run
// blocks until this finishes; call Shutdown from another goroutine to
// begin graceful shutdown.
func (p *Pool) Run(ctx context.Context) error {
	if err := p.drv.OnInit(ctx); err != nil {
		return err
	}

	p.extensions.EmitPoolStarted(ctx, p.concurrency)
	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	jobs := p.drv.Jobs(ctx)

	var wg sync.WaitGroup
	for range p.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for qj := range jobs {
				p.runJob(ctx, qj)
			}
		}()
	}

	wg.Wait()
	p.logger.Info("worker pool drained", slog.String("worker_id", p.workerID.String()))

	return p.drv.ShutdownGracefully(ctx)
}

// Shutdown signals the driver to stop yielding new work; in-flight
// executions started by Run continue to completion.
func (p *Pool) Shutdown(ctx context.Context) {
	p.drv.Stop()
	p.extensions.EmitShutdown(ctx)
}

// runJob implements the per-envelope task: decode, delay check, execute
// with middleware, then dispatch success/retry/failure.
func (p *Pool) runJob(ctx context.Context, qj driver.QueuedJob) {
	start := time.Now()

	req, err := job.DecodeRequest(qj.Buffer)
	if err != nil {
		// The envelope couldn't be parsed, so no job name is available,
		// but OnJobFailed still needs a matching start to balance its
		// queued/processing bookkeeping (see metrics.Extension).
		p.extensions.EmitJobStarted(ctx, qj.ID, "")
		p.fail(ctx, qj.ID, "", err)

		return
	}
	name := req.Name

	p.extensions.EmitJobStarted(ctx, qj.ID, name)

	inv, err := p.reg.Decode(qj.Buffer)
	if err != nil {
		p.fail(ctx, qj.ID, name, err)
		return
	}

	if !req.DelayUntil.IsZero() && req.DelayUntil.After(time.Now()) {
		p.requeueUnchanged(ctx, qj, req, name)
		return
	}

	info := middleware.Info{ID: qj.ID, Name: name}
	handler := func(c context.Context) error {
		return inv.Execute(job.Context{Context: c, Logger: p.logger})
	}

	execErr := p.mw(ctx, info, handler)
	elapsed := time.Since(start)

	switch {
	case execErr == nil:
		p.succeed(ctx, qj.ID, name, elapsed)
	case errors.Is(execErr, chronopool.ErrCancelled):
		p.cancel(ctx, qj.ID, name, execErr)
	case req.Attempts < inv.MaxRetryCount:
		p.retry(ctx, qj.ID, name, req)
	default:
		p.fail(ctx, qj.ID, name, execErr)
	}
}

// requeueUnchanged re-pushes the same envelope without incrementing
// attempts, for a job pulled from the iterator before its delayUntil has
// elapsed (see the O1 open question: it must never be silently dropped).
func (p *Pool) requeueUnchanged(ctx context.Context, qj driver.QueuedJob, req job.Request, name string) {
	if _, err := p.drv.Push(ctx, qj.Buffer, driver.PushOptions{DelayUntil: req.DelayUntil, Queue: req.Queue}); err != nil {
		p.logger.Error("failed to re-enqueue delayed job",
			slog.String("job_id", qj.ID.String()),
			slog.String("job_name", name),
			slog.String("error", err.Error()),
		)
	}

	p.extensions.EmitJobRetried(ctx, qj.ID, name, req.Attempts, req.DelayUntil)
}

func (p *Pool) succeed(ctx context.Context, jobID id.JobID, name string, elapsed time.Duration) {
	if err := p.drv.Finished(ctx, jobID); err != nil {
		p.logger.Error("failed to mark job finished",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}
	p.extensions.EmitJobSucceeded(ctx, jobID, name, elapsed)
}

func (p *Pool) cancel(ctx context.Context, jobID id.JobID, name string, cause error) {
	if err := p.drv.Failed(ctx, jobID, cause); err != nil {
		p.logger.Error("failed to mark cancelled job failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}
	p.extensions.EmitJobCancelled(ctx, jobID, name)
}

func (p *Pool) retry(ctx context.Context, jobID id.JobID, name string, req job.Request) {
	attempt := req.Attempts + 1
	delay := p.backoff.Delay(attempt)
	next := req
	next.Attempts = attempt
	next.DelayUntil = time.Now().Add(delay)

	buffer, err := job.EncodeRequest(next)
	if err != nil {
		p.logger.Error("failed to encode retry envelope",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
		p.fail(ctx, jobID, name, err)
		return
	}

	if _, err := p.drv.Push(ctx, buffer, driver.PushOptions{DelayUntil: next.DelayUntil, Queue: next.Queue}); err != nil {
		p.logger.Error("failed to push retry envelope",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	} else if err := p.drv.Finished(ctx, jobID); err != nil {
		// The re-pushed envelope replaces this delivery; closing it out
		// keeps a driver from reaping and redelivering the old copy.
		p.logger.Error("failed to mark retried job finished",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}

	p.extensions.EmitJobRetried(ctx, jobID, name, attempt, next.DelayUntil)
}

func (p *Pool) fail(ctx context.Context, jobID id.JobID, name string, cause error) {
	if err := p.drv.Failed(ctx, jobID, cause); err != nil {
		p.logger.Error("failed to mark job failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()),
		)
	}
	p.extensions.EmitJobFailed(ctx, jobID, name, cause)
}
