package chronopool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/ext"
	"github.com/chronopool/chronopool/id"
	"github.com/chronopool/chronopool/job"
)

// defaultQueue is the logical queue name used when a caller does not set
// WithQueue.
const defaultQueue = "default"

// PushOption configures a single Push call.
type PushOption func(*pushConfig)

type pushConfig struct {
	delayUntil time.Time
	queue      string
}

// WithDelayUntil defers eligibility for dequeue until at, instead of
// immediately. The zero time (the default) means immediately eligible.
func WithDelayUntil(at time.Time) PushOption {
	return func(c *pushConfig) {
		c.delayUntil = at
	}
}

// WithQueue routes the push to a named queue. Drivers that support only a
// single queue ignore this.
func WithQueue(name string) PushOption {
	return func(c *pushConfig) {
		c.queue = name
	}
}

// Queue is the producer-facing façade over a driver.Driver and a
// job.Registry: it encodes a typed payload into the wire envelope and
// hands the opaque buffer to the driver, then reports the push through an
// ext.Registry so extensions (metrics, audit logging, ...) observe it
// without the driver or registry knowing about them.
type Queue struct {
	drv    driver.Driver
	reg    *job.Registry
	ext    *ext.Registry
	logger *slog.Logger
	push   PushMiddleware
}

// NewQueue builds a Queue over drv and reg. extensions may be nil, in
// which case pushes fire no lifecycle hooks. mws, if given, wraps every
// Push call in order (the first is outermost) — the producer-side
// extension point analogous to the worker pool's execute middleware.
func NewQueue(drv driver.Driver, reg *job.Registry, extensions *ext.Registry, logger *slog.Logger, mws ...PushMiddleware) *Queue {
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{drv: drv, reg: reg, ext: extensions, logger: logger, push: ChainPush(mws...)}
}

// Push encodes params as JSON, wraps it in a job.Request envelope for the
// named job, and durably enqueues it via the driver. It returns the
// driver-assigned JobID.
func (q *Queue) Push(ctx context.Context, name string, params any, opts ...PushOption) (id.JobID, error) {
	cfg := pushConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	parameters, err := json.Marshal(params)
	if err != nil {
		return id.Nil, fmt.Errorf("chronopool: marshal parameters for job %q: %w", name, err)
	}

	queue := cfg.queue
	if queue == "" {
		queue = defaultQueue
	}

	handler := func(ctx context.Context) (id.JobID, error) {
		req := job.Request{
			Name:       name,
			Parameters: parameters,
			QueuedAt:   time.Now(),
			DelayUntil: cfg.delayUntil,
			Queue:      queue,
		}

		buffer, err := job.EncodeRequest(req)
		if err != nil {
			return id.Nil, fmt.Errorf("chronopool: encode job %q: %w", name, err)
		}

		jobID, err := q.drv.Push(ctx, buffer, driver.PushOptions{
			DelayUntil: cfg.delayUntil,
			Queue:      queue,
		})
		if err != nil {
			return id.Nil, fmt.Errorf("chronopool: push job %q: %w", name, err)
		}

		return jobID, nil
	}

	jobID, err := q.push(ctx, PushInfo{Name: name, Parameters: parameters}, handler)
	if err != nil {
		return id.Nil, err
	}

	if q.ext != nil {
		q.ext.EmitJobEnqueued(ctx, jobID, name)
	}

	q.logger.Debug("job pushed",
		slog.String("job_name", name),
		slog.String("job_id", jobID.String()),
	)

	return jobID, nil
}
