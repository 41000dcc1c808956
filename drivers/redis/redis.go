// Package redis implements driver.Driver over Redis. Jobs live in one
// sorted set per logical queue, scored by ready-at time; a claim moves a
// job from its queue set into a shared in-flight set with a heartbeat
// deadline, and a reap pass periodically returns any claim whose deadline
// has passed to its original queue so a crash between claim and delivery
// never loses the job — see the package's reap step in loop.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/id"
)

const (
	keyPrefix      = "chronopool:"
	queueKeyPrefix = keyPrefix + "queue:"
	jobKeyPrefix   = keyPrefix + "job:"
	jobQueueKey    = keyPrefix + "job_queue"
	inflightKey    = keyPrefix + "inflight"
	metadataKey    = keyPrefix + "metadata"

	// defaultQueue is the logical queue name used when a caller does not
	// set driver.PushOptions.Queue.
	defaultQueue = "default"
)

func jobKey(jobID string) string   { return jobKeyPrefix + jobID }
func queueKey(queue string) string { return queueKeyPrefix + queue }

// defaultPollInterval bounds how long the dispatch loop waits before
// retrying a peek that failed, so a transient Redis error doesn't wedge
// the loop forever. It also bounds how often loop checks for stale
// in-flight claims to reap.
const defaultPollInterval = time.Second

// defaultClaimTimeout is how long a claimed job may stay in-flight
// before loop's reap pass assumes its worker died and returns it to its
// queue for redelivery.
const defaultClaimTimeout = 30 * time.Second

// Options configures a Driver.
type Options struct {
	Logger       *slog.Logger
	PollInterval time.Duration
	ClaimTimeout time.Duration
	// Queues restricts this Driver to draining the named logical queues.
	// Pushes to other queues are still accepted and stored; they simply
	// are not yielded by this Driver's Jobs channel. Unset serves only
	// the "default" queue.
	Queues []string
}

// Option is a functional option for New.
type Option func(*Options)

// WithLogger overrides the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithPollInterval overrides the retry interval used after a Redis error
// and the interval between reap passes.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) { o.PollInterval = d }
}

// WithClaimTimeout overrides how long a claim may go unfinished before
// it is reaped back to its queue.
func WithClaimTimeout(d time.Duration) Option {
	return func(o *Options) { o.ClaimTimeout = d }
}

// WithQueues restricts this Driver to draining only the named logical
// queues.
func WithQueues(names ...string) Option {
	return func(o *Options) { o.Queues = names }
}

// Driver is a driver.Driver backed by Redis.
type Driver struct {
	client       goredis.Cmdable
	logger       *slog.Logger
	pollInterval time.Duration
	claimTimeout time.Duration
	queues       []string

	stopped atomic.Bool
	wake    chan struct{}
	out     chan driver.QueuedJob
	done    chan struct{}
}

var _ driver.Driver = (*Driver)(nil)

// New wraps an existing Redis client. client is a goredis.Cmdable so
// callers can pass a *redis.Client, a *redis.ClusterClient, or a fake in
// tests.
func New(client goredis.Cmdable, opts ...Option) *Driver {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pollInterval := o.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	claimTimeout := o.ClaimTimeout
	if claimTimeout <= 0 {
		claimTimeout = defaultClaimTimeout
	}

	queues := o.Queues
	if len(queues) == 0 {
		queues = []string{defaultQueue}
	}

	return &Driver{
		client:       client,
		logger:       logger,
		pollInterval: pollInterval,
		claimTimeout: claimTimeout,
		queues:       queues,
		wake:         make(chan struct{}, 1),
		out:          make(chan driver.QueuedJob),
		done:         make(chan struct{}),
	}
}

// OnInit implements driver.Driver.
func (d *Driver) OnInit(ctx context.Context) error {
	go d.loop(ctx)

	return nil
}

// Push implements driver.Driver. It keeps working after Stop: a handler
// still draining when shutdown begins must be able to retry or requeue
// without its job silently vanishing.
func (d *Driver) Push(ctx context.Context, buffer []byte, opts driver.PushOptions) (id.JobID, error) {
	readyAt := opts.DelayUntil
	if readyAt.IsZero() {
		readyAt = time.Now()
	}

	queue := opts.Queue
	if queue == "" {
		queue = defaultQueue
	}

	jobID := id.NewJobID()

	pipe := d.client.TxPipeline()
	pipe.Set(ctx, jobKey(jobID.String()), buffer, 0)
	pipe.HSet(ctx, jobQueueKey, jobID.String(), queue)
	pipe.ZAdd(ctx, queueKey(queue), goredis.Z{
		Score:  float64(readyAt.UnixNano()),
		Member: jobID.String(),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return id.Nil, driver.Wrap("push", err)
	}

	d.signal()

	return jobID, nil
}

// Jobs implements driver.Driver.
func (d *Driver) Jobs(_ context.Context) <-chan driver.QueuedJob { return d.out }

// Finished implements driver.Driver.
func (d *Driver) Finished(ctx context.Context, jobID id.JobID) error {
	return d.cleanup(ctx, "finished", jobID)
}

// Failed implements driver.Driver.
func (d *Driver) Failed(ctx context.Context, jobID id.JobID, _ error) error {
	return d.cleanup(ctx, "failed", jobID)
}

func (d *Driver) cleanup(ctx context.Context, op string, jobID id.JobID) error {
	pipe := d.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, jobID.String())
	pipe.HDel(ctx, jobQueueKey, jobID.String())
	pipe.Del(ctx, jobKey(jobID.String()))

	if _, err := pipe.Exec(ctx); err != nil {
		return driver.Wrap(op, err)
	}

	return nil
}

// GetMetadata implements driver.Driver.
func (d *Driver) GetMetadata(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := d.client.HGet(ctx, metadataKey, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, driver.Wrap("get_metadata", err)
	}

	return []byte(value), true, nil
}

// SetMetadata implements driver.Driver.
func (d *Driver) SetMetadata(ctx context.Context, key string, value []byte) error {
	if err := d.client.HSet(ctx, metadataKey, key, value).Err(); err != nil {
		return driver.Wrap("set_metadata", err)
	}

	return nil
}

// Stop implements driver.Driver.
func (d *Driver) Stop() {
	d.stopped.Store(true)
	d.signal()
}

// ShutdownGracefully implements driver.Driver.
func (d *Driver) ShutdownGracefully(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// loop peeks the lowest-scored member across every served queue, waits
// until it is due, then claims it by atomically moving it from its
// queue set into the in-flight set before delivering it on out. Once
// Stop is observed it flushes whatever is already due and returns
// without touching members that are not yet ready: they remain in Redis
// for the next process to pick up. Each iteration also reaps any
// in-flight claim whose heartbeat deadline has passed, returning it to
// its queue so a worker that died mid-delivery never loses the job.
func (d *Driver) loop(ctx context.Context) {
	defer close(d.done)
	defer close(d.out)

	for {
		d.reap(ctx)

		queue, member, score, ok, err := d.peekMin(ctx)
		if err != nil {
			d.logger.Error("redis driver: peek failed", slog.String("error", err.Error()))

			select {
			case <-time.After(d.pollInterval):
				continue
			case <-ctx.Done():
				return
			}
		}

		if !ok {
			if d.stopped.Load() {
				return
			}

			select {
			case <-d.wake:
				continue
			case <-time.After(d.pollInterval):
				continue
			case <-ctx.Done():
				return
			}
		}

		readyAt := time.Unix(0, int64(score))
		now := time.Now()
		if readyAt.After(now) {
			if d.stopped.Load() {
				return
			}

			wait := readyAt.Sub(now)
			if wait > d.pollInterval {
				wait = d.pollInterval
			}
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-d.wake:
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()

				return
			}

			continue
		}

		buffer, jobID, claimed, err := d.claim(ctx, queue, member)
		if err != nil {
			d.logger.Error("redis driver: claim failed", slog.String("error", err.Error()))

			continue
		}
		if !claimed {
			// another consumer claimed it first.
			continue
		}

		select {
		case d.out <- driver.QueuedJob{ID: jobID, Buffer: buffer}:
		case <-ctx.Done():
			return
		}
	}
}

// claim atomically removes member from queue and records it in the
// in-flight set with a heartbeat deadline, then fetches its body. If
// another consumer already removed member from queue, the ZADD to
// in-flight is rolled back and claimed is false.
func (d *Driver) claim(ctx context.Context, queue, member string) (buffer []byte, jobID id.JobID, claimed bool, err error) {
	deadline := float64(time.Now().Add(d.claimTimeout).UnixNano())

	pipe := d.client.TxPipeline()
	zrem := pipe.ZRem(ctx, queueKey(queue), member)
	pipe.ZAdd(ctx, inflightKey, goredis.Z{Score: deadline, Member: member})

	if _, execErr := pipe.Exec(ctx); execErr != nil {
		return nil, id.Nil, false, driver.Wrap("claim", execErr)
	}

	if zrem.Val() == 0 {
		if delErr := d.client.ZRem(ctx, inflightKey, member).Err(); delErr != nil {
			d.logger.Error("redis driver: rollback of lost claim race failed",
				slog.String("job_id", member), slog.String("error", delErr.Error()))
		}

		return nil, id.Nil, false, nil
	}

	body, err := d.client.Get(ctx, jobKey(member)).Bytes()
	if err != nil {
		return nil, id.Nil, false, driver.Wrap("claim", err)
	}

	parsed, err := id.ParseJobID(member)
	if err != nil {
		return nil, id.Nil, false, driver.Wrap("claim", err)
	}

	return body, parsed, true, nil
}

// peekMin returns the lowest-scored member across every served queue,
// without removing it.
func (d *Driver) peekMin(ctx context.Context) (queue, member string, score float64, ok bool, err error) {
	var bestQueue, bestMember string
	var bestScore float64
	found := false

	for _, q := range d.queues {
		results, zErr := d.client.ZRangeWithScores(ctx, queueKey(q), 0, 0).Result()
		if zErr != nil {
			return "", "", 0, false, driver.Wrap("peek", zErr)
		}
		if len(results) == 0 {
			continue
		}

		z := results[0]
		memberStr, isString := z.Member.(string)
		if !isString {
			return "", "", 0, false, driver.Wrap("peek", errors.New("redis driver: non-string member in queue set"))
		}

		if !found || z.Score < bestScore {
			bestQueue, bestMember, bestScore, found = q, memberStr, z.Score, true
		}
	}

	if !found {
		return "", "", 0, false, nil
	}

	return bestQueue, bestMember, bestScore, true, nil
}

// reap returns any in-flight claim whose heartbeat deadline has passed
// to its original queue, ready for immediate redelivery. Errors are
// logged, not returned: a failed reap pass just means this round's
// stale claims wait for the next one.
func (d *Driver) reap(ctx context.Context) {
	now := float64(time.Now().UnixNano())

	stale, err := d.client.ZRangeByScore(ctx, inflightKey, &goredis.ZRangeBy{Min: "-inf", Max: formatScore(now)}).Result()
	if err != nil {
		d.logger.Error("redis driver: reap scan failed", slog.String("error", err.Error()))

		return
	}

	for _, jobID := range stale {
		queue, err := d.client.HGet(ctx, jobQueueKey, jobID).Result()
		if errors.Is(err, goredis.Nil) {
			// no record of which queue it came from; drop the stale
			// in-flight marker rather than leaving it forever.
			_ = d.client.ZRem(ctx, inflightKey, jobID).Err()

			continue
		}
		if err != nil {
			d.logger.Error("redis driver: reap lookup failed",
				slog.String("job_id", jobID), slog.String("error", err.Error()))

			continue
		}

		pipe := d.client.TxPipeline()
		pipe.ZRem(ctx, inflightKey, jobID)
		pipe.ZAdd(ctx, queueKey(queue), goredis.Z{Score: now, Member: jobID})

		if _, err := pipe.Exec(ctx); err != nil {
			d.logger.Error("redis driver: reap requeue failed",
				slog.String("job_id", jobID), slog.String("error", err.Error()))

			continue
		}

		d.logger.Warn("redis driver: reaped stale claim",
			slog.String("job_id", jobID), slog.String("queue", queue))
	}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
