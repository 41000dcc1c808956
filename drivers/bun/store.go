package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/id"
)

// defaultPollInterval bounds how long the dispatch loop sleeps when the
// table currently has no ready row. It also bounds how often loop reaps
// claims that have gone stale.
const defaultPollInterval = 500 * time.Millisecond

// defaultClaimTimeout is how long a claimed row may sit without a
// Finished or Failed call before reapStale returns it to the pool for
// redelivery, whether or not it was already handed to a worker.
const defaultClaimTimeout = 30 * time.Second

// defaultQueue is the logical queue name used when a caller does not set
// driver.PushOptions.Queue.
const defaultQueue = "default"

// Options configures a Driver.
type Options struct {
	Logger       *slog.Logger
	PollInterval time.Duration
	ClaimTimeout time.Duration
	// Queues restricts this Driver to draining the named logical queues.
	// Unset serves every queue.
	Queues []string
}

// Option is a functional option for New.
type Option func(*Options)

// WithLogger overrides the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithPollInterval overrides the interval used when no row is due.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) { o.PollInterval = d }
}

// WithClaimTimeout overrides how long a claimed row may go unfinished
// before it is reaped back to the pool.
func WithClaimTimeout(d time.Duration) Option {
	return func(o *Options) { o.ClaimTimeout = d }
}

// WithQueues restricts this Driver to draining only the named logical
// queues.
func WithQueues(names ...string) Option {
	return func(o *Options) { o.Queues = names }
}

// Driver is a driver.Driver backed by PostgreSQL through the uptrace/bun
// ORM. The caller owns the *bun.DB lifecycle; Driver never closes it. A
// row is claimed by setting claimed = TRUE and claimed_at = NOW(); loop's
// reap pass periodically un-claims any row whose claimed_at has aged past
// ClaimTimeout without a Finished/Failed call, so a process that dies
// between claiming a row and handing it to a worker never loses it.
type Driver struct {
	db           *bun.DB
	logger       *slog.Logger
	pollInterval time.Duration
	claimTimeout time.Duration
	queues       []string // nil means "serve every queue"

	stopped chan struct{}
	wake    chan struct{}
	out     chan driver.QueuedJob
	done    chan struct{}
}

var _ driver.Driver = (*Driver)(nil)

// New wraps an existing *bun.DB configured with the PostgreSQL dialect.
func New(db *bun.DB, opts ...Option) *Driver {
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

	return &Driver{
		db:           db,
		logger:       logger,
		pollInterval: pollInterval,
		claimTimeout: claimTimeout,
		queues:       o.Queues,
		stopped:      make(chan struct{}),
		wake:         make(chan struct{}, 1),
		out:          make(chan driver.QueuedJob),
		done:         make(chan struct{}),
	}
}

// DB returns the underlying *bun.DB for advanced usage.
func (d *Driver) DB() *bun.DB { return d.db }

// Ping checks database connectivity.
func (d *Driver) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

// OnInit implements driver.Driver.
func (d *Driver) OnInit(ctx context.Context) error {
	go d.loop(ctx)

	return nil
}

// Push implements driver.Driver.
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
	m := &jobModel{ID: jobID.String(), Queue: queue, Buffer: buffer, ReadyAt: readyAt}

	if _, err := d.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return id.Nil, driver.Wrap("push", err)
	}

	d.signal()

	return jobID, nil
}

// Jobs implements driver.Driver.
func (d *Driver) Jobs(_ context.Context) <-chan driver.QueuedJob { return d.out }

// Finished implements driver.Driver.
func (d *Driver) Finished(ctx context.Context, jobID id.JobID) error {
	if _, err := d.db.NewDelete().Model((*jobModel)(nil)).Where("id = ?", jobID.String()).Exec(ctx); err != nil {
		return driver.Wrap("finished", err)
	}

	return nil
}

// Failed implements driver.Driver.
func (d *Driver) Failed(ctx context.Context, jobID id.JobID, _ error) error {
	if _, err := d.db.NewDelete().Model((*jobModel)(nil)).Where("id = ?", jobID.String()).Exec(ctx); err != nil {
		return driver.Wrap("failed", err)
	}

	return nil
}

// GetMetadata implements driver.Driver.
func (d *Driver) GetMetadata(ctx context.Context, key string) ([]byte, bool, error) {
	m := new(metadataModel)

	err := d.db.NewSelect().Model(m).Where("key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, driver.Wrap("get_metadata", err)
	}

	return m.Value, true, nil
}

// SetMetadata implements driver.Driver.
func (d *Driver) SetMetadata(ctx context.Context, key string, value []byte) error {
	m := &metadataModel{Key: key, Value: value}

	_, err := d.db.NewInsert().Model(m).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return driver.Wrap("set_metadata", err)
	}

	return nil
}

// Stop implements driver.Driver.
func (d *Driver) Stop() {
	select {
	case <-d.stopped:
	default:
		close(d.stopped)
	}
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

func (d *Driver) isStopped() bool {
	select {
	case <-d.stopped:
		return true
	default:
		return false
	}
}

// loop claims the earliest ready row with raw SQL: bun's query builder has
// no first-class SKIP LOCKED support, so the atomic claim mirrors
// dispatch's bun DequeueJobs, which reaches for NewRaw for the same
// reason.
func (d *Driver) loop(ctx context.Context) {
	defer close(d.done)
	defer close(d.out)

	for {
		if err := d.reapStale(ctx); err != nil {
			d.logger.Error("bun driver: reap failed", slog.String("error", err.Error()))
		}

		jobID, buffer, nextReady, found, err := d.claimReady(ctx)
		if err != nil {
			d.logger.Error("bun driver: claim failed", slog.String("error", err.Error()))

			select {
			case <-time.After(d.pollInterval):
				continue
			case <-ctx.Done():
				return
			}
		}

		if found {
			select {
			case d.out <- driver.QueuedJob{ID: jobID, Buffer: buffer}:
			case <-ctx.Done():
				return
			}

			continue
		}

		if d.isStopped() {
			return
		}

		wait := d.pollInterval
		if !nextReady.IsZero() {
			if untilReady := time.Until(nextReady); untilReady < wait {
				wait = untilReady
			}
		}
		if wait < 0 {
			wait = 0
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
	}
}

func (d *Driver) claimReady(ctx context.Context) (jobID id.JobID, buffer []byte, nextReady time.Time, found bool, err error) {
	var claimed []jobModel

	query := `
		WITH claimed AS (
			SELECT id FROM chronopool_jobs
			WHERE NOT claimed AND ready_at <= NOW()`
	args := make([]interface{}, 0, 1)
	if len(d.queues) > 0 {
		query += ` AND queue = ANY(?0)`
		args = append(args, pgdialect.Array(d.queues))
	}
	query += `
			ORDER BY ready_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE chronopool_jobs SET claimed = TRUE, claimed_at = NOW()
		WHERE id IN (SELECT id FROM claimed)
		RETURNING id, buffer, ready_at, claimed, claimed_at`

	_, execErr := d.db.NewRaw(query, args...).Exec(ctx, &claimed)
	if execErr != nil {
		return id.Nil, nil, time.Time{}, false, fmt.Errorf("chronopool/bun: claim: %w", execErr)
	}

	if len(claimed) == 0 {
		next, nextErr := d.earliestPending(ctx)
		if nextErr != nil {
			return id.Nil, nil, time.Time{}, false, nextErr
		}

		return id.Nil, nil, next, false, nil
	}

	m := claimed[0]

	parsedID, parseErr := id.ParseJobID(m.ID)
	if parseErr != nil {
		return id.Nil, nil, time.Time{}, false, fmt.Errorf("chronopool/bun: parse job id %q: %w", m.ID, parseErr)
	}

	return parsedID, m.Buffer, time.Time{}, true, nil
}

func (d *Driver) earliestPending(ctx context.Context) (time.Time, error) {
	var ready sql.NullTime

	q := d.db.NewSelect().
		ColumnExpr("MIN(ready_at)").
		Model((*jobModel)(nil)).
		Where("NOT claimed")
	if len(d.queues) > 0 {
		q = q.Where("queue IN (?)", bun.In(d.queues))
	}

	if err := q.Scan(ctx, &ready); err != nil {
		return time.Time{}, fmt.Errorf("chronopool/bun: earliest pending: %w", err)
	}
	if !ready.Valid {
		return time.Time{}, nil
	}

	return ready.Time, nil
}

// reapStale returns any row claimed longer than ClaimTimeout ago, and not
// yet finished or failed, back to the pool. A row whose job is still
// executing past ClaimTimeout is reaped as well.
func (d *Driver) reapStale(ctx context.Context) error {
	res, err := d.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("claimed = FALSE").
		Set("claimed_at = NULL").
		Where("claimed").
		Where("claimed_at < ?", time.Now().Add(-d.claimTimeout)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("chronopool/bun: reap stale: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 { //nolint:errcheck // driver always returns nil
		d.logger.Warn("bun driver: reaped stale claims", slog.Int64("count", n))
	}

	return nil
}
