package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/ext"
	"github.com/chronopool/chronopool/id"
	"github.com/chronopool/chronopool/job"
	"github.com/chronopool/chronopool/schedule"
)

// MetadataLastDateKey is the driver metadata key the scheduler uses to
// persist its cursor across restarts. Keys beginning with "jobSchedule"
// are reserved for this package.
const MetadataLastDateKey = "jobScheduleLastDate"

// EntryOption configures a ScheduleEntry at registration time.
type EntryOption func(*ScheduleEntry)

// WithEntryName overrides the entry's name used in logs and CronFired.
func WithEntryName(name string) EntryOption {
	return func(e *ScheduleEntry) { e.Name = name }
}

// WithEntryQueue overrides the queue pushed jobs land on.
func WithEntryQueue(queue string) EntryOption {
	return func(e *ScheduleEntry) { e.Queue = queue }
}

// Options configures a Scheduler.
type Options struct {
	Extensions *ext.Registry
	Logger     *slog.Logger
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Options)

// WithExtensions sets the lifecycle extension registry.
func WithExtensions(reg *ext.Registry) Option {
	return func(o *Options) { o.Extensions = reg }
}

// WithLogger overrides the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// Scheduler runs a fixed JobSchedule, pushing each entry's job onto drv
// at its scheduled instant. It persists a single cursor so missed
// firings are replayed on restart per each entry's Accuracy.
type Scheduler struct {
	drv        driver.Driver
	schedule   JobSchedule
	extensions *ext.Registry
	logger     *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Scheduler over drv with an empty schedule. Add entries
// with AddJob before calling Run.
func New(drv driver.Driver, opts ...Option) *Scheduler {
	o := Options{}
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

	return &Scheduler{
		drv:        drv,
		extensions: extensions,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// AddJob appends a recurring job to the schedule. params is JSON-encoded
// once at registration and pushed unchanged with every firing.
// NextScheduledDate is populated when Run starts, not here.
func (s *Scheduler) AddJob(jobName string, params any, rec schedule.Recurrence, accuracy Accuracy, opts ...EntryOption) (id.ScheduleEntryID, error) {
	parameters, err := json.Marshal(params)
	if err != nil {
		return id.Nil, fmt.Errorf("scheduler: marshal params for %q: %w", jobName, err)
	}

	entry := &ScheduleEntry{
		ID:         id.NewScheduleEntryID(),
		Name:       jobName,
		JobName:    jobName,
		Parameters: parameters,
		Schedule:   rec,
		Accuracy:   accuracy,
	}
	for _, opt := range opts {
		opt(entry)
	}

	s.schedule.Add(entry)

	return entry.ID, nil
}

// Schedule exposes the underlying JobSchedule for inspection and tests.
func (s *Scheduler) Schedule() *JobSchedule { return &s.schedule }

// Run loads the persisted cursor, replays any firings missed since it,
// then blocks running the steady fire loop until ctx is cancelled or
// Shutdown is called. It returns nil on a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	now := time.Now()
	lastDate := s.loadLastDate(ctx, now)

	for _, e := range s.schedule.All() {
		e.NextScheduledDate = e.Schedule.NextDate(lastDate)
	}

	s.logger.Info("scheduler starting",
		slog.Int("entries", s.schedule.Len()),
		slog.Time("last_date", lastDate),
	)

	s.catchUp(ctx, now)
	s.steadyLoop(ctx)

	s.logger.Info("scheduler stopped")

	return nil
}

// Shutdown signals the steady loop to stop, interrupting its current wait.
// Idempotent; safe to call from another goroutine.
func (s *Scheduler) Shutdown(_ context.Context) {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.extensions.EmitShutdown(context.Background())
}

// catchUp replays firings missed between each entry's cursor and now,
// per its Accuracy policy (§4.6 step 2).
func (s *Scheduler) catchUp(ctx context.Context, now time.Time) {
	for _, e := range s.schedule.All() {
		if e.Accuracy != AccuracyLatest {
			continue
		}
		if e.NextScheduledDate.After(now) {
			continue
		}

		s.fire(ctx, e, e.NextScheduledDate)
		e.NextScheduledDate = e.Schedule.NextDate(now)
	}

	for {
		idx, e := s.dueAllEntry(now)
		if e == nil {
			break
		}

		fireAt := e.NextScheduledDate
		s.fire(ctx, e, fireAt)
		e.NextScheduledDate = e.Schedule.NextDate(fireAt)
		_ = idx
	}
}

// dueAllEntry returns the AccuracyAll entry with the smallest
// NextScheduledDate that is due at or before now, or (-1, nil) if none.
func (s *Scheduler) dueAllEntry(now time.Time) (int, *ScheduleEntry) {
	bestIdx := -1
	var best *ScheduleEntry

	for i, e := range s.schedule.All() {
		if e.Accuracy != AccuracyAll || e.NextScheduledDate.After(now) {
			continue
		}
		if best == nil || e.NextScheduledDate.Before(best.NextScheduledDate) {
			bestIdx, best = i, e
		}
	}

	return bestIdx, best
}

// steadyLoop implements §4.6 step 3: sleep until the earliest due
// instant, fire every entry due at that instant, advance them, persist
// the cursor, and repeat until stopped.
func (s *Scheduler) steadyLoop(ctx context.Context) {
	for {
		_, e := s.schedule.NextJob()
		if e == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
		}

		fire := e.NextScheduledDate
		timer := time.NewTimer(time.Until(fire))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}

		for _, ent := range s.schedule.All() {
			if !ent.NextScheduledDate.Equal(fire) {
				continue
			}

			s.fire(ctx, ent, fire)
			ent.NextScheduledDate = ent.Schedule.NextDate(fire)
		}

		s.saveLastDate(ctx, fire)
	}
}

// fire pushes entry's job template as a new envelope and emits CronFired.
func (s *Scheduler) fire(ctx context.Context, entry *ScheduleEntry, firedAt time.Time) {
	req := job.Request{
		Name:       entry.JobName,
		Parameters: entry.Parameters,
		QueuedAt:   time.Now(),
		Queue:      entry.Queue,
	}

	buffer, err := job.EncodeRequest(req)
	if err != nil {
		s.logger.Error("failed to encode cron envelope",
			slog.String("entry", entry.Name),
			slog.String("error", err.Error()),
		)

		return
	}

	jobID, err := s.drv.Push(ctx, buffer, driver.PushOptions{Queue: entry.Queue})
	if err != nil {
		s.logger.Error("failed to push cron job",
			slog.String("entry", entry.Name),
			slog.String("error", err.Error()),
		)

		return
	}

	s.extensions.EmitCronFired(ctx, entry.Name, jobID)
	s.logger.Info("cron fired",
		slog.String("entry", entry.Name),
		slog.String("job_name", entry.JobName),
		slog.String("job_id", jobID.String()),
		slog.Time("fired_at", firedAt),
	)
}

// loadLastDate reads the persisted cursor, defaulting to now if absent
// or unparsable.
func (s *Scheduler) loadLastDate(ctx context.Context, now time.Time) time.Time {
	raw, ok, err := s.drv.GetMetadata(ctx, MetadataLastDateKey)
	if err != nil {
		s.logger.Warn("failed to read scheduler cursor", slog.String("error", err.Error()))

		return now
	}
	if !ok {
		return now
	}

	parsed, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		s.logger.Warn("failed to parse scheduler cursor", slog.String("error", err.Error()))

		return now
	}

	return parsed
}

// saveLastDate persists the cursor after a steady-loop firing.
func (s *Scheduler) saveLastDate(ctx context.Context, at time.Time) {
	if err := s.drv.SetMetadata(ctx, MetadataLastDateKey, []byte(at.Format(time.RFC3339Nano))); err != nil {
		s.logger.Warn("failed to persist scheduler cursor", slog.String("error", err.Error()))
	}
}
