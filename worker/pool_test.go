package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chronopool/chronopool/backoff"
	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/drivers/memory"
	"github.com/chronopool/chronopool/ext"
	"github.com/chronopool/chronopool/id"
	"github.com/chronopool/chronopool/job"
	"github.com/chronopool/chronopool/worker"
)

type greeting struct {
	Name string `json:"name"`
}

// recordingExtension collects lifecycle events for assertions.
type recordingExtension struct {
	mu        sync.Mutex
	succeeded []string
	failed    []string
	retried   []string
	cancelled []string
}

func (r *recordingExtension) Name() string { return "recorder" }

func (r *recordingExtension) OnJobSucceeded(_ context.Context, _ id.JobID, name string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, name)
	return nil
}

func (r *recordingExtension) OnJobFailed(_ context.Context, _ id.JobID, name string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, name)
	return nil
}

func (r *recordingExtension) OnJobRetried(_ context.Context, _ id.JobID, name string, _ int, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retried = append(r.retried, name)
	return nil
}

func (r *recordingExtension) OnJobCancelled(_ context.Context, _ id.JobID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, name)
	return nil
}

func (r *recordingExtension) counts() (succeeded, failed, retried, cancelled int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.succeeded), len(r.failed), len(r.retried), len(r.cancelled)
}

func pushGreeting(t *testing.T, drv *memory.Driver, name string, opts ...func(*job.Request)) id.JobID {
	t.Helper()

	ctx := context.Background()
	params, err := json.Marshal(greeting{Name: name})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := job.Request{Name: "greet", Parameters: params, QueuedAt: time.Now()}
	for _, opt := range opts {
		opt(&req)
	}

	buffer, err := job.EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	jobID, err := drv.Push(ctx, buffer, driver.PushOptions{DelayUntil: req.DelayUntil})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	return jobID
}

func TestPool_ExecutesSucceedingJob(t *testing.T) {
	drv := memory.New()
	reg := job.NewRegistry()
	rec := &recordingExtension{}

	var called atomic.Bool
	if err := job.RegisterDefinition(reg, job.NewDefinition("greet",
		func(_ job.Context, p greeting) error {
			called.Store(true)
			_ = p
			return nil
		})); err != nil {
		t.Fatalf("register: %v", err)
	}

	extReg := newRegistryWith(rec)
	pool := worker.NewPool(drv, reg, worker.WithConcurrency(2), worker.WithExtensions(extReg))

	pushGreeting(t, drv, "ada")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	waitFor(t, func() bool { s, _, _, _ := rec.counts(); return s == 1 })

	pool.Shutdown(context.Background())
	cancel()
	<-done

	if !called.Load() {
		t.Fatal("handler was not called")
	}
}

func TestPool_RetriesUntilExhausted(t *testing.T) {
	drv := memory.New()
	reg := job.NewRegistry()
	rec := &recordingExtension{}
	extReg := newRegistryWith(rec)

	var attempts atomic.Int32
	wantErr := errors.New("transient")
	if err := job.RegisterDefinition(reg, job.NewDefinition("greet",
		func(_ job.Context, _ greeting) error {
			attempts.Add(1)
			return wantErr
		},
		job.WithMaxRetryCount(2),
	)); err != nil {
		t.Fatalf("register: %v", err)
	}

	pool := worker.NewPool(drv, reg,
		worker.WithConcurrency(1),
		worker.WithExtensions(extReg),
		worker.WithBackoff(backoff.NewConstant(time.Millisecond)),
	)

	pushGreeting(t, drv, "grace")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	waitFor(t, func() bool { _, failed, _, _ := rec.counts(); return failed == 1 })

	pool.Shutdown(context.Background())
	cancel()
	<-done

	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 total attempts (1 + 2 retries), got %d", got)
	}

	succeeded, failed, retried, _ := rec.counts()
	if succeeded != 0 || failed != 1 || retried != 2 {
		t.Errorf("expected succeeded=0 failed=1 retried=2, got succeeded=%d failed=%d retried=%d",
			succeeded, failed, retried)
	}
}

func TestPool_DelayedJobNotExecutedEarly(t *testing.T) {
	drv := memory.New()
	reg := job.NewRegistry()
	rec := &recordingExtension{}
	extReg := newRegistryWith(rec)

	var executedAt atomic.Value
	if err := job.RegisterDefinition(reg, job.NewDefinition("greet",
		func(_ job.Context, _ greeting) error {
			executedAt.Store(time.Now())
			return nil
		})); err != nil {
		t.Fatalf("register: %v", err)
	}

	pool := worker.NewPool(drv, reg, worker.WithConcurrency(1), worker.WithExtensions(extReg))

	pushedAt := time.Now()
	delayUntil := pushedAt.Add(200 * time.Millisecond)
	pushGreeting(t, drv, "later", func(r *job.Request) { r.DelayUntil = delayUntil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	waitFor(t, func() bool { s, _, _, _ := rec.counts(); return s == 1 })

	pool.Shutdown(context.Background())
	cancel()
	<-done

	got, ok := executedAt.Load().(time.Time)
	if !ok {
		t.Fatal("handler never executed")
	}
	if got.Before(delayUntil) {
		t.Errorf("job executed at %v, before its delayUntil %v", got, delayUntil)
	}
}

func newRegistryWith(extensions ...ext.Extension) *ext.Registry {
	reg := ext.NewRegistry(slog.Default())
	for _, e := range extensions {
		reg.Register(e)
	}
	return reg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
