package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/chronopool/chronopool/ext"
	"github.com/chronopool/chronopool/id"
)

// allHooksExt implements every lifecycle hook except PoolStarted for
// testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobEnqueued(_ context.Context, _ id.JobID, _ string) error {
	e.calls = append(e.calls, "OnJobEnqueued")
	return nil
}

func (e *allHooksExt) OnJobStarted(_ context.Context, _ id.JobID, _ string) error {
	e.calls = append(e.calls, "OnJobStarted")
	return nil
}

func (e *allHooksExt) OnJobSucceeded(_ context.Context, _ id.JobID, _ string, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobSucceeded")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ id.JobID, _ string, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobRetried(_ context.Context, _ id.JobID, _ string, _ int, _ time.Time) error {
	e.calls = append(e.calls, "OnJobRetried")
	return nil
}

func (e *allHooksExt) OnJobCancelled(_ context.Context, _ id.JobID, _ string) error {
	e.calls = append(e.calls, "OnJobCancelled")
	return nil
}

func (e *allHooksExt) OnCronFired(_ context.Context, _ string, _ id.JobID) error {
	e.calls = append(e.calls, "OnCronFired")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// jobOnlyExt only implements job-enqueue/succeed hooks.
type jobOnlyExt struct {
	calls []string
}

func (e *jobOnlyExt) Name() string { return "job-only" }

func (e *jobOnlyExt) OnJobEnqueued(_ context.Context, _ id.JobID, _ string) error {
	e.calls = append(e.calls, "OnJobEnqueued")
	return nil
}

func (e *jobOnlyExt) OnJobSucceeded(_ context.Context, _ id.JobID, _ string, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobSucceeded")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobEnqueued(_ context.Context, _ id.JobID, _ string) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}

	r.EmitShutdown(context.Background())
	if len(all.calls) != 1 || all.calls[0] != "OnShutdown" {
		t.Fatalf("expected Register to discover the Shutdown hook, got calls %v", all.calls)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	jo := &jobOnlyExt{}
	r.Register(all)
	r.Register(jo)

	ctx := context.Background()
	jobID := id.NewJobID()

	r.EmitJobEnqueued(ctx, jobID, "test-job")
	if len(all.calls) != 1 || all.calls[0] != "OnJobEnqueued" {
		t.Fatalf("all: expected [OnJobEnqueued], got %v", all.calls)
	}
	if len(jo.calls) != 1 || jo.calls[0] != "OnJobEnqueued" {
		t.Fatalf("jo: expected [OnJobEnqueued], got %v", jo.calls)
	}

	// Only all implements OnJobStarted → jo not called.
	r.EmitJobStarted(ctx, jobID, "test-job")
	if len(all.calls) != 2 || all.calls[1] != "OnJobStarted" {
		t.Fatalf("all: expected OnJobStarted as 2nd, got %v", all.calls)
	}
	if len(jo.calls) != 1 {
		t.Fatalf("jo: should still have 1 call, got %v", jo.calls)
	}
}

func TestRegistry_AllJobHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	jobID := id.NewJobID()

	r.EmitJobEnqueued(ctx, jobID, "test-job")
	r.EmitJobStarted(ctx, jobID, "test-job")
	r.EmitJobSucceeded(ctx, jobID, "test-job", time.Second)
	r.EmitJobFailed(ctx, jobID, "test-job", errors.New("fail"))
	r.EmitJobRetried(ctx, jobID, "test-job", 1, time.Now())
	r.EmitJobCancelled(ctx, jobID, "test-job")

	expected := []string{
		"OnJobEnqueued", "OnJobStarted", "OnJobSucceeded",
		"OnJobFailed", "OnJobRetried", "OnJobCancelled",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_CronAndShutdownHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	r.EmitCronFired(ctx, "daily-report", id.NewJobID())
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d: %v", len(all.calls), all.calls)
	}
	if all.calls[0] != "OnCronFired" {
		t.Errorf("call[0] = %q, want OnCronFired", all.calls[0])
	}
	if all.calls[1] != "OnShutdown" {
		t.Errorf("call[1] = %q, want OnShutdown", all.calls[1])
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	r.Register(failing)
	r.Register(all)

	ctx := context.Background()
	jobID := id.NewJobID()

	r.EmitJobEnqueued(ctx, jobID, "test-job")

	if len(all.calls) != 1 || all.calls[0] != "OnJobEnqueued" {
		t.Fatalf("all: expected [OnJobEnqueued] despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()
	jobID := id.NewJobID()

	r.EmitJobEnqueued(ctx, jobID, "x")
	r.EmitJobStarted(ctx, jobID, "x")
	r.EmitJobSucceeded(ctx, jobID, "x", time.Second)
	r.EmitJobFailed(ctx, jobID, "x", errors.New("x"))
	r.EmitJobRetried(ctx, jobID, "x", 1, time.Now())
	r.EmitJobCancelled(ctx, jobID, "x")
	r.EmitCronFired(ctx, "test", jobID)
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ext1 := &allHooksExt{}
	ext2 := &allHooksExt{}
	r.Register(ext1)
	r.Register(ext2)

	ctx := context.Background()
	r.EmitJobEnqueued(ctx, id.NewJobID(), "x")

	if len(ext1.calls) != 1 {
		t.Errorf("ext1: expected 1 call, got %d", len(ext1.calls))
	}
	if len(ext2.calls) != 1 {
		t.Errorf("ext2: expected 1 call, got %d", len(ext2.calls))
	}
}
