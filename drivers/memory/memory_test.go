package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/drivers/drivertest"
	"github.com/chronopool/chronopool/drivers/memory"
	"github.com/chronopool/chronopool/id"
)

func TestDriver_Conformance(t *testing.T) {
	drivertest.Run(t, func(t *testing.T) driver.Driver {
		t.Helper()

		d := memory.New()
		if err := d.OnInit(context.Background()); err != nil {
			t.Fatalf("OnInit: %v", err)
		}
		t.Cleanup(d.Stop)

		return d
	})
}

func TestDriver_WithQueuesFiltersDelivery(t *testing.T) {
	d := memory.New(memory.WithQueues("urgent"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.OnInit(ctx); err != nil {
		t.Fatalf("OnInit: %v", err)
	}

	if _, err := d.Push(ctx, []byte("ignored"), driver.PushOptions{Queue: "background"}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	urgentID, err := d.Push(ctx, []byte("urgent"), driver.PushOptions{Queue: "urgent"})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case qj := <-d.Jobs(ctx):
		if qj.ID != urgentID {
			t.Errorf("expected the urgent-queue job first, got %v", qj.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for urgent-queue job")
	}

	select {
	case qj := <-d.Jobs(ctx):
		t.Fatalf("unexpected delivery from unserved queue: %+v", qj)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDriver_PushAndReceive(t *testing.T) {
	d := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.OnInit(ctx); err != nil {
		t.Fatalf("OnInit: %v", err)
	}

	jobID, err := d.Push(ctx, []byte("payload"), driver.PushOptions{})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case qj := <-d.Jobs(ctx):
		if qj.ID != jobID {
			t.Errorf("expected ID %v, got %v", jobID, qj.ID)
		}
		if string(qj.Buffer) != "payload" {
			t.Errorf("expected buffer %q, got %q", "payload", qj.Buffer)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job")
	}
}

func TestDriver_DelayedJobNotYieldedEarly(t *testing.T) {
	d := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.OnInit(ctx); err != nil {
		t.Fatalf("OnInit: %v", err)
	}

	readyAt := time.Now().Add(150 * time.Millisecond)
	if _, err := d.Push(ctx, []byte("later"), driver.PushOptions{DelayUntil: readyAt}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case <-d.Jobs(ctx):
		t.Fatal("job yielded before its delay elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case qj := <-d.Jobs(ctx):
		if string(qj.Buffer) != "later" {
			t.Errorf("expected buffer %q, got %q", "later", qj.Buffer)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delayed job")
	}
}

func TestDriver_FinishedAndFailedAreIdempotent(t *testing.T) {
	d := memory.New()
	ctx := context.Background()

	if err := d.Finished(ctx, id.NewJobID()); err != nil {
		t.Errorf("Finished on unknown job: %v", err)
	}
	if err := d.Failed(ctx, id.NewJobID(), nil); err != nil {
		t.Errorf("Failed on unknown job: %v", err)
	}
}

func TestDriver_MetadataRoundTrip(t *testing.T) {
	d := memory.New()
	ctx := context.Background()

	if _, ok, err := d.GetMetadata(ctx, "cursor"); ok || err != nil {
		t.Fatalf("expected no value, got ok=%v err=%v", ok, err)
	}

	if err := d.SetMetadata(ctx, "cursor", []byte("2024-01-01")); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	value, ok, err := d.GetMetadata(ctx, "cursor")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if !ok {
		t.Fatal("expected value to exist")
	}
	if string(value) != "2024-01-01" {
		t.Errorf("expected %q, got %q", "2024-01-01", value)
	}
}

func TestDriver_PushAfterStopStillSucceeds(t *testing.T) {
	d := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.OnInit(ctx); err != nil {
		t.Fatalf("OnInit: %v", err)
	}

	d.Stop()

	if err := d.ShutdownGracefully(ctx); err != nil {
		t.Fatalf("ShutdownGracefully: %v", err)
	}

	// A handler still draining when shutdown begins retries or requeues by
	// calling Push; that must never fail just because Stop was observed.
	if _, err := d.Push(ctx, []byte("late"), driver.PushOptions{}); err != nil {
		t.Fatalf("Push after Stop: %v", err)
	}
}

func TestDriver_JobsChannelClosesAfterStop(t *testing.T) {
	d := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.OnInit(ctx); err != nil {
		t.Fatalf("OnInit: %v", err)
	}

	d.Stop()

	select {
	case _, ok := <-d.Jobs(ctx):
		if ok {
			t.Fatal("expected channel to be closed with no pending jobs")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
