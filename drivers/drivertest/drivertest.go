// Package drivertest is a reusable conformance suite for driver.Driver
// implementations. Every backend under drivers/ is expected to satisfy
// the same push/deliver/finish/fail/metadata contract regardless of what
// it's built on, so the suite is written once here and each backend's
// own test file supplies only a factory and calls drivertest.Run.
package drivertest

import (
	"context"
	"testing"
	"time"

	"github.com/chronopool/chronopool/driver"
	"github.com/chronopool/chronopool/id"
)

// Factory returns a ready-to-use Driver. Run calls neither OnInit nor
// Stop, so the factory initializes the driver and registers its Stop as a
// test cleanup.
type Factory func(t *testing.T) driver.Driver

// Run exercises the driver.Driver contract common to every backend. It
// does not cover backend-specific behavior (e.g. cross-restart
// durability), which each driver's own test file verifies separately.
func Run(t *testing.T, newDriver Factory) {
	t.Helper()

	t.Run("PushThenDeliver", func(t *testing.T) { testPushThenDeliver(t, newDriver) })
	t.Run("DelayedJobWithheldUntilDue", func(t *testing.T) { testDelayedJobWithheldUntilDue(t, newDriver) })
	t.Run("FinishedAndFailedAreIdempotent", func(t *testing.T) { testFinishedAndFailedAreIdempotent(t, newDriver) })
	t.Run("MetadataRoundTrip", func(t *testing.T) { testMetadataRoundTrip(t, newDriver) })
}

func testPushThenDeliver(t *testing.T, newDriver Factory) {
	t.Helper()

	ctx := context.Background()
	drv := newDriver(t)

	jobID, err := drv.Push(ctx, []byte("payload"), driver.PushOptions{})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case queued := <-drv.Jobs(ctx):
		if queued.ID != jobID {
			t.Errorf("delivered ID = %v, want %v", queued.ID, jobID)
		}
		if string(queued.Buffer) != "payload" {
			t.Errorf("delivered buffer = %q, want %q", queued.Buffer, "payload")
		}
		if err := drv.Finished(ctx, queued.ID); err != nil {
			t.Errorf("Finished: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never delivered")
	}
}

func testDelayedJobWithheldUntilDue(t *testing.T, newDriver Factory) {
	t.Helper()

	ctx := context.Background()
	drv := newDriver(t)

	delay := 200 * time.Millisecond
	pushedAt := time.Now()
	if _, err := drv.Push(ctx, []byte("later"), driver.PushOptions{DelayUntil: pushedAt.Add(delay)}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	select {
	case <-drv.Jobs(ctx):
		if time.Since(pushedAt) < delay {
			t.Fatal("delayed job delivered before its DelayUntil instant")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("delayed job never delivered")
	}
}

func testFinishedAndFailedAreIdempotent(t *testing.T, newDriver Factory) {
	t.Helper()

	ctx := context.Background()
	drv := newDriver(t)

	if err := drv.Finished(ctx, id.NewJobID()); err != nil {
		t.Errorf("Finished on unknown job: %v", err)
	}
	if err := drv.Failed(ctx, id.NewJobID(), nil); err != nil {
		t.Errorf("Failed on unknown job: %v", err)
	}
}

func testMetadataRoundTrip(t *testing.T, newDriver Factory) {
	t.Helper()

	ctx := context.Background()
	drv := newDriver(t)

	if _, ok, err := drv.GetMetadata(ctx, "cursor"); ok || err != nil {
		t.Fatalf("GetMetadata(missing) = (_, %v, %v), want (_, false, nil)", ok, err)
	}

	if err := drv.SetMetadata(ctx, "cursor", []byte("first")); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := drv.SetMetadata(ctx, "cursor", []byte("second")); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}

	value, ok, err := drv.GetMetadata(ctx, "cursor")
	if err != nil || !ok {
		t.Fatalf("GetMetadata(cursor) = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if string(value) != "second" {
		t.Errorf("GetMetadata(cursor) = %q, want %q", value, "second")
	}
}
