package job_test

import (
	"testing"
	"time"

	"github.com/chronopool/chronopool/job"
)

func TestEncodeDecodeRequest_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	delay := now.Add(time.Minute)

	original := job.Request{
		Name:       "send-email",
		Parameters: []byte(`{"to":"alice@example.com"}`),
		QueuedAt:   now,
		Attempts:   2,
		DelayUntil: delay,
	}

	buf, err := job.EncodeRequest(original)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	got, err := job.DecodeRequest(buf)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}

	if got.Name != original.Name {
		t.Errorf("Name = %q, want %q", got.Name, original.Name)
	}
	if string(got.Parameters) != string(original.Parameters) {
		t.Errorf("Parameters = %q, want %q", got.Parameters, original.Parameters)
	}
	if !got.QueuedAt.Equal(original.QueuedAt) {
		t.Errorf("QueuedAt = %v, want %v", got.QueuedAt, original.QueuedAt)
	}
	if got.Attempts != original.Attempts {
		t.Errorf("Attempts = %d, want %d", got.Attempts, original.Attempts)
	}
	if !got.DelayUntil.Equal(original.DelayUntil) {
		t.Errorf("DelayUntil = %v, want %v", got.DelayUntil, original.DelayUntil)
	}
}

func TestDecodeRequest_InvalidBuffer(t *testing.T) {
	_, err := job.DecodeRequest([]byte("not msgpack"))
	if err == nil {
		t.Fatal("expected error decoding invalid buffer")
	}
}

func TestEncodeRequest_ZeroDelayMeansImmediate(t *testing.T) {
	buf, err := job.EncodeRequest(job.Request{Name: "no-delay", QueuedAt: time.Now()})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	got, err := job.DecodeRequest(buf)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if !got.DelayUntil.IsZero() {
		t.Errorf("expected zero DelayUntil, got %v", got.DelayUntil)
	}
}
