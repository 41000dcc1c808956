package backoff_test

import (
	"testing"
	"time"

	"github.com/chronopool/chronopool/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestDefault_WithinSpecBounds(t *testing.T) {
	s := backoff.Default()
	if s == nil {
		t.Fatal("Default() returned nil")
	}

	tests := []struct {
		attempt int
		upper   time.Duration
	}{
		{1, 500 * time.Millisecond}, // min(60s, 0.25s*2^1)
		{2, time.Second},            // min(60s, 0.25s*2^2)
		{3, 2 * time.Second},        // min(60s, 0.25s*2^3)
		{10, 60 * time.Second},      // capped at maxInterval
		{30, 60 * time.Second},      // capped at maxInterval
	}

	for _, tt := range tests {
		for range 50 {
			got := s.Delay(tt.attempt)
			if got < 0 {
				t.Errorf("Delay(%d) = %v, should be >= 0", tt.attempt, got)
			}
			if got > tt.upper {
				t.Errorf("Delay(%d) = %v, should be <= %v", tt.attempt, got, tt.upper)
			}
		}
	}
}

func TestDefault_ProducesVariance(t *testing.T) {
	s := backoff.Default()

	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[s.Delay(5)] = true
	}

	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got only %d distinct values", len(seen))
	}
}

func TestDefault_CanReturnZero(t *testing.T) {
	// Full jitter's lower bound is 0; a zero delay is a legal outcome the
	// worker pool must not reject.
	s := backoff.Default()

	var sawZero bool
	for range 100000 {
		if s.Delay(1) == 0 {
			sawZero = true
			break
		}
	}
	if !sawZero {
		t.Skip("did not observe a zero delay in 100000 samples; a zero from Delay(1) needs a jitter draw below about 2e-9, so most runs skip here")
	}
}
