package queue

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestQueue(opts ...Option) *Queue {
	return New(nil, zerolog.Nop(), opts...)
}

// TestBackoffGrowsAndCaps exercises the exponential-backoff curve Queue.Fail
// relies on: each attempt should roughly double the delay until the
// configured cap takes over, regardless of jitter.
func TestBackoffGrowsAndCaps(t *testing.T) {
	q := newTestQueue(WithBackoff(time.Second, 10*time.Second, 0))

	prev := time.Duration(0)
	for attempt := 1; attempt <= 6; attempt++ {
		d := q.Backoff(attempt)
		if d < prev {
			t.Fatalf("attempt %d: backoff %v should not be smaller than previous attempt's %v", attempt, d, prev)
		}
		if d > 10*time.Second {
			t.Fatalf("attempt %d: backoff %v exceeds configured cap", attempt, d)
		}
		prev = d
	}
	if got := q.Backoff(6); got != 10*time.Second {
		t.Fatalf("expected attempt 6 to be capped at 10s, got %v", got)
	}
}

func TestBackoffTreatsNonPositiveAttemptAsFirst(t *testing.T) {
	q := newTestQueue(WithBackoff(time.Second, time.Minute, 0))
	if q.Backoff(0) != q.Backoff(1) {
		t.Fatalf("attempt <= 0 should behave like attempt 1")
	}
	if q.Backoff(-5) != q.Backoff(1) {
		t.Fatalf("negative attempt should behave like attempt 1")
	}
}

func TestBackoffJitterStaysWithinBounds(t *testing.T) {
	q := newTestQueue(WithBackoff(10*time.Second, time.Hour, 0.2))
	for i := 0; i < 50; i++ {
		d := q.Backoff(1)
		if d < 7*time.Second || d > 13*time.Second {
			t.Fatalf("jittered backoff %v out of expected +/-20%% range around 10s", d)
		}
	}
}
