package correlation

import (
	"testing"

	"github.com/google/uuid"
)

func TestRememberAndFetch(t *testing.T) {
	c := New(10)
	job, corr := uuid.New(), uuid.New()

	if _, ok := c.Fetch(job); ok {
		t.Fatal("expected no entry before Remember")
	}
	c.Remember(job, corr)
	got, ok := c.Fetch(job)
	if !ok || got != corr {
		t.Fatalf("Fetch() = %v, %v; want %v, true", got, ok, corr)
	}
}

func TestRememberOverwritesExisting(t *testing.T) {
	c := New(10)
	job := uuid.New()
	first, second := uuid.New(), uuid.New()

	c.Remember(job, first)
	c.Remember(job, second)
	got, ok := c.Fetch(job)
	if !ok || got != second {
		t.Fatalf("Remember should overwrite: got %v, want %v", got, second)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite should not grow the cache, Len() = %d", c.Len())
	}
}

// TestRememberIfAbsentPreservesPriorCorrelation grounds the merged-enqueue
// case (P7): a duplicate enqueue must not clobber the correlation id already
// associated with the job that's actually running.
func TestRememberIfAbsentPreservesPriorCorrelation(t *testing.T) {
	c := New(10)
	job := uuid.New()
	original := uuid.New()

	if got := c.RememberIfAbsent(job, original); got != original {
		t.Fatalf("first call should store and return %v, got %v", original, got)
	}
	duplicate := uuid.New()
	if got := c.RememberIfAbsent(job, duplicate); got != original {
		t.Fatalf("RememberIfAbsent on an existing job should return the original %v, got %v", original, got)
	}
	if got, _ := c.Fetch(job); got != original {
		t.Fatalf("stored correlation id should remain %v, got %v", original, got)
	}
}

func TestFetchOrGenerateIsStableAndMintsOnMiss(t *testing.T) {
	c := New(10)
	job := uuid.New()

	a := c.FetchOrGenerate(job)
	if a == uuid.Nil {
		t.Fatal("expected a non-nil generated id")
	}
	b := c.FetchOrGenerate(job)
	if a != b {
		t.Fatalf("repeated FetchOrGenerate on the same job should be stable: %v != %v", a, b)
	}
}

// TestEvictsLeastRecentlyUsed grounds the bounded-LRU eviction policy: once
// capacity is exceeded, the entry that was least recently touched (by
// Remember/Fetch/RememberIfAbsent/FetchOrGenerate) is dropped first.
func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	jobA, jobB, jobC := uuid.New(), uuid.New(), uuid.New()

	c.Remember(jobA, uuid.New())
	c.Remember(jobB, uuid.New())
	// Touch A so B becomes the least recently used entry.
	c.Fetch(jobA)

	c.Remember(jobC, uuid.New())
	if c.Len() != 2 {
		t.Fatalf("cache should stay at capacity, Len() = %d", c.Len())
	}
	if _, ok := c.Fetch(jobB); ok {
		t.Fatal("expected jobB to have been evicted as least recently used")
	}
	if _, ok := c.Fetch(jobA); !ok {
		t.Fatal("expected jobA to survive eviction, it was touched more recently")
	}
	if _, ok := c.Fetch(jobC); !ok {
		t.Fatal("expected jobC, the most recent insert, to be present")
	}
}

func TestNewNonPositiveCapacityDefaults(t *testing.T) {
	c := New(0)
	if c.capacity <= 0 {
		t.Fatalf("expected a positive default capacity, got %d", c.capacity)
	}
}
