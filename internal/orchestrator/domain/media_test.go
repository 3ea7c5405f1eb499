package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMediaFingerprintEqual(t *testing.T) {
	base := MediaFingerprint{Size: 100, ModTime: time.Unix(1000, 0), WeakHash: "abc"}

	t.Run("identical size and mtime with matching device/inode", func(t *testing.T) {
		dev, ino := uint64(1), uint64(2)
		a := base
		a.DeviceID, a.Inode = &dev, &ino
		b := a
		if !a.Equal(b) {
			t.Fatal("expected equal fingerprints")
		}
	})

	t.Run("different size never equal", func(t *testing.T) {
		other := base
		other.Size = 101
		if base.Equal(other) {
			t.Fatal("expected unequal fingerprints for different size")
		}
	})

	t.Run("different mtime never equal", func(t *testing.T) {
		other := base
		other.ModTime = base.ModTime.Add(time.Second)
		if base.Equal(other) {
			t.Fatal("expected unequal fingerprints for different mtime")
		}
	})

	t.Run("falls back to weak hash when device/inode unavailable", func(t *testing.T) {
		a := base
		b := base
		if !a.Equal(b) {
			t.Fatal("expected equal fingerprints via weak hash fallback")
		}
		b.WeakHash = "different"
		if a.Equal(b) {
			t.Fatal("expected unequal fingerprints for differing weak hash")
		}
	})

	t.Run("empty weak hash on both sides is never treated as a match", func(t *testing.T) {
		a := base
		a.WeakHash = ""
		b := base
		b.WeakHash = ""
		if a.Equal(b) {
			t.Fatal("two fingerprints with no hash and no device/inode should not compare equal")
		}
	})
}

// TestDetailsStateIsUpgradeFrom covers INVARIANT D1 (P4): Details -> Endpoint
// transitions are forbidden, every other transition is legal.
func TestDetailsStateIsUpgradeFrom(t *testing.T) {
	details := &Details{TMDBID: 42}

	tests := []struct {
		name  string
		prior DetailsState
		next  DetailsState
		want  bool
	}{
		{"endpoint to endpoint", DetailsState{Endpoint: "a"}, DetailsState{Endpoint: "b"}, true},
		{"endpoint to details", DetailsState{Endpoint: "a"}, DetailsState{Details: details}, true},
		{"details to details (re-enrichment)", DetailsState{Details: details}, DetailsState{Details: details}, true},
		{"details to endpoint is forbidden", DetailsState{Details: details}, DetailsState{Endpoint: "a"}, false},
		{"zero value to zero value", DetailsState{}, DetailsState{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.next.IsUpgradeFrom(tt.prior); got != tt.want {
				t.Fatalf("IsUpgradeFrom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPriorityForScanReason(t *testing.T) {
	if got := PriorityForScanReason(ScanReasonUser); got != PriorityHigh {
		t.Fatalf("user-triggered scan should be PriorityHigh, got %v", got)
	}
	for _, reason := range []ScanReason{ScanReasonPeriodic, ScanReasonWatcher, ScanReasonForce} {
		if got := PriorityForScanReason(reason); got != PriorityLow {
			t.Fatalf("%s scan should be PriorityLow, got %v", reason, got)
		}
	}
}

func TestParentDescriptorsKnowsSubject(t *testing.T) {
	if (ParentDescriptors{}).KnowsSubject() {
		t.Fatal("empty descriptors should not claim to know a subject")
	}
	id := uuid.New()
	if !(ParentDescriptors{MovieID: &id}).KnowsSubject() {
		t.Fatal("descriptor with a MovieID should know its subject")
	}
}
