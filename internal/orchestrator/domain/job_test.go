package domain

import "testing"

func TestPriorityString(t *testing.T) {
	cases := map[Priority]string{
		PriorityLow:      "low",
		PriorityNormal:    "normal",
		PriorityHigh:     "high",
		PriorityCritical: "critical",
		Priority(99):     "normal", // unknown values fall back to normal
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Priority(%d).String() = %q, want %q", p, got, want)
		}
	}
}

// TestAllJobKindsComplete guards against the gauge-refresh sweep silently
// losing a kind if JobKind gains a new value someday without AllJobKinds
// being updated alongside it.
func TestAllJobKindsComplete(t *testing.T) {
	want := []JobKind{JobFolderScan, JobMediaAnalyze, JobMetadataEnrich, JobIndexUpsert, JobImageFetch}
	if len(AllJobKinds) != len(want) {
		t.Fatalf("AllJobKinds has %d entries, want %d", len(AllJobKinds), len(want))
	}
	seen := make(map[JobKind]bool, len(AllJobKinds))
	for _, k := range AllJobKinds {
		seen[k] = true
	}
	for _, k := range want {
		if !seen[k] {
			t.Errorf("AllJobKinds missing %s", k)
		}
	}
}
