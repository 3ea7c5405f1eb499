package queue

import (
	"testing"

	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// TestStableHashDeterministic grounds INVARIANT Q1 (P1 Dedupe) at the
// dedupe-key-derivation level: the same (kind, library, payload) must always
// hash to the same key, and the queue's ON CONFLICT (kind, dedupe_key) clause
// depends on that determinism to recognize duplicate work.
func TestStableHashDeterministic(t *testing.T) {
	lib := uuid.New()
	payload := map[string]any{"path": "/movies/Foo (2020)", "n": 1}

	a, err := stableHash(domain.JobFolderScan, lib, payload)
	if err != nil {
		t.Fatalf("stableHash: %v", err)
	}
	b, err := stableHash(domain.JobFolderScan, lib, payload)
	if err != nil {
		t.Fatalf("stableHash: %v", err)
	}
	if a != b {
		t.Fatalf("stableHash not deterministic: %s != %s", a, b)
	}
}

func TestStableHashDistinguishesInputs(t *testing.T) {
	lib1, lib2 := uuid.New(), uuid.New()
	payload := map[string]any{"path": "/movies/Foo (2020)"}

	base, err := stableHash(domain.JobFolderScan, lib1, payload)
	if err != nil {
		t.Fatalf("stableHash: %v", err)
	}

	cases := map[string]string{}
	if h, err := stableHash(domain.JobFolderScan, lib2, payload); err == nil {
		cases["different library"] = h
	}
	if h, err := stableHash(domain.JobMediaAnalyze, lib1, payload); err == nil {
		cases["different kind"] = h
	}
	if h, err := stableHash(domain.JobFolderScan, lib1, map[string]any{"path": "/movies/Bar (2021)"}); err == nil {
		cases["different payload"] = h
	}

	for name, h := range cases {
		if h == base {
			t.Errorf("%s: expected a different hash, got the same %s", name, h)
		}
	}
}

func TestStableHashMapKeyOrderIndependent(t *testing.T) {
	lib := uuid.New()
	a, err := stableHash(domain.JobMetadataEnrich, lib, map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("stableHash: %v", err)
	}
	b, err := stableHash(domain.JobMetadataEnrich, lib, map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("stableHash: %v", err)
	}
	if a != b {
		t.Fatalf("expected map-key order to not affect the canonical hash: %s != %s", a, b)
	}
}
