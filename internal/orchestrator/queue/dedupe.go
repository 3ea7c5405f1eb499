package queue

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// stableHash derives a deterministic dedupe key from a job's kind, library,
// and canonical payload, grounded in the teacher's xxhash dependency
// (left orphaned once asynq was dropped) and repurposed here per
// SPEC_FULL.md's DOMAIN STACK. encoding/json already sorts map keys, which
// gives us a canonical encoding for map-shaped payloads without a custom
// canonicalizer.
func stableHash(kind domain.JobKind, libraryID uuid.UUID, payload any) (string, error) {
	canon, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	h := xxhash.New()
	h.WriteString(string(kind))
	h.WriteString(":")
	h.WriteString(libraryID.String())
	h.WriteString(":")
	h.Write(canon)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
