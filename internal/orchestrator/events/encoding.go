package events

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

// Wire encodes events for the out-of-scope transport layer to ship
// (SPEC_FULL.md §6.2: "binary payload preferred, JSON fallback"). CBOR fills
// the binary slot — it needs no code generation step, unlike protobuf,
// which this build cannot run (no protoc).
type Wire struct {
	cborMode cbor.EncMode
}

func NewWire() (*Wire, error) {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("build cbor encode mode: %w", err)
	}
	return &Wire{cborMode: mode}, nil
}

func (w *Wire) EncodeJobEvent(e domain.JobEvent) ([]byte, error) {
	if b, err := w.cborMode.Marshal(e); err == nil {
		return b, nil
	}
	return json.Marshal(e)
}

func (w *Wire) EncodeDomainEvent(e domain.DomainEvent) ([]byte, error) {
	if b, err := w.cborMode.Marshal(e); err == nil {
		return b, nil
	}
	return json.Marshal(e)
}

// DecodeJobEvent tries CBOR first, falling back to JSON for callers that
// sent the degraded wire format.
func DecodeJobEvent(b []byte) (domain.JobEvent, error) {
	var e domain.JobEvent
	if err := cbor.Unmarshal(b, &e); err == nil {
		return e, nil
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.JobEvent{}, fmt.Errorf("decode job event: %w", err)
	}
	return e, nil
}

func DecodeDomainEvent(b []byte) (domain.DomainEvent, error) {
	var e domain.DomainEvent
	if err := cbor.Unmarshal(b, &e); err == nil {
		return e, nil
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.DomainEvent{}, fmt.Errorf("decode domain event: %w", err)
	}
	return e, nil
}
