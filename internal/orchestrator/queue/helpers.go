package queue

import (
	"encoding/json"

	"github.com/lib/pq"

	"github.com/JustinTDCT/orchestrator/internal/orchestrator/domain"
)

func marshalPayload(payload any) (json.RawMessage, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(payload)
}

func pqKindArray(kinds []domain.JobKind) any {
	strs := make([]string, len(kinds))
	for i, k := range kinds {
		strs[i] = string(k)
	}
	return pq.Array(strs)
}
