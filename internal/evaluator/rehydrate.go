package evaluator

import (
	"encoding/json"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/models"
)

// rehydrate converts checkpointed stage outputs back into blackboard
// values. Persistence normalizes everything to generic JSON types, so
// evidence collections must be decoded back into typed items for the
// fusion engine to read them.
func rehydrate(outputs map[string]any) blackboard.Patch {
	patch := make(blackboard.Patch, len(outputs))
	for key, value := range outputs {
		if blackboard.IsEvidenceKey(key) {
			if items, ok := decodeEvidence(value); ok {
				patch[key] = items
				continue
			}
		}
		patch[key] = value
	}
	return patch
}

func decodeEvidence(value any) ([]models.EvidenceItem, bool) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	var items []models.EvidenceItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}
