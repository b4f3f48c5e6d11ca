package models

import "time"

// TimeRange localizes a finding within the media item, in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// EvidenceItem is a single typed detector finding. Confidence is the raw
// detection confidence; Score is the criterion-relevance value and may
// differ from it. Read-only once the producing stage finishes.
type EvidenceItem struct {
	ID          string         `json:"id"`
	DetectorID  string         `json:"detector_id"`
	CriterionID string         `json:"criterion_id,omitempty"`
	Label       string         `json:"label"`
	Category    string         `json:"category,omitempty"`
	Confidence  float64        `json:"confidence"`
	Score       float64        `json:"score,omitempty"`
	Timestamp   *float64       `json:"timestamp,omitempty"`
	TimeRanges  []TimeRange    `json:"time_ranges,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
