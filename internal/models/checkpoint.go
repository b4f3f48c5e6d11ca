package models

import "time"

// Checkpoint is the durable snapshot of run progress. Stage outputs are
// keyed by stage id; values are normalized to portable types before they
// cross the persistence boundary.
type Checkpoint struct {
	RunID        string                    `json:"run_id"`
	CurrentStage string                    `json:"current_stage"`
	Progress     int                       `json:"progress"`
	StageOutputs map[string]map[string]any `json:"stage_outputs"`
	UpdatedAt    time.Time                 `json:"updated_at"`
}
