package models

import "time"

// EvaluationJob describes one media item to evaluate and how to decide
// on it. Criteria are frozen when the run starts.
type EvaluationJob struct {
	JobID     string      `json:"job_id"`
	MediaID   string      `json:"media_id"`
	MediaType MediaType   `json:"media_type"`
	MediaPath string      `json:"media_path"`
	Criteria  []Criterion `json:"criteria"`
	Options   JobOptions  `json:"options"`
	CreatedAt time.Time   `json:"created_at"`
}

// JobOptions selects the decision strategies for one evaluation.
// Zero values fall back to the configured defaults.
type JobOptions struct {
	ScoringStrategy       string `json:"scoring_strategy,omitempty"`
	VerdictStrategy       string `json:"verdict_strategy,omitempty"`
	Parallel              bool   `json:"parallel,omitempty"`
	ConfirmationThreshold int    `json:"confirmation_threshold,omitempty"`
}

// EnabledCriteria filters the job's criteria down to the enabled ones.
func (j EvaluationJob) EnabledCriteria() []Criterion {
	var enabled []Criterion
	for _, c := range j.Criteria {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled
}
