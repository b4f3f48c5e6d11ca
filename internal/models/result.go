package models

import "time"

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// PipelineRunResult aggregates per-stage outcomes for one run.
// SkippedStages lists supporting/advisory stages that failed or were
// skipped; the fusion engine uses it to decay confidence.
type PipelineRunResult struct {
	RunID         string        `json:"run_id"`
	Status        RunStatus     `json:"status"`
	StageRuns     []StageRun    `json:"stage_runs"`
	SkippedStages []string      `json:"skipped_stages,omitempty"`
	Duration      time.Duration `json:"duration_ns"`
	Error         string        `json:"error,omitempty"`
}

// CriterionScore is the fused per-criterion outcome.
type CriterionScore struct {
	Score    float64  `json:"score"`
	Verdict  Verdict  `json:"verdict"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// Violation is emitted for every criterion whose verdict is CAUTION or
// worse.
type Violation struct {
	Criterion  string      `json:"criterion"`
	Label      string      `json:"label"`
	Severity   Severity    `json:"severity"`
	Score      float64     `json:"score"`
	TimeRanges []TimeRange `json:"time_ranges,omitempty"`
}

// Explanation makes the decision auditable: a one-line summary, a line
// per criterion, and the factors that drove the final verdict.
type Explanation struct {
	Summary      string            `json:"summary"`
	PerCriterion map[string]string `json:"per_criterion,omitempty"`
	KeyFactors   []string          `json:"key_factors,omitempty"`
}

// FusionResult is the outbound result contract. Derived once at the end
// of a run and never mutated afterward.
type FusionResult struct {
	Verdict     Verdict                   `json:"verdict"`
	Confidence  float64                   `json:"confidence"`
	Criteria    map[string]CriterionScore `json:"criteria"`
	Violations  []Violation               `json:"violations"`
	Explanation Explanation               `json:"explanation"`
	Error       string                    `json:"error,omitempty"`
}
