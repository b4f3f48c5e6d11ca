package models

import (
	"fmt"
	"time"
)

// Impact classifies how a stage failure affects the run: critical aborts,
// supporting and advisory degrade gracefully.
type Impact string

const (
	ImpactCritical   Impact = "critical"
	ImpactSupporting Impact = "supporting"
	ImpactAdvisory   Impact = "advisory"
)

// StageSpec configures one stage instance inside a pipeline plan.
type StageSpec struct {
	Type       string         `json:"type" yaml:"type"`
	ID         string         `json:"id" yaml:"id"`
	Enabled    bool           `json:"enabled" yaml:"enabled"`
	Required   bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Impact     Impact         `json:"impact" yaml:"impact"`
	Config     map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Phase      string         `json:"phase,omitempty" yaml:"phase,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty" yaml:"-"`
}

// Validate rejects malformed specs eagerly, before any stage executes.
func (s StageSpec) Validate() error {
	if s.Type == "" {
		return &ValidationError{Field: "stage.type", Reason: "must not be empty"}
	}
	if s.ID == "" {
		return &ValidationError{Field: fmt.Sprintf("stage[%s].id", s.Type), Reason: "must not be empty"}
	}
	if s.Required && !s.Enabled {
		return &ValidationError{
			Field:  fmt.Sprintf("stage[%s].enabled", s.ID),
			Reason: "required stage cannot be disabled",
		}
	}
	switch s.Impact {
	case ImpactCritical, ImpactSupporting, ImpactAdvisory:
	default:
		return &ValidationError{
			Field:  fmt.Sprintf("stage[%s].impact", s.ID),
			Reason: fmt.Sprintf("unknown impact level %q", s.Impact),
		}
	}
	for _, dep := range s.DependsOn {
		if dep == s.ID {
			return &ValidationError{
				Field:  fmt.Sprintf("stage[%s].depends_on", s.ID),
				Reason: "stage cannot depend on itself",
			}
		}
	}
	return nil
}

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// Terminal reports whether a stage has finished one way or another.
func (s StageStatus) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageSkipped
}

// StageRun records the outcome of one stage within one run. Immutable
// after the stage reaches a terminal status.
type StageRun struct {
	StageID    string        `json:"stage_id"`
	Status     StageStatus   `json:"status"`
	Duration   time.Duration `json:"duration_ns"`
	Error      string        `json:"error,omitempty"`
	SkipReason string        `json:"skip_reason,omitempty"`
}
