package models

import "fmt"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Thresholds are the per-criterion score bands. A score below SafeBelow
// is SAFE, at or above UnsafeAbove is UNSAFE, and everything in between
// is CAUTION. The band between SafeBelow and CautionBelow is ambiguous
// and resolves to CAUTION, never SAFE.
type Thresholds struct {
	SafeBelow    float64 `json:"safe_below" yaml:"safe_below"`
	CautionBelow float64 `json:"caution_below" yaml:"caution_below"`
	UnsafeAbove  float64 `json:"unsafe_above" yaml:"unsafe_above"`
}

// Criterion is one safety dimension to score. Immutable once a run starts.
type Criterion struct {
	ID             string     `json:"id" yaml:"id"`
	Label          string     `json:"label" yaml:"label"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	Severity       Severity   `json:"severity" yaml:"severity"`
	SeverityWeight float64    `json:"severity_weight" yaml:"severity_weight"`
	Thresholds     Thresholds `json:"thresholds" yaml:"thresholds"`
	Enabled        bool       `json:"enabled" yaml:"enabled"`
}

// ValidationError names the field that failed validation so callers can
// surface actionable configuration errors before a run starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Validate enforces the threshold ordering invariant
// safe_below <= caution_below <= unsafe_above.
func (c Criterion) Validate() error {
	if c.ID == "" {
		return &ValidationError{Field: "criterion.id", Reason: "must not be empty"}
	}
	t := c.Thresholds
	if t.SafeBelow < 0 || t.UnsafeAbove > 1 {
		return &ValidationError{
			Field:  fmt.Sprintf("criterion[%s].thresholds", c.ID),
			Reason: "thresholds must lie in [0,1]",
		}
	}
	if t.SafeBelow > t.CautionBelow {
		return &ValidationError{
			Field:  fmt.Sprintf("criterion[%s].thresholds.safe_below", c.ID),
			Reason: fmt.Sprintf("safe_below (%.2f) exceeds caution_below (%.2f)", t.SafeBelow, t.CautionBelow),
		}
	}
	if t.CautionBelow > t.UnsafeAbove {
		return &ValidationError{
			Field:  fmt.Sprintf("criterion[%s].thresholds.caution_below", c.ID),
			Reason: fmt.Sprintf("caution_below (%.2f) exceeds unsafe_above (%.2f)", t.CautionBelow, t.UnsafeAbove),
		}
	}
	if c.SeverityWeight < 0 {
		return &ValidationError{
			Field:  fmt.Sprintf("criterion[%s].severity_weight", c.ID),
			Reason: "must not be negative",
		}
	}
	return nil
}

// VerdictFor maps a fused score onto the criterion's threshold bands.
func (c Criterion) VerdictFor(score float64) Verdict {
	switch {
	case score >= c.Thresholds.UnsafeAbove:
		return VerdictUnsafe
	case score >= c.Thresholds.CautionBelow:
		return VerdictCaution
	case score < c.Thresholds.SafeBelow:
		return VerdictSafe
	default:
		// Ambiguous band between safe_below and caution_below.
		return VerdictCaution
	}
}
