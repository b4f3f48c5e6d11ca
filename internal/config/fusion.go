package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vmorozov/mediaguard/internal/models"
)

// Rule types evaluated by the rule-based scoring strategy.
const (
	RuleThreshold = "threshold"
	RuleBoost     = "boost"
	RuleMultiply  = "multiply"
	RuleAny       = "any"
)

// FusionRule is one declarative scoring rule. Threshold and any rules
// propose a score when a source clears min_score; boost and multiply
// adjust the weighted-sum base.
type FusionRule struct {
	Criterion string  `yaml:"criterion"`
	Type      string  `yaml:"type"`
	Source    string  `yaml:"source"`
	MinScore  float64 `yaml:"min_score"`
	Value     float64 `yaml:"value"`
	Weight    float64 `yaml:"weight"`
}

// CalibrationProfile scales reliability-weighted scores and gates them
// on a minimum number of contributing sources.
type CalibrationProfile struct {
	Multiplier float64 `yaml:"multiplier"`
	MinSources int     `yaml:"min_sources"`
}

// AggregateThresholds are the two bands used by the weighted_average
// verdict strategy.
type AggregateThresholds struct {
	UnsafeAbove  float64 `yaml:"unsafe_above"`
	CautionAbove float64 `yaml:"caution_above"`
}

// ConfidenceDecay controls how skipped supporting stages reduce final
// confidence. Confidence never reaches zero: Floor keeps it positive.
type ConfidenceDecay struct {
	PerSkippedStage float64 `yaml:"per_skipped_stage"`
	MaxReduction    float64 `yaml:"max_reduction"`
	Floor           float64 `yaml:"floor"`
}

// FusionConfig is the decision-layer configuration surface.
type FusionConfig struct {
	DefaultScoringStrategy string                        `yaml:"default_scoring_strategy"`
	DefaultVerdictStrategy string                        `yaml:"default_verdict_strategy"`
	ConfirmationThreshold  int                           `yaml:"confirmation_threshold"`
	CalibrationProfile     string                        `yaml:"calibration_profile"`
	SourceWeights          map[string]float64            `yaml:"source_weights"`
	Reliability            map[string]float64            `yaml:"reliability"`
	Calibration            map[string]CalibrationProfile `yaml:"calibration_profiles"`
	Rules                  []FusionRule                  `yaml:"rules"`
	Aggregate              AggregateThresholds           `yaml:"aggregate_thresholds"`
	Decay                  ConfidenceDecay               `yaml:"confidence_decay"`
	MaxViolationRanges     int                           `yaml:"max_violation_time_ranges"`
}

// LoadFusionConfig reads the fusion settings. The path can be
// overridden with FUSION_CONFIG_PATH.
func LoadFusionConfig() (FusionConfig, error) {
	path := os.Getenv("FUSION_CONFIG_PATH")
	if path == "" {
		path = "configs/fusion.yaml"
	}

	var cfg FusionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading fusion config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing fusion config: %w", err)
	}

	ApplyFusionDefaults(&cfg)

	if err := validateFusionConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyFusionDefaults fills zero values with the shipped defaults. Also
// used by tests and by callers constructing a config in code.
func ApplyFusionDefaults(cfg *FusionConfig) {
	if cfg.DefaultScoringStrategy == "" {
		cfg.DefaultScoringStrategy = "weighted_sum"
	}
	if cfg.DefaultVerdictStrategy == "" {
		cfg.DefaultVerdictStrategy = "any_unsafe"
	}
	if cfg.ConfirmationThreshold == 0 {
		cfg.ConfirmationThreshold = 2
	}
	if cfg.CalibrationProfile == "" {
		cfg.CalibrationProfile = "balanced"
	}
	if cfg.Calibration == nil {
		cfg.Calibration = map[string]CalibrationProfile{
			"conservative": {Multiplier: 0.85, MinSources: 2},
			"balanced":     {Multiplier: 1.0, MinSources: 1},
			"aggressive":   {Multiplier: 1.15, MinSources: 1},
		}
	}
	if cfg.Aggregate.UnsafeAbove == 0 {
		cfg.Aggregate.UnsafeAbove = 0.7
	}
	if cfg.Aggregate.CautionAbove == 0 {
		cfg.Aggregate.CautionAbove = 0.4
	}
	if cfg.Decay.PerSkippedStage == 0 {
		cfg.Decay.PerSkippedStage = 0.05
	}
	if cfg.Decay.MaxReduction == 0 {
		cfg.Decay.MaxReduction = 0.3
	}
	if cfg.Decay.Floor == 0 {
		cfg.Decay.Floor = 0.05
	}
	if cfg.MaxViolationRanges == 0 {
		cfg.MaxViolationRanges = 20
	}
}

func validateFusionConfig(cfg FusionConfig) error {
	if cfg.ConfirmationThreshold < 1 {
		return &models.ValidationError{Field: "fusion.confirmation_threshold", Reason: "must be at least 1"}
	}
	if _, ok := cfg.Calibration[cfg.CalibrationProfile]; !ok {
		return &models.ValidationError{
			Field:  "fusion.calibration_profile",
			Reason: fmt.Sprintf("unknown profile %q", cfg.CalibrationProfile),
		}
	}
	for src, w := range cfg.SourceWeights {
		if w < 0 {
			return &models.ValidationError{
				Field:  fmt.Sprintf("fusion.source_weights[%s]", src),
				Reason: "must not be negative",
			}
		}
	}
	for src, rel := range cfg.Reliability {
		if rel < 0 || rel > 1 {
			return &models.ValidationError{
				Field:  fmt.Sprintf("fusion.reliability[%s]", src),
				Reason: "must lie in [0,1]",
			}
		}
	}
	for i, rule := range cfg.Rules {
		switch rule.Type {
		case RuleThreshold, RuleBoost, RuleMultiply, RuleAny:
		default:
			return &models.ValidationError{
				Field:  fmt.Sprintf("fusion.rules[%d].type", i),
				Reason: fmt.Sprintf("unknown rule type %q", rule.Type),
			}
		}
		if rule.Criterion == "" {
			return &models.ValidationError{
				Field:  fmt.Sprintf("fusion.rules[%d].criterion", i),
				Reason: "must not be empty",
			}
		}
	}
	if cfg.Decay.Floor <= 0 {
		return &models.ValidationError{Field: "fusion.confidence_decay.floor", Reason: "must be positive"}
	}
	return nil
}
