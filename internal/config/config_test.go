package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmorozov/mediaguard/internal/models"
)

func writeConfig(t *testing.T, env, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(env, path)
}

func TestLoadRoutingTable(t *testing.T) {
	writeConfig(t, "ROUTING_CONFIG_PATH", `
keywords:
  violence: [violence-video]
stages:
  frame_sampling:
    priority: 0
    always_include: true
    impact: critical
  violence_video:
    capabilities: [violence-video]
    priority: 30
default_stages: [frame_sampling]
`)

	table, err := LoadRoutingTable()
	if err != nil {
		t.Fatalf("LoadRoutingTable: %v", err)
	}
	if table.MinKeywordLength != 4 {
		t.Errorf("default min keyword length: got %d", table.MinKeywordLength)
	}
	if table.Stages["violence_video"].Impact != models.ImpactSupporting {
		t.Errorf("unset impact should default to supporting, got %q", table.Stages["violence_video"].Impact)
	}
	if !table.Stages["frame_sampling"].AlwaysInclude {
		t.Error("always_include not parsed")
	}
}

func TestLoadRoutingTableRejectsUnknownDefaultStage(t *testing.T) {
	writeConfig(t, "ROUTING_CONFIG_PATH", `
stages:
  frame_sampling:
    priority: 0
default_stages: [ghost_stage]
`)

	_, err := LoadRoutingTable()
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoadFusionConfigDefaults(t *testing.T) {
	writeConfig(t, "FUSION_CONFIG_PATH", `
source_weights:
  xclip: 0.6
`)

	cfg, err := LoadFusionConfig()
	if err != nil {
		t.Fatalf("LoadFusionConfig: %v", err)
	}
	if cfg.DefaultScoringStrategy != "weighted_sum" {
		t.Errorf("got %q", cfg.DefaultScoringStrategy)
	}
	if cfg.ConfirmationThreshold != 2 {
		t.Errorf("got %d", cfg.ConfirmationThreshold)
	}
	if cfg.Decay.PerSkippedStage != 0.05 || cfg.Decay.MaxReduction != 0.3 || cfg.Decay.Floor != 0.05 {
		t.Errorf("decay defaults not applied: %+v", cfg.Decay)
	}
	if _, ok := cfg.Calibration["balanced"]; !ok {
		t.Error("default calibration profiles not applied")
	}
}

func TestLoadFusionConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "negative source weight",
			yaml: "source_weights:\n  xclip: -0.5\n",
		},
		{
			name: "reliability out of range",
			yaml: "reliability:\n  xclip: 1.5\n",
		},
		{
			name: "unknown rule type",
			yaml: "rules:\n  - criterion: violence\n    type: divide\n",
		},
		{
			name: "rule without criterion",
			yaml: "rules:\n  - type: threshold\n    source: xclip\n",
		},
		{
			name: "unknown calibration profile",
			yaml: "calibration_profile: reckless\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, "FUSION_CONFIG_PATH", tt.yaml)
			_, err := LoadFusionConfig()
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestLoadCriteriaPreset(t *testing.T) {
	writeConfig(t, "CRITERIA_CONFIG_PATH", `
criteria:
  - id: violence
    label: Graphic violence
    thresholds:
      safe_below: 0.3
      caution_below: 0.7
      unsafe_above: 0.7
    enabled: true
`)

	criteria, err := LoadCriteriaPreset()
	if err != nil {
		t.Fatalf("LoadCriteriaPreset: %v", err)
	}
	if len(criteria) != 1 {
		t.Fatalf("got %d criteria", len(criteria))
	}
	if criteria[0].SeverityWeight != 1.0 {
		t.Errorf("severity weight should default to 1.0, got %v", criteria[0].SeverityWeight)
	}
	if criteria[0].Severity != models.SeverityMedium {
		t.Errorf("severity should default to medium, got %q", criteria[0].Severity)
	}
}

func TestLoadCriteriaPresetRejectsDuplicates(t *testing.T) {
	writeConfig(t, "CRITERIA_CONFIG_PATH", `
criteria:
  - id: violence
    label: One
    thresholds: {safe_below: 0.3, caution_below: 0.7, unsafe_above: 0.7}
    enabled: true
  - id: violence
    label: Two
    thresholds: {safe_below: 0.3, caution_below: 0.7, unsafe_above: 0.7}
    enabled: true
`)

	_, err := LoadCriteriaPreset()
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
