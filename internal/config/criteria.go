package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vmorozov/mediaguard/internal/models"
)

type criteriaPreset struct {
	Criteria []models.Criterion `yaml:"criteria"`
}

// LoadCriteriaPreset reads the built-in criteria preset used when a job
// does not supply its own criteria. The path can be overridden with
// CRITERIA_CONFIG_PATH.
func LoadCriteriaPreset() ([]models.Criterion, error) {
	path := os.Getenv("CRITERIA_CONFIG_PATH")
	if path == "" {
		path = "configs/criteria.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading criteria preset: %w", err)
	}
	var preset criteriaPreset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("parsing criteria preset: %w", err)
	}
	if len(preset.Criteria) == 0 {
		return nil, &models.ValidationError{Field: "criteria", Reason: "preset must define at least one criterion"}
	}

	seen := make(map[string]bool, len(preset.Criteria))
	for i := range preset.Criteria {
		c := &preset.Criteria[i]
		if c.SeverityWeight == 0 {
			c.SeverityWeight = 1.0
		}
		if c.Severity == "" {
			c.Severity = models.SeverityMedium
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if seen[c.ID] {
			return nil, &models.ValidationError{
				Field:  fmt.Sprintf("criteria[%s].id", c.ID),
				Reason: "duplicate criterion id",
			}
		}
		seen[c.ID] = true
	}
	return preset.Criteria, nil
}
