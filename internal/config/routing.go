// Package config loads and validates the YAML configuration surfaces:
// the routing table, the criteria preset, and the fusion settings. All
// of them are data files, swappable without a rebuild.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vmorozov/mediaguard/internal/models"
	"github.com/vmorozov/mediaguard/internal/routing"
)

// LoadRoutingTable reads the routing configuration. The path can be
// overridden with ROUTING_CONFIG_PATH.
func LoadRoutingTable() (routing.Table, error) {
	path := os.Getenv("ROUTING_CONFIG_PATH")
	if path == "" {
		path = "configs/routing.yaml"
	}

	var table routing.Table
	data, err := os.ReadFile(path)
	if err != nil {
		return table, fmt.Errorf("reading routing config: %w", err)
	}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return table, fmt.Errorf("parsing routing config: %w", err)
	}

	applyRoutingDefaults(&table)

	if err := validateRoutingTable(table); err != nil {
		return table, err
	}
	return table, nil
}

func applyRoutingDefaults(t *routing.Table) {
	if t.MinKeywordLength == 0 {
		t.MinKeywordLength = 4
	}
	for name, route := range t.Stages {
		if route.Impact == "" {
			route.Impact = models.ImpactSupporting
			t.Stages[name] = route
		}
	}
}

func validateRoutingTable(t routing.Table) error {
	if len(t.Stages) == 0 {
		return &models.ValidationError{Field: "routing.stages", Reason: "must not be empty"}
	}
	for name, route := range t.Stages {
		switch route.Impact {
		case models.ImpactCritical, models.ImpactSupporting, models.ImpactAdvisory:
		default:
			return &models.ValidationError{
				Field:  fmt.Sprintf("routing.stages[%s].impact", name),
				Reason: fmt.Sprintf("unknown impact level %q", route.Impact),
			}
		}
	}
	for _, def := range t.DefaultStages {
		if _, ok := t.Stages[def]; !ok {
			return &models.ValidationError{
				Field:  "routing.default_stages",
				Reason: fmt.Sprintf("references unknown stage type %q", def),
			}
		}
	}
	for kw, caps := range t.Keywords {
		if len(caps) == 0 {
			return &models.ValidationError{
				Field:  fmt.Sprintf("routing.keywords[%s]", kw),
				Reason: "must map to at least one capability",
			}
		}
	}
	return nil
}
