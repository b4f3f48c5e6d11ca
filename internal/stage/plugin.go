// Package stage defines the pluggable unit of work executed by the
// pipeline runner, and the registry that maps stage type names to
// lazily constructed plugin instances.
package stage

import (
	"context"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/models"
)

// StagePlugin is one unit of detection work. Plugins are stateless with
// respect to runs: all run state flows through the snapshot and the
// returned patch.
type StagePlugin interface {
	Type() string
	DisplayName() string

	// SupportedMediaTypes limits applicability; an empty slice means all.
	SupportedMediaTypes() []models.MediaType

	// InputKeys are blackboard keys that must exist before the stage
	// runs. OptionalInputKeys are consumed when present but do not form
	// hard dependencies.
	InputKeys() []string
	OptionalInputKeys() []string
	OutputKeys() []string

	// Run executes against a consistent snapshot and returns a partial
	// state update. Errors are stage-local; the runner applies the
	// failure policy for the stage's impact level.
	Run(ctx context.Context, snapshot blackboard.Snapshot, spec models.StageSpec) (blackboard.Patch, error)
}

// StateValidator is optionally implemented by plugins that want to turn
// unmet preconditions into a skip instead of a failure. A non-empty
// return value is the human-readable skip reason.
type StateValidator interface {
	ValidateState(snapshot blackboard.Snapshot) string
}

// SupportsMedia reports whether the plugin applies to the given media
// type.
func SupportsMedia(p StagePlugin, mt models.MediaType) bool {
	supported := p.SupportedMediaTypes()
	if len(supported) == 0 {
		return true
	}
	for _, s := range supported {
		if s == mt {
			return true
		}
	}
	return false
}
