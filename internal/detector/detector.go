// Package detector defines the uniform invocation contract between the
// orchestration core and detector implementations. Detector internals
// are opaque; the core only sees the update they return.
package detector

import (
	"context"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/models"
)

// Update is the partial state produced by one detector invocation.
// Keys are merged into the blackboard; Evidence is attached under the
// invoking stage's evidence key; Warnings are logged but do not fail
// the stage.
type Update struct {
	Keys     map[string]any
	Evidence []models.EvidenceItem
	Warnings []string
}

// Detector is implemented by external detector backends. An error is
// stage-local: the runner decides, from the stage's impact level,
// whether it aborts the run or degrades it.
type Detector interface {
	ID() string
	Run(ctx context.Context, snapshot blackboard.Snapshot, config map[string]any) (Update, error)
}
