// Package checkpoint persists run progress so a long evaluation can
// survive a process restart. Persistence is best-effort: a failed write
// never aborts the run, it only forfeits resume for it.
package checkpoint

import (
	"context"
	"errors"

	"github.com/vmorozov/mediaguard/internal/models"
)

// ErrNotFound is returned by Get when no checkpoint exists for a run.
var ErrNotFound = errors.New("checkpoint not found")

// Store is the durable-store contract. Upsert merges the stage outputs
// patch into the stored checkpoint rather than overwriting it; writes
// for one run id are serialized by the implementation.
type Store interface {
	Upsert(ctx context.Context, runID, currentStage string, progress int, stageOutputs map[string]map[string]any) error
	Get(ctx context.Context, runID string) (*models.Checkpoint, error)
	Delete(ctx context.Context, runID string) error
}
