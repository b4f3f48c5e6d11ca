// Package fixture is a detector backend that replays findings recorded
// by an offline extraction pass. Each media item carries a sidecar
// findings file; the fixture detector for a stage type serves that
// stage's slice of it. Used by the batch CLI and in tests, where the
// decision layer matters and the ML detectors already ran elsewhere.
package fixture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/detector"
	"github.com/vmorozov/mediaguard/internal/models"
)

const sidecarSuffix = ".findings.json"

// fileUpdate mirrors detector.Update in the sidecar file.
type fileUpdate struct {
	Keys     map[string]any        `json:"keys,omitempty"`
	Evidence []models.EvidenceItem `json:"evidence,omitempty"`
}

type Detector struct {
	stageType string
}

func New(stageType string) *Detector {
	return &Detector{stageType: stageType}
}

func (d *Detector) ID() string { return "fixture-" + d.stageType }

func (d *Detector) Run(_ context.Context, snapshot blackboard.Snapshot, _ map[string]any) (detector.Update, error) {
	media, ok := snapshot.Get(blackboard.KeyMedia)
	if !ok {
		return detector.Update{}, fmt.Errorf("media descriptor missing from blackboard")
	}
	descriptor, ok := media.(map[string]any)
	if !ok {
		return detector.Update{}, fmt.Errorf("media descriptor has unexpected type %T", media)
	}
	path, _ := descriptor["path"].(string)
	if path == "" {
		return detector.Update{}, fmt.Errorf("media descriptor has no path")
	}

	raw, err := os.ReadFile(path + sidecarSuffix)
	if err != nil {
		return detector.Update{}, fmt.Errorf("reading findings sidecar: %w", err)
	}
	var findings map[string]fileUpdate
	if err := json.Unmarshal(raw, &findings); err != nil {
		return detector.Update{}, fmt.Errorf("parsing findings sidecar: %w", err)
	}

	entry, ok := findings[d.stageType]
	if !ok {
		return detector.Update{
			Warnings: []string{fmt.Sprintf("no recorded findings for stage %q", d.stageType)},
		}, nil
	}
	return detector.Update{Keys: entry.Keys, Evidence: entry.Evidence}, nil
}
