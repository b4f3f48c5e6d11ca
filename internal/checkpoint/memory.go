package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/vmorozov/mediaguard/internal/models"
)

// Memory is an in-process Store used in tests and single-process runs.
type Memory struct {
	mu          sync.Mutex
	checkpoints map[string]*models.Checkpoint
}

func NewMemory() *Memory {
	return &Memory{checkpoints: make(map[string]*models.Checkpoint)}
}

func (m *Memory) Upsert(ctx context.Context, runID, currentStage string, progress int, stageOutputs map[string]map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ckpt, ok := m.checkpoints[runID]
	if !ok {
		ckpt = &models.Checkpoint{
			RunID:        runID,
			StageOutputs: make(map[string]map[string]any),
		}
		m.checkpoints[runID] = ckpt
	}
	ckpt.CurrentStage = currentStage
	ckpt.Progress = progress
	for stageID, outputs := range stageOutputs {
		normalized, err := NormalizeOutputs(outputs)
		if err != nil {
			return err
		}
		ckpt.StageOutputs[stageID] = normalized
	}
	ckpt.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) Get(ctx context.Context, runID string) (*models.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ckpt, ok := m.checkpoints[runID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *ckpt
	copied.StageOutputs = make(map[string]map[string]any, len(ckpt.StageOutputs))
	for k, v := range ckpt.StageOutputs {
		inner := make(map[string]any, len(v))
		for ik, iv := range v {
			inner[ik] = iv
		}
		copied.StageOutputs[k] = inner
	}
	return &copied, nil
}

func (m *Memory) Delete(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, runID)
	return nil
}
