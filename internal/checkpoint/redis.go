package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/vmorozov/mediaguard/internal/models"
)

const (
	keyPrefix        = "mediaguard:ckpt:"
	stageFieldPrefix = "stage:"

	// Safety net in case a terminal Delete never lands.
	checkpointTTL = 24 * time.Hour
)

// Redis stores one checkpoint per run id as a Redis hash. Stage outputs
// live in separate hash fields so an upsert merges new stages instead
// of rewriting the whole checkpoint.
type Redis struct {
	client *redis.Client
	logger *zerolog.Logger

	// Serializes writes per run id; the store is the only cross-run
	// shared mutable resource.
	locks sync.Map
}

func NewRedis(client *redis.Client, logger *zerolog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) lockFor(runID string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(runID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (r *Redis) Upsert(ctx context.Context, runID, currentStage string, progress int, stageOutputs map[string]map[string]any) error {
	mu := r.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()

	fields := map[string]any{
		"current_stage": currentStage,
		"progress":      strconv.Itoa(progress),
		"updated_at":    time.Now().UTC().Format(time.RFC3339Nano),
	}
	for stageID, outputs := range stageOutputs {
		normalized, err := NormalizeOutputs(outputs)
		if err != nil {
			return fmt.Errorf("stage %q: %w", stageID, err)
		}
		raw, err := json.Marshal(normalized)
		if err != nil {
			return fmt.Errorf("stage %q: %w", stageID, err)
		}
		fields[stageFieldPrefix+stageID] = string(raw)
	}

	key := keyPrefix + runID
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		pipe := r.client.TxPipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, checkpointTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (r *Redis) Get(ctx context.Context, runID string) (*models.Checkpoint, error) {
	values, err := r.client.HGetAll(ctx, keyPrefix+runID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading checkpoint %s: %w", runID, err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	ckpt := &models.Checkpoint{
		RunID:        runID,
		CurrentStage: values["current_stage"],
		StageOutputs: make(map[string]map[string]any),
	}
	if p, err := strconv.Atoi(values["progress"]); err == nil {
		ckpt.Progress = p
	}
	if ts, err := time.Parse(time.RFC3339Nano, values["updated_at"]); err == nil {
		ckpt.UpdatedAt = ts
	}
	for field, raw := range values {
		if len(field) <= len(stageFieldPrefix) || field[:len(stageFieldPrefix)] != stageFieldPrefix {
			continue
		}
		stageID := field[len(stageFieldPrefix):]
		var outputs map[string]any
		if err := json.Unmarshal([]byte(raw), &outputs); err != nil {
			r.logger.Warn().Err(err).Str("run_id", runID).Str("stage", stageID).Msg("Dropping unreadable stage outputs from checkpoint")
			continue
		}
		ckpt.StageOutputs[stageID] = outputs
	}
	return ckpt, nil
}

func (r *Redis) Delete(ctx context.Context, runID string) error {
	mu := r.lockFor(runID)
	mu.Lock()
	defer mu.Unlock()
	defer r.locks.Delete(runID)

	if err := r.client.Del(ctx, keyPrefix+runID).Err(); err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", runID, err)
	}
	return nil
}
