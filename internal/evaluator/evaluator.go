// Package evaluator wires routing, pipeline execution and fusion into
// one evaluation facade. Configuration errors surface synchronously
// before any stage runs; anything after that always yields a result.
package evaluator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/checkpoint"
	"github.com/vmorozov/mediaguard/internal/fusion"
	"github.com/vmorozov/mediaguard/internal/models"
	"github.com/vmorozov/mediaguard/internal/pipeline"
	"github.com/vmorozov/mediaguard/internal/routing"
	"github.com/vmorozov/mediaguard/internal/stage"
)

type Evaluator struct {
	registry *stage.Registry
	router   *routing.Engine
	runner   *pipeline.Runner
	fuser    *fusion.Engine
	ckpt     checkpoint.Store
	logger   *zerolog.Logger
}

func New(registry *stage.Registry, router *routing.Engine, runner *pipeline.Runner, fuser *fusion.Engine, ckpt checkpoint.Store, logger *zerolog.Logger) *Evaluator {
	return &Evaluator{
		registry: registry,
		router:   router,
		runner:   runner,
		fuser:    fuser,
		ckpt:     ckpt,
		logger:   logger,
	}
}

// Evaluate runs one job end to end under a fresh run id.
func (e *Evaluator) Evaluate(ctx context.Context, job models.EvaluationJob) (models.FusionResult, error) {
	return e.run(ctx, uuid.NewString(), job, nil)
}

// Resume continues an interrupted run from its checkpoint. Completed
// stage outputs are replayed onto the blackboard and their stages are
// not executed again; with identical outputs the final result is
// identical to an uninterrupted run. A missing checkpoint degrades to
// a fresh run under the same run id.
func (e *Evaluator) Resume(ctx context.Context, runID string, job models.EvaluationJob) (models.FusionResult, error) {
	ckpt, err := e.ckpt.Get(ctx, runID)
	if err != nil {
		if err == checkpoint.ErrNotFound {
			e.logger.Info().Str("run_id", runID).Msg("no checkpoint found, starting fresh run")
			return e.run(ctx, runID, job, nil)
		}
		return models.FusionResult{}, fmt.Errorf("loading checkpoint for run %s: %w", runID, err)
	}
	e.logger.Info().
		Str("run_id", runID).
		Str("current_stage", ckpt.CurrentStage).
		Int("completed_stages", len(ckpt.StageOutputs)).
		Msg("resuming run from checkpoint")
	return e.run(ctx, runID, job, ckpt)
}

func (e *Evaluator) run(ctx context.Context, runID string, job models.EvaluationJob, resume *models.Checkpoint) (models.FusionResult, error) {
	for _, c := range job.Criteria {
		if err := c.Validate(); err != nil {
			return models.FusionResult{}, err
		}
	}
	if err := e.fuser.ValidateOptions(job.Options); err != nil {
		return models.FusionResult{}, err
	}

	stageTypes := e.router.Route(job.EnabledCriteria(), e.registry)
	specs := make([]models.StageSpec, 0, len(stageTypes))
	for _, t := range stageTypes {
		specs = append(specs, models.StageSpec{
			Type:    t,
			ID:      t,
			Enabled: true,
			Impact:  e.router.ImpactFor(t),
		})
	}

	plan, err := pipeline.BuildPlan(specs, e.registry, job.MediaType)
	if err != nil {
		return models.FusionResult{}, err
	}

	bb := blackboard.New(runID)
	bb.Apply(blackboard.Patch{
		blackboard.KeyMedia: map[string]any{
			"id":   job.MediaID,
			"path": job.MediaPath,
			"type": string(job.MediaType),
		},
	})

	completed := make(map[string]bool)
	if resume != nil {
		for stageID, outputs := range resume.StageOutputs {
			bb.Apply(rehydrate(outputs))
			completed[stageID] = true
		}
	}

	e.logger.Info().
		Str("run_id", runID).
		Str("media_id", job.MediaID).
		Strs("stages", stageTypes).
		Bool("parallel", job.Options.Parallel).
		Msg("starting evaluation run")

	runResult := e.runner.Run(ctx, plan, bb, pipeline.Options{
		Parallel:        job.Options.Parallel,
		CompletedStages: completed,
	})

	result, err := e.fuser.Fuse(fusion.Input{
		Criteria:      job.Criteria,
		Evidence:      bb.Evidence(),
		SkippedStages: runResult.SkippedStages,
		Options:       job.Options,
	})
	if err != nil {
		return models.FusionResult{}, err
	}

	switch runResult.Status {
	case models.RunCompleted:
		if err := e.ckpt.Delete(ctx, runID); err != nil {
			e.logger.Warn().Err(err).Str("run_id", runID).Msg("failed to delete checkpoint after completion")
		}
	default:
		// A run that started never returns "no result": the partial
		// evidence is kept but the verdict is an explicit hand-off to a
		// human.
		result.Verdict = models.VerdictNeedsReview
		result.Error = runResult.Error
	}
	return result, nil
}
