package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/checkpoint"
	"github.com/vmorozov/mediaguard/internal/models"
	"github.com/vmorozov/mediaguard/internal/progress"
	"github.com/vmorozov/mediaguard/internal/stage"
)

// Runner executes a plan against a blackboard. It never retries a stage
// and never lets a stage error escape: critical failures stop the run,
// supporting and advisory failures degrade it.
type Runner struct {
	notifier progress.Notifier
	ckpt     checkpoint.Store
	logger   *zerolog.Logger
}

// Options tunes one run. CompletedStages marks stages whose outputs
// already replayed onto the blackboard during a resume; the runner
// counts them as completed without executing them.
type Options struct {
	Parallel        bool
	CompletedStages map[string]bool
}

// NewRunner builds a runner. The checkpoint store may be nil, in which
// case the run is not resumable.
func NewRunner(notifier progress.Notifier, ckpt checkpoint.Store, logger *zerolog.Logger) *Runner {
	if notifier == nil {
		notifier = progress.Nop{}
	}
	return &Runner{notifier: notifier, ckpt: ckpt, logger: logger}
}

// runState tracks per-run bookkeeping on the runner goroutine. Parallel
// phases report back through stageOutcome values, never by touching
// runState directly.
type runState struct {
	bb        *blackboard.Blackboard
	runs      map[string]*models.StageRun
	order     []string
	completed int
	total     int
	skipped   []string
}

type stageOutcome struct {
	spec     models.StageSpec
	display  string
	patch    blackboard.Patch
	err      error
	duration time.Duration
	skipped  bool
	reason   string
}

// Run executes the plan. It always returns a result; the result status
// is failed only when a critical stage failed, and cancelled when the
// context was cancelled at a stage boundary.
func (r *Runner) Run(ctx context.Context, plan *Plan, bb *blackboard.Blackboard, opts Options) *models.PipelineRunResult {
	start := time.Now()
	st := &runState{
		bb:    bb,
		runs:  make(map[string]*models.StageRun, len(plan.Stages)),
		total: len(plan.Stages),
	}
	for _, ps := range plan.Stages {
		st.runs[ps.Spec.ID] = &models.StageRun{StageID: ps.Spec.ID, Status: models.StagePending}
		st.order = append(st.order, ps.Spec.ID)
	}

	result := &models.PipelineRunResult{
		RunID:  bb.RunID(),
		Status: models.RunCompleted,
	}

	if opts.Parallel {
		r.runPhased(ctx, plan, st, opts, result)
	} else {
		r.runSequential(ctx, plan, st, opts, result)
	}

	for _, id := range st.order {
		result.StageRuns = append(result.StageRuns, *st.runs[id])
	}
	result.SkippedStages = st.skipped
	result.Duration = time.Since(start)

	r.logger.Info().
		Str("run_id", bb.RunID()).
		Str("status", string(result.Status)).
		Int("stages", st.total).
		Int("skipped", len(st.skipped)).
		Dur("duration", result.Duration).
		Msg("pipeline run finished")
	return result
}

func (r *Runner) runSequential(ctx context.Context, plan *Plan, st *runState, opts Options, result *models.PipelineRunResult) {
	for _, ps := range plan.Stages {
		if ctx.Err() != nil {
			r.markCancelled(st, result)
			return
		}
		outcome := r.executeStage(ctx, ps, st.bb.Snapshot(), st, opts)
		if ctx.Err() != nil {
			// The in-flight stage was allowed to finish; its output is
			// discarded once cancellation is observed.
			r.markCancelled(st, result)
			return
		}
		if stop := r.absorb(ctx, outcome, st, result); stop {
			return
		}
	}
}

func (r *Runner) runPhased(ctx context.Context, plan *Plan, st *runState, opts Options, result *models.PipelineRunResult) {
	for _, phase := range plan.Phases() {
		if ctx.Err() != nil {
			r.markCancelled(st, result)
			return
		}

		// Every stage in the phase reads the same pre-phase snapshot, so
		// no stage observes a phase-mate's output.
		snapshot := st.bb.Snapshot()
		outcomes := make([]stageOutcome, len(phase))
		g, gctx := errgroup.WithContext(ctx)
		for i, ps := range phase {
			g.Go(func() error {
				outcomes[i] = r.executeStage(gctx, ps, snapshot, st, opts)
				return nil
			})
		}
		g.Wait() // join barrier; workers store outcomes, never error

		if ctx.Err() != nil {
			r.markCancelled(st, result)
			return
		}

		// Merge in declaration order: deterministic precedence for any
		// key written by more than one phase-mate.
		stop := false
		for _, outcome := range outcomes {
			if r.absorb(ctx, outcome, st, result) {
				stop = true
			}
		}
		if stop {
			return
		}
	}
}

// executeStage runs one stage against a snapshot and reports the
// outcome. It does not touch the blackboard or the run state maps, so
// phase-mates may call it concurrently.
func (r *Runner) executeStage(ctx context.Context, ps PlannedStage, snapshot blackboard.Snapshot, st *runState, opts Options) (outcome stageOutcome) {
	spec := ps.Spec
	outcome.spec = spec
	outcome.display = ps.Plugin.DisplayName()

	if opts.CompletedStages[spec.ID] {
		return outcome // replayed from checkpoint
	}
	if !spec.Enabled {
		outcome.skipped = true
		outcome.reason = spec.SkipReason
		if outcome.reason == "" {
			outcome.reason = "disabled in pipeline spec"
		}
		return outcome
	}
	if reason := r.dependencyBlock(spec, st, opts); reason != "" {
		outcome.skipped = true
		outcome.reason = reason
		return outcome
	}
	if validator, ok := ps.Plugin.(stage.StateValidator); ok {
		if reason := validator.ValidateState(snapshot); reason != "" {
			outcome.skipped = true
			outcome.reason = reason
			return outcome
		}
	}

	r.notifier.Notify(ps.Plugin.DisplayName(), "stage started", st.percent())
	r.setStatus(st, spec.ID, models.StageRunning)

	defer func() {
		if rec := recover(); rec != nil {
			outcome.err = fmt.Errorf("stage panicked: %v", rec)
		}
	}()

	start := time.Now()
	patch, err := ps.Plugin.Run(ctx, snapshot, spec)
	outcome.duration = time.Since(start)
	outcome.patch = patch
	outcome.err = err
	return outcome
}

// absorb merges a stage outcome into the run state on the runner
// goroutine. It returns true when the run must stop.
func (r *Runner) absorb(ctx context.Context, outcome stageOutcome, st *runState, result *models.PipelineRunResult) bool {
	spec := outcome.spec
	run := st.runs[spec.ID]
	name := outcome.display
	if name == "" {
		name = spec.ID
	}

	switch {
	case outcome.err != nil:
		run.Status = models.StageFailed
		run.Error = outcome.err.Error()
		run.Duration = outcome.duration
		run.SkipReason = fmt.Sprintf("stage failed: %v", outcome.err)
		st.completed++

		if spec.Impact == models.ImpactCritical {
			r.logger.Error().Err(outcome.err).Str("stage", spec.ID).Msg("critical stage failed, aborting run")
			result.Status = models.RunFailed
			result.Error = fmt.Sprintf("critical stage %s failed: %v", spec.ID, outcome.err)
			r.notifier.Notify(name, "run aborted", st.percent())
			r.persist(ctx, st, spec.ID, nil)
			return true
		}
		r.logger.Warn().Err(outcome.err).Str("stage", spec.ID).Str("impact", string(spec.Impact)).Msg("stage failed, continuing")
		if spec.Impact != models.ImpactAdvisory {
			st.skipped = append(st.skipped, spec.ID)
		}
		r.notifier.Notify(name, "stage failed", st.percent())

	case outcome.skipped:
		run.Status = models.StageSkipped
		run.SkipReason = outcome.reason
		st.completed++
		if spec.Impact != models.ImpactAdvisory {
			st.skipped = append(st.skipped, spec.ID)
		}
		r.logger.Info().Str("stage", spec.ID).Str("reason", outcome.reason).Msg("stage skipped")
		r.notifier.Notify(name, "stage skipped: "+outcome.reason, st.percent())

	default:
		st.bb.Apply(outcome.patch)
		run.Status = models.StageCompleted
		run.Duration = outcome.duration
		st.completed++
		r.notifier.Notify(name, "stage completed", st.percent())
		r.persist(ctx, st, spec.ID, outcome.patch)
	}
	return false
}

// dependencyBlock reports why a stage may not run yet: a hard dependency
// that failed or was skipped propagates a skip, never an execution.
func (r *Runner) dependencyBlock(spec models.StageSpec, st *runState, opts Options) string {
	for _, dep := range spec.DependsOn {
		if opts.CompletedStages[dep] {
			continue
		}
		depRun, ok := st.runs[dep]
		if !ok {
			return fmt.Sprintf("dependency %q not in plan", dep)
		}
		switch depRun.Status {
		case models.StageCompleted:
		case models.StageFailed:
			return fmt.Sprintf("dependency %q failed", dep)
		case models.StageSkipped:
			return fmt.Sprintf("dependency %q skipped: %s", dep, depRun.SkipReason)
		default:
			return fmt.Sprintf("dependency %q has not finished", dep)
		}
	}
	return ""
}

func (r *Runner) markCancelled(st *runState, result *models.PipelineRunResult) {
	result.Status = models.RunCancelled
	result.Error = "run cancelled"
	r.logger.Info().Str("run_id", st.bb.RunID()).Msg("run cancelled at stage boundary")
}

// persist checkpoints the run after a stage boundary. Best-effort: a
// store failure is logged and the run continues in memory.
func (r *Runner) persist(ctx context.Context, st *runState, stageID string, patch blackboard.Patch) {
	if r.ckpt == nil {
		return
	}
	var outputs map[string]map[string]any
	if len(patch) > 0 {
		outputs = map[string]map[string]any{stageID: patch}
	}
	if err := r.ckpt.Upsert(ctx, st.bb.RunID(), stageID, st.percent(), outputs); err != nil {
		r.logger.Warn().Err(err).Str("run_id", st.bb.RunID()).Str("stage", stageID).Msg("checkpoint write failed, continuing in memory")
	}
}

func (r *Runner) setStatus(st *runState, stageID string, status models.StageStatus) {
	// Status writes for phase-concurrent stages happen through outcomes;
	// running is cosmetic and safe to set optimistically.
	st.runs[stageID].Status = status
}

func (st *runState) percent() int {
	if st.total == 0 {
		return 100
	}
	return st.completed * 100 / st.total
}
