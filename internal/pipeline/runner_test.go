package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/checkpoint"
	"github.com/vmorozov/mediaguard/internal/models"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// recordingNotifier captures progress updates for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	percents []int
}

func (n *recordingNotifier) Notify(stage, message string, percent int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.percents = append(n.percents, percent)
}

func writerPlugin(name, key, value string) *fakePlugin {
	return &fakePlugin{
		name:    name,
		outputs: []string{key},
		run: func(context.Context, blackboard.Snapshot, models.StageSpec) (blackboard.Patch, error) {
			return blackboard.Patch{key: value}, nil
		},
	}
}

func failingPlugin(name string) *fakePlugin {
	return &fakePlugin{
		name: name,
		run: func(context.Context, blackboard.Snapshot, models.StageSpec) (blackboard.Patch, error) {
			return nil, errors.New("backend down")
		},
	}
}

func runWith(t *testing.T, specs []models.StageSpec, plugins []*fakePlugin, opts Options) (*models.PipelineRunResult, *blackboard.Blackboard, *recordingNotifier) {
	t.Helper()
	reg := fakeRegistry(t, plugins...)
	plan, err := BuildPlan(specs, reg, models.MediaTypeVideo)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}
	notifier := &recordingNotifier{}
	runner := NewRunner(notifier, checkpoint.NewMemory(), newTestLogger())
	bb := blackboard.New("run-test")
	result := runner.Run(context.Background(), plan, bb, opts)
	return result, bb, notifier
}

func TestRunSequentialCompletes(t *testing.T) {
	result, bb, _ := runWith(t,
		[]models.StageSpec{
			spec("a", models.ImpactCritical),
			spec("b", models.ImpactSupporting),
		},
		[]*fakePlugin{
			writerPlugin("a", "k1", "v1"),
			writerPlugin("b", "k2", "v2"),
		},
		Options{},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Status, result.Error)
	}
	if v, _ := bb.GetString("k1"); v != "v1" {
		t.Errorf("missing output of stage a")
	}
	if v, _ := bb.GetString("k2"); v != "v2" {
		t.Errorf("missing output of stage b")
	}
	for _, run := range result.StageRuns {
		if run.Status != models.StageCompleted {
			t.Errorf("stage %s: got %s, want completed", run.StageID, run.Status)
		}
	}
	if len(result.SkippedStages) != 0 {
		t.Errorf("unexpected skipped stages %v", result.SkippedStages)
	}
}

func TestRunCriticalFailureAborts(t *testing.T) {
	ran := false
	after := &fakePlugin{
		name: "after",
		run: func(context.Context, blackboard.Snapshot, models.StageSpec) (blackboard.Patch, error) {
			ran = true
			return blackboard.Patch{}, nil
		},
	}

	result, _, _ := runWith(t,
		[]models.StageSpec{
			spec("broken", models.ImpactCritical),
			spec("after", models.ImpactSupporting),
		},
		[]*fakePlugin{failingPlugin("broken"), after},
		Options{},
	)

	if result.Status != models.RunFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.Error == "" {
		t.Error("failed run must carry an error")
	}
	if ran {
		t.Error("stages after a critical failure must not execute")
	}
	if result.StageRuns[1].Status != models.StagePending {
		t.Errorf("unreached stage should stay pending, got %s", result.StageRuns[1].Status)
	}
}

func TestRunSupportingFailureDegrades(t *testing.T) {
	result, bb, _ := runWith(t,
		[]models.StageSpec{
			spec("flaky", models.ImpactSupporting),
			spec("b", models.ImpactSupporting),
		},
		[]*fakePlugin{failingPlugin("flaky"), writerPlugin("b", "k2", "v2")},
		Options{},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("supporting failure must not fail the run, got %s", result.Status)
	}
	if !bb.Has("k2") {
		t.Error("later stages must still run")
	}
	if len(result.SkippedStages) != 1 || result.SkippedStages[0] != "flaky" {
		t.Errorf("failed supporting stage must be reported skipped, got %v", result.SkippedStages)
	}
	if result.StageRuns[0].Status != models.StageFailed {
		t.Errorf("got %s, want failed", result.StageRuns[0].Status)
	}
}

func TestRunSkipPropagation(t *testing.T) {
	downstream := writerPlugin("downstream", "k", "v")

	result, bb, _ := runWith(t,
		[]models.StageSpec{
			spec("flaky", models.ImpactSupporting),
			spec("downstream", models.ImpactSupporting, "flaky"),
		},
		[]*fakePlugin{failingPlugin("flaky"), downstream},
		Options{},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("got %s, want completed", result.Status)
	}
	run := result.StageRuns[1]
	if run.Status != models.StageSkipped {
		t.Fatalf("dependent stage must be skipped, got %s", run.Status)
	}
	if !strings.Contains(run.SkipReason, "flaky") {
		t.Errorf("skip reason must name the failed dependency, got %q", run.SkipReason)
	}
	if bb.Has("k") {
		t.Error("skipped stage must not produce output")
	}
}

func TestRunAdvisorySkipNotCounted(t *testing.T) {
	advisory := &fakePlugin{
		name:     "advisory",
		validate: func(blackboard.Snapshot) string { return "nothing to analyze" },
	}

	result, _, _ := runWith(t,
		[]models.StageSpec{spec("advisory", models.ImpactAdvisory)},
		[]*fakePlugin{advisory},
		Options{},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("got %s, want completed", result.Status)
	}
	if result.StageRuns[0].Status != models.StageSkipped {
		t.Errorf("got %s, want skipped", result.StageRuns[0].Status)
	}
	// Advisory stages never decay confidence downstream.
	if len(result.SkippedStages) != 0 {
		t.Errorf("advisory skip must not be reported, got %v", result.SkippedStages)
	}
}

func TestRunAdvisoryFailureNotCounted(t *testing.T) {
	result, bb, _ := runWith(t,
		[]models.StageSpec{
			spec("advisory", models.ImpactAdvisory),
			spec("b", models.ImpactSupporting),
		},
		[]*fakePlugin{failingPlugin("advisory"), writerPlugin("b", "k2", "v2")},
		Options{},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("got %s, want completed", result.Status)
	}
	if result.StageRuns[0].Status != models.StageFailed {
		t.Errorf("got %s, want failed", result.StageRuns[0].Status)
	}
	if !bb.Has("k2") {
		t.Error("later stages must still run")
	}
	// Same rule as an advisory skip: no confidence decay downstream.
	if len(result.SkippedStages) != 0 {
		t.Errorf("failed advisory stage must not be reported, got %v", result.SkippedStages)
	}
}

func TestRunParallelPhaseIsolation(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)

	observer := func(name, key, value string) *fakePlugin {
		return &fakePlugin{
			name:    name,
			inputs:  []string{"frames"},
			outputs: []string{key},
			run: func(_ context.Context, snapshot blackboard.Snapshot, _ models.StageSpec) (blackboard.Patch, error) {
				mu.Lock()
				seen[name+":frames"] = snapshot.Has("frames")
				seen[name+":shared"] = snapshot.Has("shared")
				mu.Unlock()
				return blackboard.Patch{key: value, "shared": name}, nil
			},
		}
	}

	result, bb, _ := runWith(t,
		[]models.StageSpec{
			spec("sampler", models.ImpactCritical),
			spec("left", models.ImpactSupporting),
			spec("right", models.ImpactSupporting),
		},
		[]*fakePlugin{
			writerPlugin("sampler", "frames", "f"),
			observer("left", "lk", "lv"),
			observer("right", "rk", "rv"),
		},
		Options{Parallel: true},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("got %s, want completed", result.Status)
	}
	// Both phase-mates saw the prior phase's output and neither saw the
	// other's write.
	for _, name := range []string{"left", "right"} {
		if !seen[name+":frames"] {
			t.Errorf("%s did not see the previous phase output", name)
		}
		if seen[name+":shared"] {
			t.Errorf("%s observed a phase-mate's write", name)
		}
	}
	// Declaration order decides the colliding key.
	if v, _ := bb.GetString("shared"); v != "right" {
		t.Errorf("expected later-declared stage to win the merge, got %q", v)
	}
	if !bb.Has("lk") || !bb.Has("rk") {
		t.Error("both phase-mates' outputs must be merged")
	}
}

func TestRunCancellationDiscardsInFlightStage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cancelling := &fakePlugin{
		name:    "cancelling",
		outputs: []string{"partial"},
		run: func(context.Context, blackboard.Snapshot, models.StageSpec) (blackboard.Patch, error) {
			cancel()
			return blackboard.Patch{"partial": true}, nil
		},
	}
	after := writerPlugin("after", "k", "v")

	reg := fakeRegistry(t, cancelling, after)
	plan, err := BuildPlan([]models.StageSpec{
		spec("cancelling", models.ImpactSupporting),
		spec("after", models.ImpactSupporting),
	}, reg, models.MediaTypeVideo)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	runner := NewRunner(nil, nil, newTestLogger())
	bb := blackboard.New("run-cancel")
	result := runner.Run(ctx, plan, bb, Options{})

	if result.Status != models.RunCancelled {
		t.Fatalf("got %s, want cancelled", result.Status)
	}
	if bb.Has("partial") {
		t.Error("output of the in-flight stage must be discarded on cancellation")
	}
	if bb.Has("k") {
		t.Error("no stage may start after cancellation")
	}
}

func TestRunResumeSkipsCompletedStages(t *testing.T) {
	ran := false
	first := &fakePlugin{
		name: "first",
		run: func(context.Context, blackboard.Snapshot, models.StageSpec) (blackboard.Patch, error) {
			ran = true
			return blackboard.Patch{}, nil
		},
	}

	result, bb, _ := runWith(t,
		[]models.StageSpec{
			spec("first", models.ImpactCritical),
			spec("second", models.ImpactSupporting),
		},
		[]*fakePlugin{first, writerPlugin("second", "k2", "v2")},
		Options{CompletedStages: map[string]bool{"first": true}},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("got %s, want completed", result.Status)
	}
	if ran {
		t.Error("a stage replayed from checkpoint must not execute again")
	}
	if !bb.Has("k2") {
		t.Error("remaining stages must execute")
	}
}

func TestRunProgressMonotonic(t *testing.T) {
	_, _, notifier := runWith(t,
		[]models.StageSpec{
			spec("a", models.ImpactSupporting),
			spec("b", models.ImpactSupporting),
			spec("c", models.ImpactSupporting),
		},
		[]*fakePlugin{
			writerPlugin("a", "k1", "v"),
			writerPlugin("b", "k2", "v"),
			writerPlugin("c", "k3", "v"),
		},
		Options{},
	)

	last := -1
	for _, p := range notifier.percents {
		if p < last {
			t.Fatalf("progress went backwards: %v", notifier.percents)
		}
		last = p
	}
	if last != 100 {
		t.Errorf("final progress should be 100, got %d", last)
	}
}

func TestRunPersistsCheckpoints(t *testing.T) {
	store := checkpoint.NewMemory()
	reg := fakeRegistry(t,
		writerPlugin("a", "k1", "v1"),
		writerPlugin("b", "k2", "v2"),
	)
	plan, err := BuildPlan([]models.StageSpec{
		spec("a", models.ImpactSupporting),
		spec("b", models.ImpactSupporting),
	}, reg, models.MediaTypeVideo)
	if err != nil {
		t.Fatalf("BuildPlan: %v", err)
	}

	runner := NewRunner(nil, store, newTestLogger())
	bb := blackboard.New("run-ckpt")
	result := runner.Run(context.Background(), plan, bb, Options{})
	if result.Status != models.RunCompleted {
		t.Fatalf("got %s, want completed", result.Status)
	}

	ckpt, err := store.Get(context.Background(), "run-ckpt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ckpt.Progress != 100 {
		t.Errorf("got progress %d, want 100", ckpt.Progress)
	}
	if ckpt.CurrentStage != "b" {
		t.Errorf("got current stage %q, want b", ckpt.CurrentStage)
	}
	if ckpt.StageOutputs["a"]["k1"] != "v1" {
		t.Errorf("stage a outputs not persisted: %v", ckpt.StageOutputs)
	}
}

func TestRunStagePanicIsContained(t *testing.T) {
	panicky := &fakePlugin{
		name: "panicky",
		run: func(context.Context, blackboard.Snapshot, models.StageSpec) (blackboard.Patch, error) {
			panic("detector bug")
		},
	}

	result, bb, _ := runWith(t,
		[]models.StageSpec{
			spec("panicky", models.ImpactSupporting),
			spec("b", models.ImpactSupporting),
		},
		[]*fakePlugin{panicky, writerPlugin("b", "k2", "v2")},
		Options{},
	)

	if result.Status != models.RunCompleted {
		t.Fatalf("got %s, want completed", result.Status)
	}
	if result.StageRuns[0].Status != models.StageFailed {
		t.Errorf("panicking stage must be recorded failed, got %s", result.StageRuns[0].Status)
	}
	if !bb.Has("k2") {
		t.Error("run must continue after a contained panic")
	}
}
