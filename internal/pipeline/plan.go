// Package pipeline executes a planned list of stages against a run's
// blackboard, sequentially or in parallel phases, with failure
// isolation by impact level.
package pipeline

import (
	"fmt"

	"github.com/vmorozov/mediaguard/internal/models"
	"github.com/vmorozov/mediaguard/internal/stage"
)

// PlannedStage pairs a stage spec with its resolved plugin instance.
type PlannedStage struct {
	Spec   models.StageSpec
	Plugin stage.StagePlugin
}

// Plan is a validated, ordered list of stages. Order is execution order
// in sequential mode and merge-precedence order within a phase in
// parallel mode.
type Plan struct {
	MediaType models.MediaType
	Stages    []PlannedStage
}

// BuildPlan resolves stage specs against the registry and validates the
// plan as a whole: unknown types fail fast, dependencies must resolve
// to stages in the plan, and dependency cycles are rejected. Implicit
// dependencies are derived from declared input/output keys. Stages not
// applicable to the media type are kept but disabled with a skip
// reason, so the run result still accounts for them.
func BuildPlan(specs []models.StageSpec, reg *stage.Registry, mediaType models.MediaType) (*Plan, error) {
	plan := &Plan{MediaType: mediaType}
	byID := make(map[string]int, len(specs))

	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[spec.ID]; dup {
			return nil, &models.ValidationError{
				Field:  fmt.Sprintf("stage[%s].id", spec.ID),
				Reason: "duplicate stage id in plan",
			}
		}
		plugin, err := reg.Get(spec.Type)
		if err != nil {
			return nil, err
		}
		if !stage.SupportsMedia(plugin, mediaType) {
			spec.Enabled = false
			spec.SkipReason = fmt.Sprintf("not applicable to media type %q", mediaType)
		}
		byID[spec.ID] = len(plan.Stages)
		plan.Stages = append(plan.Stages, PlannedStage{Spec: spec, Plugin: plugin})
	}

	producers := make(map[string]string) // output key -> stage id
	for _, ps := range plan.Stages {
		for _, key := range ps.Plugin.OutputKeys() {
			if _, ok := producers[key]; !ok {
				producers[key] = ps.Spec.ID
			}
		}
	}

	// Derive hard dependencies from required input keys.
	for i := range plan.Stages {
		ps := &plan.Stages[i]
		for _, key := range ps.Plugin.InputKeys() {
			producer, ok := producers[key]
			if !ok || producer == ps.Spec.ID {
				continue
			}
			if !containsStr(ps.Spec.DependsOn, producer) {
				ps.Spec.DependsOn = append(ps.Spec.DependsOn, producer)
			}
		}
	}

	for _, ps := range plan.Stages {
		for _, dep := range ps.Spec.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, &models.ValidationError{
					Field:  fmt.Sprintf("stage[%s].depends_on", ps.Spec.ID),
					Reason: fmt.Sprintf("references unknown stage %q", dep),
				}
			}
		}
	}

	if err := checkCycles(plan.Stages, byID); err != nil {
		return nil, err
	}
	if err := checkPhases(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// checkPhases validates the phase grouping: a dependency must land in
// an earlier phase than its dependent, and no two phase-mates may
// declare the same output key. Derived phases satisfy the ordering by
// construction; explicit phase tags can violate both.
func checkPhases(plan *Plan) error {
	phaseOf := make(map[string]int, len(plan.Stages))
	for idx, phase := range plan.Phases() {
		owners := make(map[string]string, len(phase))
		for _, ps := range phase {
			phaseOf[ps.Spec.ID] = idx
			for _, key := range ps.Plugin.OutputKeys() {
				if other, ok := owners[key]; ok {
					return &models.ValidationError{
						Field:  fmt.Sprintf("stage[%s].phase", ps.Spec.ID),
						Reason: fmt.Sprintf("output key %q also written by phase-mate %q", key, other),
					}
				}
				owners[key] = ps.Spec.ID
			}
		}
	}
	for _, ps := range plan.Stages {
		for _, dep := range ps.Spec.DependsOn {
			if phaseOf[dep] >= phaseOf[ps.Spec.ID] {
				return &models.ValidationError{
					Field:  fmt.Sprintf("stage[%s].phase", ps.Spec.ID),
					Reason: fmt.Sprintf("dependency %q must run in an earlier phase", dep),
				}
			}
		}
	}
	return nil
}

// Phases groups the plan into sequential phases of independent stages.
// Explicit phase tags win; otherwise a stage lands one phase after the
// deepest of its dependencies. Order within a phase is plan declaration
// order, which is also the merge-precedence order.
func (p *Plan) Phases() [][]PlannedStage {
	if len(p.Stages) == 0 {
		return nil
	}

	tagged := false
	for _, ps := range p.Stages {
		if ps.Spec.Phase != "" {
			tagged = true
			break
		}
	}
	if tagged {
		var order []string
		groups := make(map[string][]PlannedStage)
		for _, ps := range p.Stages {
			tag := ps.Spec.Phase
			if _, seen := groups[tag]; !seen {
				order = append(order, tag)
			}
			groups[tag] = append(groups[tag], ps)
		}
		phases := make([][]PlannedStage, 0, len(order))
		for _, tag := range order {
			phases = append(phases, groups[tag])
		}
		return phases
	}

	byID := make(map[string]int, len(p.Stages))
	for i, ps := range p.Stages {
		byID[ps.Spec.ID] = i
	}
	levels := make([]int, len(p.Stages))
	for i := range levels {
		levels[i] = -1
	}
	var levelOf func(i int) int
	levelOf = func(i int) int {
		if levels[i] >= 0 {
			return levels[i]
		}
		levels[i] = 0 // plan is cycle-free, validated at build time
		level := 0
		for _, dep := range p.Stages[i].Spec.DependsOn {
			if j, ok := byID[dep]; ok {
				if l := levelOf(j) + 1; l > level {
					level = l
				}
			}
		}
		levels[i] = level
		return level
	}
	for i := range p.Stages {
		levelOf(i)
	}
	maxLevel := 0
	for _, l := range levels {
		if l > maxLevel {
			maxLevel = l
		}
	}
	phases := make([][]PlannedStage, maxLevel+1)
	for i, ps := range p.Stages {
		phases[levels[i]] = append(phases[levels[i]], ps)
	}
	return phases
}

func checkCycles(stages []PlannedStage, byID map[string]int) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, len(stages))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visiting:
			return &models.ValidationError{
				Field:  fmt.Sprintf("stage[%s].depends_on", stages[i].Spec.ID),
				Reason: "dependency cycle detected",
			}
		case done:
			return nil
		}
		state[i] = visiting
		for _, dep := range stages[i].Spec.DependsOn {
			if j, ok := byID[dep]; ok {
				if err := visit(j); err != nil {
					return err
				}
			}
		}
		state[i] = done
		return nil
	}

	for i := range stages {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

func containsStr(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
