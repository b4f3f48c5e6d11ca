package fusion

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/config"
	"github.com/vmorozov/mediaguard/internal/models"
)

const confirmationConfidenceScale = 0.8

// Engine fuses completed stage evidence into the final result. The
// strategy set is built once from configuration and injected, never
// looked up through globals.
type Engine struct {
	cfg        config.FusionConfig
	strategies *StrategySet
	logger     *zerolog.Logger
}

// Input is everything Fuse reads: the run's criteria, the collected
// evidence and the supporting stages that did not complete.
type Input struct {
	Criteria      []models.Criterion
	Evidence      []models.EvidenceItem
	SkippedStages []string
	Options       models.JobOptions
}

func NewEngine(cfg config.FusionConfig, logger *zerolog.Logger) *Engine {
	weighted := &WeightedSum{Weights: cfg.SourceWeights}

	set := NewStrategySet()
	set.RegisterScoring(weighted)
	set.RegisterScoring(Max{})
	set.RegisterScoring(Average{})
	set.RegisterScoring(&RuleBased{Rules: cfg.Rules, Fallback: weighted})
	set.RegisterScoring(&ReliabilityWeighted{
		Reliability: cfg.Reliability,
		Weights:     cfg.SourceWeights,
		Profile:     cfg.Calibration[cfg.CalibrationProfile],
	})

	set.RegisterVerdict(AnyUnsafe{})
	set.RegisterVerdict(Majority{})
	set.RegisterVerdict(WeightedAverageVerdict{Thresholds: cfg.Aggregate})
	set.RegisterVerdict(CriticalOnly{})

	return &Engine{cfg: cfg, strategies: set, logger: logger}
}

// ValidateOptions fails fast on unknown strategy names, before any
// stage executes.
func (e *Engine) ValidateOptions(opts models.JobOptions) error {
	if _, err := e.strategies.Scoring(e.scoringName(opts)); err != nil {
		return err
	}
	if _, err := e.strategies.Verdict(e.verdictName(opts)); err != nil {
		return err
	}
	return nil
}

// Fuse runs the two-phase decision: per-criterion scoring, then final
// aggregation with multi-signal confirmation and confidence decay.
func (e *Engine) Fuse(in Input) (models.FusionResult, error) {
	enabled := enabledCriteria(in.Criteria)
	if len(enabled) == 0 {
		return models.FusionResult{
			Verdict:    models.VerdictSafe,
			Confidence: 1.0,
			Criteria:   map[string]models.CriterionScore{},
			Violations: []models.Violation{},
			Explanation: models.Explanation{
				Summary: "no enabled criteria; nothing to evaluate",
			},
		}, nil
	}

	scoring, err := e.strategies.Scoring(e.scoringName(in.Options))
	if err != nil {
		return models.FusionResult{}, err
	}
	verdictStrategy, err := e.strategies.Verdict(e.verdictName(in.Options))
	if err != nil {
		return models.FusionResult{}, err
	}

	scores := make(map[string]models.CriterionScore, len(enabled))
	perSources := make(map[string]SourceScores, len(enabled))
	for _, c := range enabled {
		sources := extractSources(c, in.Evidence)
		score := scoring.Score(c, sources)
		scores[c.ID] = models.CriterionScore{
			Score:    score,
			Verdict:  c.VerdictFor(score),
			Label:    c.Label,
			Severity: c.Severity,
		}
		perSources[c.ID] = sources
	}

	verdict, confidence := verdictStrategy.Aggregate(enabled, scores)

	// Multi-signal confirmation: an UNSAFE verdict backed by too few
	// independent sources becomes NEEDS_REVIEW instead.
	contributing := e.contributingSources(enabled, scores, perSources)
	threshold := in.Options.ConfirmationThreshold
	if threshold == 0 {
		threshold = e.cfg.ConfirmationThreshold
	}
	if verdict == models.VerdictUnsafe && contributing < threshold {
		e.logger.Info().
			Int("sources", contributing).
			Int("required", threshold).
			Msg("unsafe verdict not confirmed, downgrading to needs_review")
		verdict = models.VerdictNeedsReview
		confidence *= confirmationConfidenceScale
	}

	confidence = e.decayConfidence(confidence, len(in.SkippedStages))

	violations := e.collectViolations(enabled, scores, in.Evidence)
	result := models.FusionResult{
		Verdict:     verdict,
		Confidence:  confidence,
		Criteria:    scores,
		Violations:  violations,
		Explanation: e.explain(enabled, scores, perSources, verdict, contributing, in.SkippedStages),
	}

	e.logger.Info().
		Str("verdict", string(verdict)).
		Float64("confidence", confidence).
		Int("violations", len(violations)).
		Str("scoring", scoring.Name()).
		Str("aggregation", verdictStrategy.Name()).
		Msg("fusion complete")
	return result, nil
}

func (e *Engine) scoringName(opts models.JobOptions) string {
	if opts.ScoringStrategy != "" {
		return opts.ScoringStrategy
	}
	return e.cfg.DefaultScoringStrategy
}

func (e *Engine) verdictName(opts models.JobOptions) string {
	if opts.VerdictStrategy != "" {
		return opts.VerdictStrategy
	}
	return e.cfg.DefaultVerdictStrategy
}

// contributingSources counts distinct detector sources with positive
// scores across all flagged criteria.
func (e *Engine) contributingSources(criteria []models.Criterion, scores map[string]models.CriterionScore, perSources map[string]SourceScores) int {
	distinct := make(map[string]bool)
	for _, c := range criteria {
		cs := scores[c.ID]
		if cs.Verdict == models.VerdictSafe {
			continue
		}
		for src, score := range perSources[c.ID] {
			if score > 0 {
				distinct[src] = true
			}
		}
	}
	return len(distinct)
}

// decayConfidence reduces confidence for every skipped supporting
// stage, bounded so the result stays in (0, 1].
func (e *Engine) decayConfidence(confidence float64, skipped int) float64 {
	reduction := e.cfg.Decay.PerSkippedStage * float64(skipped)
	if reduction > e.cfg.Decay.MaxReduction {
		reduction = e.cfg.Decay.MaxReduction
	}
	confidence -= reduction
	if confidence < e.cfg.Decay.Floor {
		confidence = e.cfg.Decay.Floor
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

func (e *Engine) collectViolations(criteria []models.Criterion, scores map[string]models.CriterionScore, evidence []models.EvidenceItem) []models.Violation {
	violations := []models.Violation{}
	for _, c := range criteria {
		cs := scores[c.ID]
		if cs.Verdict == models.VerdictSafe {
			continue
		}
		violations = append(violations, models.Violation{
			Criterion:  c.ID,
			Label:      c.Label,
			Severity:   c.Severity,
			Score:      cs.Score,
			TimeRanges: relevantRanges(c, evidence, e.cfg.MaxViolationRanges),
		})
	}
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Score != violations[j].Score {
			return violations[i].Score > violations[j].Score
		}
		return violations[i].Criterion < violations[j].Criterion
	})
	return violations
}

func (e *Engine) explain(criteria []models.Criterion, scores map[string]models.CriterionScore, perSources map[string]SourceScores, verdict models.Verdict, contributing int, skipped []string) models.Explanation {
	flagged := 0
	perCriterion := make(map[string]string, len(criteria))
	var keyFactors []string

	for _, c := range criteria {
		cs := scores[c.ID]
		if cs.Verdict != models.VerdictSafe {
			flagged++
		}
		perCriterion[c.ID] = fmt.Sprintf("%s: score %.2f from %d source(s) -> %s",
			c.Label, cs.Score, len(perSources[c.ID]), cs.Verdict)

		for src, score := range perSources[c.ID] {
			if score >= c.Thresholds.CautionBelow {
				keyFactors = append(keyFactors, fmt.Sprintf("%s scored %.2f on %s", src, score, c.ID))
			}
		}
	}
	sort.Strings(keyFactors)

	summary := fmt.Sprintf("verdict %s: %d of %d criteria flagged, %d contributing source(s)",
		verdict, flagged, len(criteria), contributing)
	if len(skipped) > 0 {
		summary += fmt.Sprintf(", %d supporting stage(s) unavailable", len(skipped))
	}

	return models.Explanation{
		Summary:      summary,
		PerCriterion: perCriterion,
		KeyFactors:   keyFactors,
	}
}

func enabledCriteria(criteria []models.Criterion) []models.Criterion {
	var enabled []models.Criterion
	for _, c := range criteria {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled
}
