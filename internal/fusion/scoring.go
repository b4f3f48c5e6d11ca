package fusion

import (
	"github.com/vmorozov/mediaguard/internal/config"
	"github.com/vmorozov/mediaguard/internal/models"
)

// WeightedSum divides by the total weight actually used, so a criterion
// is not penalized when an optional detector was skipped: absent
// sources contribute zero weight, not zero score.
type WeightedSum struct {
	Weights map[string]float64
}

func (s *WeightedSum) Name() string { return StrategyWeightedSum }

func (s *WeightedSum) Score(_ models.Criterion, sources SourceScores) float64 {
	var sum, totalWeight float64
	for src, score := range sources {
		w := s.weightOf(src)
		sum += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return clamp01(sum / totalWeight)
}

func (s *WeightedSum) weightOf(source string) float64 {
	if w, ok := s.Weights[source]; ok {
		return w
	}
	return 1.0
}

// Max takes the single strongest source.
type Max struct{}

func (Max) Name() string { return StrategyMax }

func (Max) Score(_ models.Criterion, sources SourceScores) float64 {
	var best float64
	for _, score := range sources {
		if score > best {
			best = score
		}
	}
	return clamp01(best)
}

// Average is the arithmetic mean over extracted scores, not weighted by
// source.
type Average struct{}

func (Average) Name() string { return StrategyAverage }

func (Average) Score(_ models.Criterion, sources SourceScores) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, score := range sources {
		sum += score
	}
	return clamp01(sum / float64(len(sources)))
}

// RuleBased evaluates declarative rules against per-source scores and
// falls back to the wrapped strategy when no rule matches the
// criterion.
type RuleBased struct {
	Rules    []config.FusionRule
	Fallback ScoringStrategy
}

func (s *RuleBased) Name() string { return StrategyRuleBased }

func (s *RuleBased) Score(c models.Criterion, sources SourceScores) float64 {
	matched := false
	var base float64
	haveBase := false

	// threshold and any rules propose a base score.
	for _, rule := range s.Rules {
		if rule.Criterion != c.ID {
			continue
		}
		switch rule.Type {
		case config.RuleThreshold:
			score, ok := sources[rule.Source]
			if ok && score >= rule.MinScore {
				matched = true
				candidate := score * weightOr1(rule.Weight)
				if !haveBase || candidate > base {
					base, haveBase = candidate, true
				}
			}
		case config.RuleAny:
			for _, score := range sources {
				if score >= rule.MinScore {
					matched = true
					if !haveBase || score > base {
						base, haveBase = score, true
					}
				}
			}
		}
	}
	if !haveBase {
		base = s.Fallback.Score(c, sources)
	}

	// boost and multiply rules adjust the base.
	for _, rule := range s.Rules {
		if rule.Criterion != c.ID {
			continue
		}
		score, ok := sources[rule.Source]
		if !ok || score < rule.MinScore {
			continue
		}
		switch rule.Type {
		case config.RuleBoost:
			matched = true
			base += rule.Value
		case config.RuleMultiply:
			matched = true
			base *= rule.Value
		}
	}

	if !matched {
		return clamp01(s.Fallback.Score(c, sources))
	}
	return clamp01(base)
}

// ReliabilityWeighted folds each source's configured reliability
// coefficient into the weighting and applies the calibration profile.
// Below the profile's minimum source count the score is capped at 0.3:
// insufficient evidence must read as uncertainty, not confidence.
type ReliabilityWeighted struct {
	Reliability map[string]float64
	Weights     map[string]float64
	Profile     config.CalibrationProfile
}

const insufficientEvidenceCap = 0.3

func (s *ReliabilityWeighted) Name() string { return StrategyReliability }

func (s *ReliabilityWeighted) Score(_ models.Criterion, sources SourceScores) float64 {
	var sum, totalWeight float64
	for src, score := range sources {
		rel := s.reliabilityOf(src)
		w := rel * weightOr1(s.Weights[src])
		sum += score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	score := clamp01(sum / totalWeight * s.multiplier())
	if len(sources) < s.Profile.MinSources && score > insufficientEvidenceCap {
		return insufficientEvidenceCap
	}
	return score
}

func (s *ReliabilityWeighted) reliabilityOf(source string) float64 {
	if rel, ok := s.Reliability[source]; ok {
		return rel
	}
	return 0.5
}

func (s *ReliabilityWeighted) multiplier() float64 {
	if s.Profile.Multiplier == 0 {
		return 1.0
	}
	return s.Profile.Multiplier
}

func weightOr1(w float64) float64 {
	if w == 0 {
		return 1.0
	}
	return w
}
