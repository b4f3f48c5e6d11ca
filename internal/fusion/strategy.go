package fusion

import (
	"errors"
	"fmt"

	"github.com/vmorozov/mediaguard/internal/models"
)

// Strategy names accepted in job options and configuration.
const (
	StrategyWeightedSum = "weighted_sum"
	StrategyMax         = "max"
	StrategyAverage     = "average"
	StrategyRuleBased   = "rule_based"
	StrategyReliability = "reliability_weighted"

	VerdictAnyUnsafe       = "any_unsafe"
	VerdictMajority        = "majority"
	VerdictWeightedAverage = "weighted_average"
	VerdictCriticalOnly    = "critical_only"
)

// ErrUnknownStrategy is a configuration error and fails fast, before
// any stage executes.
var ErrUnknownStrategy = errors.New("unknown fusion strategy")

// ScoringStrategy computes one criterion's score from its per-source
// evidence scores.
type ScoringStrategy interface {
	Name() string
	Score(criterion models.Criterion, sources SourceScores) float64
}

// VerdictStrategy aggregates per-criterion scores into a final verdict
// and a confidence value.
type VerdictStrategy interface {
	Name() string
	Aggregate(criteria []models.Criterion, scores map[string]models.CriterionScore) (models.Verdict, float64)
}

// StrategySet is an explicitly constructed registry of strategies,
// injected into the engine instead of living in package globals.
type StrategySet struct {
	scoring map[string]ScoringStrategy
	verdict map[string]VerdictStrategy
}

func NewStrategySet() *StrategySet {
	return &StrategySet{
		scoring: make(map[string]ScoringStrategy),
		verdict: make(map[string]VerdictStrategy),
	}
}

func (s *StrategySet) RegisterScoring(strategy ScoringStrategy) {
	s.scoring[strategy.Name()] = strategy
}

func (s *StrategySet) RegisterVerdict(strategy VerdictStrategy) {
	s.verdict[strategy.Name()] = strategy
}

func (s *StrategySet) Scoring(name string) (ScoringStrategy, error) {
	strategy, ok := s.scoring[name]
	if !ok {
		return nil, fmt.Errorf("%w: scoring %q", ErrUnknownStrategy, name)
	}
	return strategy, nil
}

func (s *StrategySet) Verdict(name string) (VerdictStrategy, error) {
	strategy, ok := s.verdict[name]
	if !ok {
		return nil, fmt.Errorf("%w: verdict %q", ErrUnknownStrategy, name)
	}
	return strategy, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
