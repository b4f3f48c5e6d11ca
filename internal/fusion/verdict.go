package fusion

import (
	"github.com/vmorozov/mediaguard/internal/config"
	"github.com/vmorozov/mediaguard/internal/models"
)

// AnyUnsafe: a single UNSAFE criterion decides the run; confidence is
// the strongest UNSAFE score. Otherwise any CAUTION yields CAUTION.
type AnyUnsafe struct{}

func (AnyUnsafe) Name() string { return VerdictAnyUnsafe }

func (AnyUnsafe) Aggregate(criteria []models.Criterion, scores map[string]models.CriterionScore) (models.Verdict, float64) {
	verdict := models.VerdictSafe
	confidence := 1.0
	var maxUnsafe, maxCaution float64
	for _, c := range criteria {
		cs, ok := scores[c.ID]
		if !ok {
			continue
		}
		switch cs.Verdict {
		case models.VerdictUnsafe:
			verdict = models.VerdictUnsafe
			if cs.Score > maxUnsafe {
				maxUnsafe = cs.Score
			}
		case models.VerdictCaution:
			if verdict == models.VerdictSafe {
				verdict = models.VerdictCaution
			}
			if cs.Score > maxCaution {
				maxCaution = cs.Score
			}
		}
	}
	switch verdict {
	case models.VerdictUnsafe:
		confidence = maxUnsafe
	case models.VerdictCaution:
		confidence = maxCaution
	}
	return verdict, confidence
}

// Majority: the verdict with the most criterion votes wins; confidence
// is the winning vote share. Severity order breaks ties.
type Majority struct{}

func (Majority) Name() string { return VerdictMajority }

func (Majority) Aggregate(criteria []models.Criterion, scores map[string]models.CriterionScore) (models.Verdict, float64) {
	votes := make(map[models.Verdict]int)
	total := 0
	for _, c := range criteria {
		if cs, ok := scores[c.ID]; ok {
			votes[cs.Verdict]++
			total++
		}
	}
	if total == 0 {
		return models.VerdictSafe, 1.0
	}
	winner := models.VerdictSafe
	best := -1
	for _, v := range []models.Verdict{models.VerdictSafe, models.VerdictCaution, models.VerdictUnsafe} {
		if votes[v] > best || (votes[v] == best && v.MoreSevere(winner)) {
			winner, best = v, votes[v]
		}
	}
	return winner, float64(best) / float64(total)
}

// WeightedAverageVerdict compares the severity-weighted mean of
// criterion scores against two aggregate thresholds.
type WeightedAverageVerdict struct {
	Thresholds config.AggregateThresholds
}

func (WeightedAverageVerdict) Name() string { return VerdictWeightedAverage }

func (s WeightedAverageVerdict) Aggregate(criteria []models.Criterion, scores map[string]models.CriterionScore) (models.Verdict, float64) {
	var sum, totalWeight float64
	for _, c := range criteria {
		cs, ok := scores[c.ID]
		if !ok {
			continue
		}
		w := c.SeverityWeight
		if w == 0 {
			w = 1.0
		}
		sum += cs.Score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return models.VerdictSafe, 1.0
	}
	mean := sum / totalWeight
	switch {
	case mean >= s.Thresholds.UnsafeAbove:
		return models.VerdictUnsafe, mean
	case mean >= s.Thresholds.CautionAbove:
		return models.VerdictCaution, mean
	default:
		return models.VerdictSafe, 1.0 - mean
	}
}

// CriticalOnly: only criteria carrying critical severity may produce
// UNSAFE; non-critical UNSAFE verdicts are downgraded to CAUTION.
type CriticalOnly struct{}

func (CriticalOnly) Name() string { return VerdictCriticalOnly }

func (CriticalOnly) Aggregate(criteria []models.Criterion, scores map[string]models.CriterionScore) (models.Verdict, float64) {
	verdict := models.VerdictSafe
	confidence := 1.0
	var maxScore float64
	for _, c := range criteria {
		cs, ok := scores[c.ID]
		if !ok {
			continue
		}
		effective := cs.Verdict
		if effective == models.VerdictUnsafe && c.Severity != models.SeverityCritical {
			effective = models.VerdictCaution
		}
		if effective.MoreSevere(verdict) {
			verdict = effective
		}
		if effective != models.VerdictSafe && cs.Score > maxScore {
			maxScore = cs.Score
		}
	}
	if verdict != models.VerdictSafe {
		confidence = maxScore
	}
	return verdict, confidence
}
