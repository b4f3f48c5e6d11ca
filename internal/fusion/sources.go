// Package fusion combines heterogeneous detector evidence into
// per-criterion scores and a final verdict. Scoring and aggregation are
// pluggable strategies selected per evaluation.
package fusion

import (
	"strings"

	"github.com/vmorozov/mediaguard/internal/models"
)

// SourceScores maps a detector source id to its best relevant score for
// one criterion. A source with no relevant evidence is absent, not zero.
type SourceScores map[string]float64

// relevantTo reports whether an evidence item speaks to a criterion.
// Explicit criterion ids win; otherwise the category or label has to
// match a keyword of the criterion.
func relevantTo(item models.EvidenceItem, c models.Criterion, keywords []string) bool {
	if item.CriterionID != "" {
		return item.CriterionID == c.ID
	}
	if item.Category != "" && item.Category == c.ID {
		return true
	}
	haystack := strings.ToLower(item.Category + " " + item.Label)
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// criterionKeywords lowers and splits a criterion's id and label for
// evidence matching. Shorter words than four runes are too noisy.
func criterionKeywords(c models.Criterion) []string {
	text := strings.ToLower(c.ID + " " + c.Label)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var keywords []string
	for _, f := range fields {
		if len(f) >= 4 {
			keywords = append(keywords, f)
		}
	}
	return keywords
}

// extractSources folds the evidence down to the best relevant score per
// detector source. The criterion-relevance score is preferred over the
// raw detection confidence when present.
func extractSources(c models.Criterion, evidence []models.EvidenceItem) SourceScores {
	keywords := criterionKeywords(c)
	sources := make(SourceScores)
	for _, item := range evidence {
		if !relevantTo(item, c, keywords) {
			continue
		}
		score := item.Score
		if score == 0 {
			score = item.Confidence
		}
		if cur, ok := sources[item.DetectorID]; !ok || score > cur {
			sources[item.DetectorID] = score
		}
	}
	return sources
}

// relevantRanges collects the time localization of the evidence behind
// a flagged criterion, deduplicated and capped.
func relevantRanges(c models.Criterion, evidence []models.EvidenceItem, limit int) []models.TimeRange {
	keywords := criterionKeywords(c)
	seen := make(map[models.TimeRange]bool)
	var ranges []models.TimeRange
	for _, item := range evidence {
		if !relevantTo(item, c, keywords) {
			continue
		}
		for _, tr := range item.TimeRanges {
			if seen[tr] {
				continue
			}
			seen[tr] = true
			ranges = append(ranges, tr)
			if len(ranges) >= limit {
				return ranges
			}
		}
	}
	return ranges
}
