// Package lexicon is a self-contained text-moderation detector used
// when no hosted model is configured. It scores categories by weighted
// term hits; crude, but deterministic and dependency-free.
package lexicon

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/detector"
	"github.com/vmorozov/mediaguard/internal/models"
)

var categoryTerms = map[string][]string{
	"violence":   {"kill", "murder", "stab", "shoot", "beat", "assault", "attack", "blood"},
	"hate":       {"slur", "racist", "bigot"},
	"harassment": {"threat", "stalk", "doxx", "intimidate"},
	"self_harm":  {"suicide", "self-harm", "cutting"},
}

const (
	baseScore    = 0.35
	perHit       = 0.15
	maxHitsCount = 5
)

type Moderation struct{}

func New() *Moderation { return &Moderation{} }

func (m *Moderation) ID() string { return "lexicon-moderation" }

func (m *Moderation) Run(_ context.Context, snapshot blackboard.Snapshot, _ map[string]any) (detector.Update, error) {
	var parts []string
	if transcript, ok := snapshot.GetString(blackboard.KeyTranscript); ok {
		parts = append(parts, transcript)
	}
	if ocr, ok := snapshot.GetString(blackboard.KeyOCRText); ok {
		parts = append(parts, ocr)
	}
	text := strings.ToLower(strings.Join(parts, "\n"))
	if strings.TrimSpace(text) == "" {
		return detector.Update{Warnings: []string{"no text available for moderation"}}, nil
	}

	categories := make([]string, 0, len(categoryTerms))
	for category := range categoryTerms {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	update := detector.Update{}
	for _, category := range categories {
		terms := categoryTerms[category]
		hits := 0
		var matched []string
		for _, term := range terms {
			if strings.Contains(text, term) {
				hits++
				matched = append(matched, term)
			}
		}
		if hits == 0 {
			continue
		}
		if hits > maxHitsCount {
			hits = maxHitsCount
		}
		score := baseScore + perHit*float64(hits-1)
		if score > 1 {
			score = 1
		}
		update.Evidence = append(update.Evidence, models.EvidenceItem{
			ID:         uuid.NewString(),
			DetectorID: m.ID(),
			Category:   category,
			Label:      "matched terms: " + strings.Join(matched, ", "),
			Confidence: score,
			Score:      score,
			CreatedAt:  time.Now(),
		})
	}
	return update, nil
}
