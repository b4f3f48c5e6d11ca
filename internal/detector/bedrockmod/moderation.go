package bedrockmod

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/detector"
	"github.com/vmorozov/mediaguard/internal/models"
)

const moderationPrompt = `You are a strict content moderation classifier.
Classify the following text against these categories: violence, hate, sexual, self_harm, harassment.
Respond with JSON only, no prose: {"findings":[{"category":"...","score":0.0,"excerpt":"..."}]}
Scores are in [0,1]. Omit categories that do not apply.

Text:
%s`

type moderationFindings struct {
	Findings []struct {
		Category string  `json:"category"`
		Score    float64 `json:"score"`
		Excerpt  string  `json:"excerpt"`
	} `json:"findings"`
}

// Moderation moderates transcript and on-screen text through Claude on
// Bedrock.
type Moderation struct {
	client    *client
	maxTokens int
	logger    *zerolog.Logger
}

func NewModeration(ctx context.Context, region, modelID string, logger *zerolog.Logger) (*Moderation, error) {
	if modelID == "" {
		return nil, fmt.Errorf("bedrock moderation requires a model id")
	}
	c, err := newClient(ctx, region, modelID)
	if err != nil {
		return nil, err
	}
	return &Moderation{client: c, maxTokens: 1024, logger: logger}, nil
}

func (m *Moderation) ID() string { return "bedrock-moderation" }

func (m *Moderation) Run(ctx context.Context, snapshot blackboard.Snapshot, _ map[string]any) (detector.Update, error) {
	text := gatherText(snapshot)
	if strings.TrimSpace(text) == "" {
		return detector.Update{Warnings: []string{"no text available for moderation"}}, nil
	}

	raw, err := m.client.complete(ctx, fmt.Sprintf(moderationPrompt, text), m.maxTokens)
	if err != nil {
		return detector.Update{}, err
	}

	var findings moderationFindings
	if err := json.Unmarshal([]byte(extractJSON(raw)), &findings); err != nil {
		return detector.Update{}, fmt.Errorf("parsing moderation response: %w", err)
	}

	update := detector.Update{}
	for _, f := range findings.Findings {
		if f.Score <= 0 {
			continue
		}
		update.Evidence = append(update.Evidence, models.EvidenceItem{
			ID:         uuid.NewString(),
			DetectorID: m.ID(),
			Category:   f.Category,
			Label:      f.Excerpt,
			Confidence: f.Score,
			Score:      f.Score,
			CreatedAt:  time.Now(),
		})
	}
	m.logger.Debug().Int("findings", len(update.Evidence)).Msg("bedrock moderation complete")
	return update, nil
}

// gatherText joins whatever text-bearing stages produced upstream.
func gatherText(snapshot blackboard.Snapshot) string {
	var parts []string
	if transcript, ok := snapshot.GetString(blackboard.KeyTranscript); ok && transcript != "" {
		parts = append(parts, transcript)
	}
	if ocr, ok := snapshot.GetString(blackboard.KeyOCRText); ok && ocr != "" {
		parts = append(parts, ocr)
	}
	return strings.Join(parts, "\n")
}

// extractJSON cuts the first JSON object out of a model reply that may
// wrap it in markdown fences.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return raw
	}
	return raw[start : end+1]
}
