package fusion

import (
	"testing"

	"github.com/vmorozov/mediaguard/internal/models"
)

func TestExtractSources(t *testing.T) {
	c := models.Criterion{ID: "violence", Label: "Graphic violence"}

	evidence := []models.EvidenceItem{
		// Explicit criterion id always matches.
		{DetectorID: "xclip", CriterionID: "violence", Score: 0.6},
		{DetectorID: "xclip", CriterionID: "violence", Score: 0.9},
		// Category equal to the criterion id matches.
		{DetectorID: "yolo", Category: "violence", Score: 0.4},
		// Keyword of the label inside the evidence label matches.
		{DetectorID: "openvocab", Label: "violence against person", Confidence: 0.7},
		// Explicitly tagged for another criterion never matches.
		{DetectorID: "nsfw", CriterionID: "nudity", Score: 0.95},
		// Unrelated label does not match.
		{DetectorID: "ocr", Label: "storefront sign", Score: 0.8},
	}

	sources := extractSources(c, evidence)

	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d: %v", len(sources), sources)
	}
	if sources["xclip"] != 0.9 {
		t.Errorf("expected max score per source, got %v", sources["xclip"])
	}
	if sources["yolo"] != 0.4 {
		t.Errorf("expected category match, got %v", sources["yolo"])
	}
	// Score is zero, so confidence is used instead.
	if sources["openvocab"] != 0.7 {
		t.Errorf("expected confidence fallback 0.7, got %v", sources["openvocab"])
	}
}

func TestCriterionKeywordsDropShortWords(t *testing.T) {
	c := models.Criterion{ID: "hate_speech", Label: "Use of bad words"}

	keywords := criterionKeywords(c)
	for _, kw := range keywords {
		if len(kw) < 4 {
			t.Errorf("keyword %q shorter than 4 runes", kw)
		}
	}
	if !containsKeyword(keywords, "hate") || !containsKeyword(keywords, "speech") {
		t.Errorf("expected hate and speech keywords, got %v", keywords)
	}
	if containsKeyword(keywords, "of") || containsKeyword(keywords, "bad") {
		t.Errorf("short words must be dropped, got %v", keywords)
	}
}

func containsKeyword(keywords []string, want string) bool {
	for _, kw := range keywords {
		if kw == want {
			return true
		}
	}
	return false
}

func TestRelevantRangesDedupAndCap(t *testing.T) {
	c := models.Criterion{ID: "violence", Label: "Violence"}
	tr := func(start, end float64) models.TimeRange {
		return models.TimeRange{Start: start, End: end}
	}

	evidence := []models.EvidenceItem{
		{DetectorID: "a", CriterionID: "violence", TimeRanges: []models.TimeRange{tr(0, 1), tr(1, 2)}},
		{DetectorID: "b", CriterionID: "violence", TimeRanges: []models.TimeRange{tr(0, 1), tr(2, 3)}},
	}

	ranges := relevantRanges(c, evidence, 10)
	if len(ranges) != 3 {
		t.Errorf("expected 3 deduplicated ranges, got %d", len(ranges))
	}

	capped := relevantRanges(c, evidence, 2)
	if len(capped) != 2 {
		t.Errorf("expected cap at 2, got %d", len(capped))
	}
}
