package lexicon

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/vmorozov/mediaguard/internal/blackboard"
)

func TestRunMatchesCategories(t *testing.T) {
	det := New()
	snap := blackboard.Snapshot{
		blackboard.KeyTranscript: "I will attack you and beat you",
		blackboard.KeyOCRText:    "this is a threat",
	}

	update, err := det.Run(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(update.Evidence) != 2 {
		t.Fatalf("expected violence and harassment evidence, got %v", update.Evidence)
	}

	byCategory := make(map[string]float64)
	for _, item := range update.Evidence {
		byCategory[item.Category] = item.Score
		if item.DetectorID != "lexicon-moderation" {
			t.Errorf("got detector id %q", item.DetectorID)
		}
	}
	// Two violence hits: 0.35 + 0.15
	if math.Abs(byCategory["violence"]-0.5) > 1e-9 {
		t.Errorf("violence: got %v, want 0.5", byCategory["violence"])
	}
	// One harassment hit: base score only.
	if byCategory["harassment"] != 0.35 {
		t.Errorf("harassment: got %v, want 0.35", byCategory["harassment"])
	}
}

func TestRunNoTextWarns(t *testing.T) {
	det := New()

	update, err := det.Run(context.Background(), blackboard.Snapshot{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(update.Evidence) != 0 {
		t.Errorf("no text must yield no evidence, got %v", update.Evidence)
	}
	if len(update.Warnings) != 1 {
		t.Errorf("expected a warning, got %v", update.Warnings)
	}
}

func TestRunCleanText(t *testing.T) {
	det := New()
	snap := blackboard.Snapshot{blackboard.KeyTranscript: "a pleasant walk in the park"}

	update, err := det.Run(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(update.Evidence) != 0 {
		t.Errorf("clean text must yield no evidence, got %v", update.Evidence)
	}
}

func TestRunDeterministicOrder(t *testing.T) {
	det := New()
	snap := blackboard.Snapshot{
		blackboard.KeyTranscript: "a threat to kill with a slur about suicide",
	}

	first, err := det.Run(context.Background(), snap, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var firstOrder []string
	for _, item := range first.Evidence {
		firstOrder = append(firstOrder, item.Category)
	}
	for i := 0; i < 10; i++ {
		again, err := det.Run(context.Background(), snap, nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		var order []string
		for _, item := range again.Evidence {
			order = append(order, item.Category)
		}
		if !reflect.DeepEqual(order, firstOrder) {
			t.Fatalf("category order not deterministic: %v vs %v", order, firstOrder)
		}
	}
}
