package blackboard

import (
	"reflect"
	"testing"

	"github.com/vmorozov/mediaguard/internal/models"
)

func TestApplyAndGet(t *testing.T) {
	bb := New("run-1")

	bb.Apply(Patch{KeyTranscript: "hello", "count": 3})
	bb.Apply(Patch{KeyTranscript: "overwritten"})

	if got, _ := bb.GetString(KeyTranscript); got != "overwritten" {
		t.Errorf("last writer wins, got %q", got)
	}
	if got, ok := bb.GetFloat("count"); !ok || got != 3 {
		t.Errorf("expected int readable as float, got %v ok=%v", got, ok)
	}
	if bb.Has("never") {
		t.Errorf("unexpected key")
	}
	if want := []string{"count", KeyTranscript}; !reflect.DeepEqual(bb.Keys(), want) {
		t.Errorf("got keys %v, want %v", bb.Keys(), want)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	bb := New("run-1")
	bb.Apply(Patch{KeyFrames: "frames-v1"})

	snap := bb.Snapshot()
	bb.Apply(Patch{KeyFrames: "frames-v2", KeyWindows: "w"})

	// The snapshot keeps the state it was taken at.
	if got, _ := snap.GetString(KeyFrames); got != "frames-v1" {
		t.Errorf("snapshot mutated, got %q", got)
	}
	if snap.Has(KeyWindows) {
		t.Errorf("snapshot sees writes made after it was taken")
	}
}

func TestEvidenceKeys(t *testing.T) {
	if got := EvidenceKey("visual_objects"); got != "evidence.visual_objects" {
		t.Errorf("got %q", got)
	}
	if !IsEvidenceKey("evidence.x") || IsEvidenceKey("transcript") {
		t.Errorf("evidence key detection broken")
	}
}

func TestEvidenceCollection(t *testing.T) {
	bb := New("run-1")

	bb.Apply(Patch{
		EvidenceKey("zeta"):  []models.EvidenceItem{{ID: "e3", DetectorID: "z"}},
		EvidenceKey("alpha"): []models.EvidenceItem{{ID: "e1"}, {ID: "e2"}},
		KeyTranscript:        "not evidence",
	})

	items := bb.Evidence()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	// Ordered by producing stage id.
	if items[0].ID != "e1" || items[2].ID != "e3" {
		t.Errorf("unexpected order: %v", items)
	}
}

func TestSnapshotEvidenceFor(t *testing.T) {
	bb := New("run-1")
	bb.Apply(Patch{EvidenceKey("s1"): []models.EvidenceItem{{ID: "e1"}}})

	snap := bb.Snapshot()
	if got := snap.EvidenceFor("s1"); len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("got %v", got)
	}
	if got := snap.EvidenceFor("never-ran"); got != nil {
		t.Errorf("expected nil for absent stage, got %v", got)
	}
}
