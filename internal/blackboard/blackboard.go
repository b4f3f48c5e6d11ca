// Package blackboard holds the mutable shared state of one evaluation
// run. Stages read a snapshot and return a patch; only the pipeline
// runner merges patches back, so writes are single-threaded per run.
package blackboard

import (
	"sort"
	"strings"
	"sync"

	"github.com/vmorozov/mediaguard/internal/models"
)

// Well-known keys produced and consumed by the built-in stages.
const (
	KeyMedia      = "media"
	KeyFrames     = "frames"
	KeyWindows    = "windows"
	KeyTranscript = "transcript"
	KeyOCRText    = "ocr_text"
)

const evidencePrefix = "evidence."

// EvidenceKey returns the blackboard key under which a stage stores the
// evidence items it produced.
func EvidenceKey(stageID string) string {
	return evidencePrefix + stageID
}

// IsEvidenceKey reports whether a blackboard key holds evidence items.
func IsEvidenceKey(key string) bool {
	return strings.HasPrefix(key, evidencePrefix)
}

// Patch is the partial state update a stage returns instead of writing
// to the blackboard directly.
type Patch map[string]any

// Blackboard is exclusively owned by one run. The mutex guards snapshot
// reads taken while a merge is in flight.
type Blackboard struct {
	mu     sync.RWMutex
	runID  string
	values map[string]any
}

func New(runID string) *Blackboard {
	return &Blackboard{
		runID:  runID,
		values: make(map[string]any),
	}
}

func (b *Blackboard) RunID() string { return b.runID }

func (b *Blackboard) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

func (b *Blackboard) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

func (b *Blackboard) GetString(key string) (string, bool) {
	v, ok := b.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (b *Blackboard) GetFloat(key string) (float64, bool) {
	v, ok := b.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Apply merges a patch into the blackboard, last writer wins per key.
func (b *Blackboard) Apply(patch Patch) {
	if len(patch) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range patch {
		b.values[k] = v
	}
}

// Keys returns all present keys in sorted order.
func (b *Blackboard) Keys() []string {
	b.mu.RLock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	b.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a consistent shallow copy for a stage to read.
// Phase-concurrent stages each receive the same pre-phase snapshot, so
// a stage never observes a sibling's output.
func (b *Blackboard) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	copied := make(map[string]any, len(b.values))
	for k, v := range b.values {
		copied[k] = v
	}
	return Snapshot(copied)
}

// Evidence collects every evidence item on the blackboard, ordered by
// producing stage id for determinism.
func (b *Blackboard) Evidence() []models.EvidenceItem {
	var out []models.EvidenceItem
	for _, key := range b.Keys() {
		if !strings.HasPrefix(key, evidencePrefix) {
			continue
		}
		v, _ := b.Get(key)
		if items, ok := v.([]models.EvidenceItem); ok {
			out = append(out, items...)
		}
	}
	return out
}

// Snapshot is a read-only view of the blackboard at a point in time.
type Snapshot map[string]any

func (s Snapshot) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

func (s Snapshot) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Snapshot) GetString(key string) (string, bool) {
	v, ok := s[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// EvidenceFor returns the evidence previously produced by a stage, or
// nil when the stage did not run.
func (s Snapshot) EvidenceFor(stageID string) []models.EvidenceItem {
	v, ok := s[EvidenceKey(stageID)]
	if !ok {
		return nil
	}
	items, _ := v.([]models.EvidenceItem)
	return items
}
