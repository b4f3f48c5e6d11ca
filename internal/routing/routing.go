// Package routing selects the minimal ordered set of stage types needed
// to evaluate a set of criteria. The mapping from criterion keywords to
// detector capabilities is data, not code, so it can be swapped without
// a rebuild.
package routing

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/models"
	"github.com/vmorozov/mediaguard/internal/stage"
)

// Detector capability tags. Closed set: used only for routing, never
// persisted with results.
const (
	CapVisualObjects   = "visual-objects"
	CapVisualOpenVocab = "visual-open-vocabulary"
	CapViolenceVideo   = "violence-video"
	CapViolenceAction  = "violence-action"
	CapViolencePose    = "violence-pose"
	CapWindowMining    = "window-mining"
	CapAudioSpeech     = "audio-speech"
	CapVisualText      = "visual-text"
	CapTextModeration  = "text-moderation"
	CapNSFWVisual      = "nsfw-visual"
)

// textBearingCaps are capabilities whose stages produce text that the
// text moderation stage consumes as an implicit dependency.
var textBearingCaps = []string{CapAudioSpeech, CapVisualText}

// StageRoute describes one stage type to the router.
type StageRoute struct {
	Capabilities  []string      `yaml:"capabilities"`
	Priority      int           `yaml:"priority"`
	AlwaysInclude bool          `yaml:"always_include"`
	Impact        models.Impact `yaml:"impact"`
}

// Table is the hot-swappable routing configuration surface.
type Table struct {
	Keywords         map[string][]string   `yaml:"keywords"`
	Stages           map[string]StageRoute `yaml:"stages"`
	DefaultStages    []string              `yaml:"default_stages"`
	MinKeywordLength int                   `yaml:"min_keyword_length"`
}

// Engine routes criteria to stage types. Route is pure: equal inputs
// against the same registry contents produce the same ordered list.
type Engine struct {
	table  Table
	logger *zerolog.Logger
}

func NewEngine(table Table, logger *zerolog.Logger) *Engine {
	return &Engine{table: table, logger: logger}
}

// Table returns the engine's routing table.
func (e *Engine) Table() Table { return e.table }

// Route maps enabled criteria to an ordered list of stage types.
// Unrecognized or empty criteria fall back to the default stage set.
func (e *Engine) Route(criteria []models.Criterion, reg *stage.Registry) []string {
	required := e.requiredCapabilities(criteria)
	if len(required) == 0 {
		e.logger.Debug().Msg("no capability matched, falling back to default stage set")
		return append([]string(nil), e.table.DefaultStages...)
	}

	selected := make(map[string]StageRoute)
	for stageType, route := range e.table.Stages {
		if !reg.Has(stageType) {
			continue
		}
		if route.AlwaysInclude || intersects(route.Capabilities, required) {
			selected[stageType] = route
		}
	}

	// Text moderation has no criteria mapping of its own: it rides along
	// whenever a selected stage produces speech or on-screen text.
	if providesAny(selected, textBearingCaps) {
		for stageType, route := range e.table.Stages {
			if !reg.Has(stageType) {
				continue
			}
			if containsStr(route.Capabilities, CapTextModeration) {
				selected[stageType] = route
			}
		}
	}

	types := make([]string, 0, len(selected))
	for t := range selected {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		pi, pj := selected[types[i]].Priority, selected[types[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return types[i] < types[j]
	})

	e.logger.Debug().
		Strs("stages", types).
		Int("capabilities", len(required)).
		Msg("routing complete")
	return types
}

// ImpactFor returns the configured impact level for a stage type,
// defaulting to supporting.
func (e *Engine) ImpactFor(stageType string) models.Impact {
	if route, ok := e.table.Stages[stageType]; ok && route.Impact != "" {
		return route.Impact
	}
	return models.ImpactSupporting
}

func (e *Engine) requiredCapabilities(criteria []models.Criterion) map[string]bool {
	required := make(map[string]bool)
	for _, c := range criteria {
		if !c.Enabled {
			continue
		}
		for _, kw := range ExtractKeywords(c, e.minKeywordLength()) {
			for tableKw, caps := range e.table.Keywords {
				if strings.Contains(kw, tableKw) || strings.Contains(tableKw, kw) {
					for _, cap := range caps {
						required[cap] = true
					}
				}
			}
		}
	}
	return required
}

func (e *Engine) minKeywordLength() int {
	if e.table.MinKeywordLength > 0 {
		return e.table.MinKeywordLength
	}
	return 4
}

// ExtractKeywords splits a criterion's id, label and description into
// lowercase keywords, dropping words below the minimum length.
func ExtractKeywords(c models.Criterion, minLen int) []string {
	text := strings.ToLower(c.ID + " " + c.Label + " " + c.Description)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	seen := make(map[string]bool)
	var keywords []string
	for _, f := range fields {
		if len(f) < minLen || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}

func intersects(caps []string, required map[string]bool) bool {
	for _, c := range caps {
		if required[c] {
			return true
		}
	}
	return false
}

func providesAny(selected map[string]StageRoute, caps []string) bool {
	for _, route := range selected {
		for _, c := range caps {
			if containsStr(route.Capabilities, c) {
				return true
			}
		}
	}
	return false
}

func containsStr(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
