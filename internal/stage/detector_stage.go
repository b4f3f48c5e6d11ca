package stage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/detector"
	"github.com/vmorozov/mediaguard/internal/models"
)

// DetectorStage adapts one opaque detector backend to the StagePlugin
// contract. All built-in stages are instances of it, differing only in
// their declared keys and media applicability.
type DetectorStage struct {
	stageType      string
	displayName    string
	det            detector.Detector
	mediaTypes     []models.MediaType
	inputs         []string
	optionalInputs []string
	outputs        []string
	logger         *zerolog.Logger
}

func (s *DetectorStage) Type() string                            { return s.stageType }
func (s *DetectorStage) DisplayName() string                     { return s.displayName }
func (s *DetectorStage) SupportedMediaTypes() []models.MediaType { return s.mediaTypes }
func (s *DetectorStage) InputKeys() []string                     { return s.inputs }
func (s *DetectorStage) OptionalInputKeys() []string             { return s.optionalInputs }
func (s *DetectorStage) OutputKeys() []string                    { return s.outputs }

// ValidateState skips the stage when none of its inputs, required or
// optional, is present. Hard inputs missing because an upstream stage
// was skipped surface here as a readable reason instead of an error.
func (s *DetectorStage) ValidateState(snapshot blackboard.Snapshot) string {
	for _, key := range s.inputs {
		if !snapshot.Has(key) {
			return fmt.Sprintf("required input %q not present", key)
		}
	}
	if len(s.optionalInputs) == 0 {
		return ""
	}
	for _, key := range s.optionalInputs {
		if snapshot.Has(key) {
			return ""
		}
	}
	return fmt.Sprintf("none of the optional inputs %v present", s.optionalInputs)
}

// Run invokes the detector and converts its update into a blackboard
// patch. Evidence is stamped with the detector id and stored under the
// stage instance's evidence key.
func (s *DetectorStage) Run(ctx context.Context, snapshot blackboard.Snapshot, spec models.StageSpec) (blackboard.Patch, error) {
	update, err := s.det.Run(ctx, snapshot, spec.Config)
	if err != nil {
		return nil, fmt.Errorf("detector %s: %w", s.det.ID(), err)
	}

	for _, warning := range update.Warnings {
		s.logger.Warn().
			Str("stage", spec.ID).
			Str("detector", s.det.ID()).
			Msg(warning)
	}

	patch := make(blackboard.Patch, len(update.Keys)+1)
	for k, v := range update.Keys {
		patch[k] = v
	}
	if len(update.Evidence) > 0 {
		evidence := make([]models.EvidenceItem, len(update.Evidence))
		copy(evidence, update.Evidence)
		for i := range evidence {
			if evidence[i].DetectorID == "" {
				evidence[i].DetectorID = s.det.ID()
			}
		}
		patch[blackboard.EvidenceKey(spec.ID)] = evidence
	}
	return patch, nil
}
