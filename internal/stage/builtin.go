package stage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/blackboard"
	"github.com/vmorozov/mediaguard/internal/detector"
	"github.com/vmorozov/mediaguard/internal/models"
)

// Built-in stage type names. Capability tags and priorities for these
// types live in the routing configuration, not here.
const (
	TypeFrameSampling   = "frame_sampling"
	TypeWindowMining    = "window_mining"
	TypeVisualObjects   = "visual_objects"
	TypeVisualOpenVocab = "visual_open_vocab"
	TypeViolenceVideo   = "violence_video"
	TypeViolencePose    = "violence_pose"
	TypeAudioSpeech     = "audio_speech"
	TypeVisualText      = "visual_text"
	TypeTextModeration  = "text_moderation"
	TypeNSFWVisual      = "nsfw_visual"
)

type builtinDef struct {
	displayName    string
	mediaTypes     []models.MediaType
	inputs         []string
	optionalInputs []string
	outputs        []string
}

var visualMedia = []models.MediaType{models.MediaTypeVideo, models.MediaTypeImage}

var builtins = map[string]builtinDef{
	TypeFrameSampling: {
		displayName: "Frame Sampling",
		mediaTypes:  visualMedia,
		inputs:      []string{blackboard.KeyMedia},
		outputs:     []string{blackboard.KeyFrames},
	},
	TypeWindowMining: {
		displayName: "Suspicious Window Mining",
		mediaTypes:  []models.MediaType{models.MediaTypeVideo},
		inputs:      []string{blackboard.KeyFrames},
		outputs:     []string{blackboard.KeyWindows},
	},
	TypeVisualObjects: {
		displayName: "Visual Object Detection",
		mediaTypes:  visualMedia,
		inputs:      []string{blackboard.KeyFrames},
		outputs:     []string{blackboard.EvidenceKey(TypeVisualObjects)},
	},
	TypeVisualOpenVocab: {
		displayName: "Open-Vocabulary Visual Detection",
		mediaTypes:  visualMedia,
		inputs:      []string{blackboard.KeyFrames},
		outputs:     []string{blackboard.EvidenceKey(TypeVisualOpenVocab)},
	},
	TypeViolenceVideo: {
		displayName: "Violence Video Classification",
		mediaTypes:  []models.MediaType{models.MediaTypeVideo},
		inputs:      []string{blackboard.KeyWindows},
		outputs:     []string{blackboard.EvidenceKey(TypeViolenceVideo)},
	},
	TypeViolencePose: {
		displayName: "Violence Pose Analysis",
		mediaTypes:  visualMedia,
		inputs:      []string{blackboard.KeyFrames},
		outputs:     []string{blackboard.EvidenceKey(TypeViolencePose)},
	},
	TypeAudioSpeech: {
		displayName: "Speech Transcription",
		mediaTypes:  []models.MediaType{models.MediaTypeVideo, models.MediaTypeAudio},
		inputs:      []string{blackboard.KeyMedia},
		outputs:     []string{blackboard.KeyTranscript, blackboard.EvidenceKey(TypeAudioSpeech)},
	},
	TypeVisualText: {
		displayName: "On-Screen Text Recognition",
		mediaTypes:  visualMedia,
		inputs:      []string{blackboard.KeyFrames},
		outputs:     []string{blackboard.KeyOCRText, blackboard.EvidenceKey(TypeVisualText)},
	},
	TypeTextModeration: {
		displayName:    "Text Moderation",
		optionalInputs: []string{blackboard.KeyTranscript, blackboard.KeyOCRText},
		outputs:        []string{blackboard.EvidenceKey(TypeTextModeration)},
	},
	TypeNSFWVisual: {
		displayName: "NSFW Visual Classification",
		mediaTypes:  visualMedia,
		inputs:      []string{blackboard.KeyFrames},
		outputs:     []string{blackboard.EvidenceKey(TypeNSFWVisual)},
	},
}

// RegisterBuiltins wires one detector backend per built-in stage type.
// Stage types without a backend in the map are left unregistered, which
// routing treats the same as a stage that does not exist.
func RegisterBuiltins(reg *Registry, backends map[string]detector.Detector, logger *zerolog.Logger) error {
	for stageType, def := range builtins {
		det, ok := backends[stageType]
		if !ok {
			continue
		}
		reg.Register(stageType, newBuiltinFactory(stageType, def, det, logger))
	}
	for stageType := range backends {
		if _, ok := builtins[stageType]; !ok {
			return fmt.Errorf("no built-in stage definition for detector backend %q", stageType)
		}
	}
	return nil
}

func newBuiltinFactory(stageType string, def builtinDef, det detector.Detector, logger *zerolog.Logger) Factory {
	return func() (StagePlugin, error) {
		return &DetectorStage{
			stageType:      stageType,
			displayName:    def.displayName,
			det:            det,
			mediaTypes:     def.mediaTypes,
			inputs:         def.inputs,
			optionalInputs: def.optionalInputs,
			outputs:        def.outputs,
			logger:         logger,
		}, nil
	}
}
