// Package setup loads environment configuration and wires the
// evaluation engine together: registry, router, runner, fusion,
// checkpointing and the admission gate.
package setup

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/checkpoint"
	"github.com/vmorozov/mediaguard/internal/config"
	"github.com/vmorozov/mediaguard/internal/detector"
	"github.com/vmorozov/mediaguard/internal/detector/bedrockmod"
	"github.com/vmorozov/mediaguard/internal/detector/fixture"
	"github.com/vmorozov/mediaguard/internal/detector/lexicon"
	"github.com/vmorozov/mediaguard/internal/evaluator"
	"github.com/vmorozov/mediaguard/internal/fusion"
	"github.com/vmorozov/mediaguard/internal/gate"
	"github.com/vmorozov/mediaguard/internal/models"
	"github.com/vmorozov/mediaguard/internal/pipeline"
	"github.com/vmorozov/mediaguard/internal/progress"
	"github.com/vmorozov/mediaguard/internal/redisconn"
	"github.com/vmorozov/mediaguard/internal/routing"
	"github.com/vmorozov/mediaguard/internal/stage"
)

type Config struct {
	RedisAddr          string
	RedisPassword      string
	ProgressStream     string
	AWSRegion          string
	ModerationProvider string
	ModerationModelID  string
	MaxConcurrentRuns  int
}

type Dependencies struct {
	Evaluator *evaluator.Evaluator
	Gate      *gate.Gate
	Criteria  []models.Criterion
	Logger    *zerolog.Logger
}

func LoadConfig() *Config {
	return &Config{
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		ProgressStream:     getEnv("PROGRESS_STREAM", "mediaguard:progress"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		ModerationProvider: getEnv("MODERATION_PROVIDER", "lexicon"),
		ModerationModelID:  getEnv("MODERATION_MODEL_ID", ""),
		MaxConcurrentRuns:  getEnvInt("MAX_CONCURRENT_RUNS", 2),
	}
}

// Wire builds the full dependency graph. Without REDIS_ADDR the engine
// runs with in-memory checkpoints and log-only progress.
func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	table, err := config.LoadRoutingTable()
	if err != nil {
		return nil, fmt.Errorf("loading routing table: %w", err)
	}
	fusionCfg, err := config.LoadFusionConfig()
	if err != nil {
		return nil, fmt.Errorf("loading fusion config: %w", err)
	}
	criteria, err := config.LoadCriteriaPreset()
	if err != nil {
		return nil, fmt.Errorf("loading criteria preset: %w", err)
	}

	registry := stage.NewRegistry()
	backends, err := buildBackends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := stage.RegisterBuiltins(registry, backends, logger); err != nil {
		return nil, fmt.Errorf("registering stages: %w", err)
	}

	var ckptStore checkpoint.Store = checkpoint.NewMemory()
	var notifier progress.Notifier = progress.Log{Logger: logger}
	if cfg.RedisAddr != "" {
		client, err := redisconn.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, logger)
		if err != nil {
			return nil, err
		}
		ckptStore = checkpoint.NewRedis(client, logger)
		notifier = progress.NewRedisStream(client, cfg.ProgressStream, logger)
	}

	router := routing.NewEngine(table, logger)
	runner := pipeline.NewRunner(notifier, ckptStore, logger)
	fuser := fusion.NewEngine(fusionCfg, logger)
	eval := evaluator.New(registry, router, runner, fuser, ckptStore, logger)

	logger.Info().
		Strs("stages", registry.List()).
		Str("moderation", cfg.ModerationProvider).
		Int("max_concurrent_runs", cfg.MaxConcurrentRuns).
		Msg("engine wired")

	return &Dependencies{
		Evaluator: eval,
		Gate:      gate.New(cfg.MaxConcurrentRuns),
		Criteria:  criteria,
		Logger:    logger,
	}, nil
}

// buildBackends assigns one detector backend per built-in stage type.
// Every detection stage replays fixture findings; text moderation runs
// live against Bedrock when configured, the lexicon otherwise.
func buildBackends(ctx context.Context, cfg *Config, logger *zerolog.Logger) (map[string]detector.Detector, error) {
	backends := make(map[string]detector.Detector)
	for _, stageType := range []string{
		stage.TypeFrameSampling,
		stage.TypeWindowMining,
		stage.TypeVisualObjects,
		stage.TypeVisualOpenVocab,
		stage.TypeViolenceVideo,
		stage.TypeViolencePose,
		stage.TypeAudioSpeech,
		stage.TypeVisualText,
		stage.TypeNSFWVisual,
	} {
		backends[stageType] = fixture.New(stageType)
	}

	switch cfg.ModerationProvider {
	case "bedrock":
		moderation, err := bedrockmod.NewModeration(ctx, cfg.AWSRegion, cfg.ModerationModelID, logger)
		if err != nil {
			return nil, fmt.Errorf("creating bedrock moderation: %w", err)
		}
		backends[stage.TypeTextModeration] = moderation
	case "lexicon":
		backends[stage.TypeTextModeration] = lexicon.New()
	default:
		return nil, fmt.Errorf("unknown moderation provider %q", cfg.ModerationProvider)
	}
	return backends, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
