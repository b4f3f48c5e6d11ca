package progress

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStream publishes progress events to a Redis stream so external
// consumers can follow a run. Publishing is best-effort: failures are
// logged and the update is dropped.
type RedisStream struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zerolog.Logger
}

func NewRedisStream(client *redis.Client, stream string, logger *zerolog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		stream: stream,
		maxLen: 1000,
		logger: logger,
	}
}

func (r *RedisStream) Notify(stage, message string, percent int) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"stage":   stage,
			"message": message,
			"percent": strconv.Itoa(percent),
		},
	}).Err()
	if err != nil {
		r.logger.Warn().Err(err).Str("stream", r.stream).Msg("Failed to publish progress event")
	}
}
