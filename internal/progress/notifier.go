// Package progress carries stage-boundary progress updates from the
// pipeline runner to a transport. Transports may drop or coalesce
// updates without affecting run correctness.
package progress

import "github.com/rs/zerolog"

// Event is one progress update. Percent is monotonically non-decreasing
// within a run.
type Event struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// Notifier receives progress updates. Implementations must be safe to
// call from multiple phase-concurrent stages and must never block the
// runner on a slow consumer.
type Notifier interface {
	Notify(stage, message string, percent int)
}

// Nop discards all updates.
type Nop struct{}

func (Nop) Notify(string, string, int) {}

// Log writes progress updates to the structured log.
type Log struct {
	Logger *zerolog.Logger
}

func (l Log) Notify(stage, message string, percent int) {
	l.Logger.Info().
		Str("stage", stage).
		Int("percent", percent).
		Msg(message)
}
