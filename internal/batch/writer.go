package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/models"
)

// Writer emits one JSON result per line and keeps running tallies for
// the end-of-run summary.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	encoder *json.Encoder
	logger  *zerolog.Logger

	verdicts map[models.Verdict]int
	errors   int
}

func NewWriter(out io.Writer, logger *zerolog.Logger) *Writer {
	return &Writer{
		out:      out,
		encoder:  json.NewEncoder(out),
		logger:   logger,
		verdicts: make(map[models.Verdict]int),
	}
}

func (w *Writer) Write(record OutputRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if record.Err != "" {
		w.errors++
	} else {
		w.verdicts[record.Result.Verdict]++
	}
	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("writing result for %s: %w", record.MediaID, err)
	}
	return nil
}

// LogSummary reports the verdict distribution of the whole batch.
func (w *Writer) LogSummary() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger.Info().
		Int("safe", w.verdicts[models.VerdictSafe]).
		Int("caution", w.verdicts[models.VerdictCaution]).
		Int("unsafe", w.verdicts[models.VerdictUnsafe]).
		Int("needs_review", w.verdicts[models.VerdictNeedsReview]).
		Int("errors", w.errors).
		Msg("batch summary")
}
