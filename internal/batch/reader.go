// Package batch reads evaluation jobs from JSONL input, fans them out
// over a worker pool behind the admission gate, and writes results.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/models"
)

// InputRecord is one parsed line of the input file. A malformed line
// carries its parse error instead of a job.
type InputRecord struct {
	Job        models.EvaluationJob
	LineNumber int
	Error      error
}

type Reader struct {
	input  io.Reader
	logger *zerolog.Logger
}

func NewReader(input io.Reader, logger *zerolog.Logger) *Reader {
	return &Reader{input: input, logger: logger}
}

// ReadAll streams records line by line; blank lines are skipped and
// malformed lines are reported, not fatal.
func (r *Reader) ReadAll(ctx context.Context) <-chan InputRecord {
	out := make(chan InputRecord)

	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r.input)
		scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

		lineNumber := 0
		for scanner.Scan() {
			lineNumber++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			record := InputRecord{LineNumber: lineNumber}
			var job models.EvaluationJob
			if err := json.Unmarshal([]byte(line), &job); err != nil {
				record.Error = fmt.Errorf("line %d: %w", lineNumber, err)
			} else if job.MediaID == "" {
				record.Error = fmt.Errorf("line %d: media_id is required", lineNumber)
			} else {
				record.Job = job
			}

			select {
			case out <- record:
			case <-ctx.Done():
				r.logger.Warn().Int("line", lineNumber).Msg("input reading cancelled")
				return
			}
		}
		if err := scanner.Err(); err != nil {
			r.logger.Error().Err(err).Msg("failed to read input")
		}
	}()

	return out
}
