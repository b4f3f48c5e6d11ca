package batch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/evaluator"
	"github.com/vmorozov/mediaguard/internal/gate"
	"github.com/vmorozov/mediaguard/internal/models"
)

// OutputRecord pairs a job with its evaluation result. Err is set only
// for configuration errors; a run that started always has a Result.
type OutputRecord struct {
	JobID   string              `json:"job_id"`
	MediaID string              `json:"media_id"`
	Result  models.FusionResult `json:"result"`
	Err     string              `json:"error,omitempty"`
}

// Processor evaluates jobs concurrently. The admission gate bounds how
// many heavy runs are in flight at once, independent of worker count.
type Processor struct {
	eval    *evaluator.Evaluator
	admit   *gate.Gate
	workers int
	logger  *zerolog.Logger
}

func NewProcessor(eval *evaluator.Evaluator, admit *gate.Gate, workers int, logger *zerolog.Logger) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{eval: eval, admit: admit, workers: workers, logger: logger}
}

func (p *Processor) Process(ctx context.Context, jobs []models.EvaluationJob) <-chan OutputRecord {
	in := make(chan models.EvaluationJob)
	out := make(chan OutputRecord, p.workers)

	var wg sync.WaitGroup
	for range p.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range in {
				out <- p.processOne(ctx, job)
			}
		}()
	}

	go func() {
		defer close(in)
		for _, job := range jobs {
			select {
			case in <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (p *Processor) processOne(ctx context.Context, job models.EvaluationJob) OutputRecord {
	record := OutputRecord{JobID: job.JobID, MediaID: job.MediaID}

	if err := p.admit.Acquire(ctx); err != nil {
		record.Err = err.Error()
		return record
	}
	defer p.admit.Release()

	result, err := p.eval.Evaluate(ctx, job)
	if err != nil {
		p.logger.Error().Err(err).Str("media_id", job.MediaID).Msg("evaluation rejected")
		record.Err = err.Error()
		return record
	}
	record.Result = result
	return record
}
