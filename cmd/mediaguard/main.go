package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vmorozov/mediaguard/internal/batch"
	"github.com/vmorozov/mediaguard/internal/models"
	"github.com/vmorozov/mediaguard/internal/setup"
)

func main() {
	startTime := time.Now()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	input := flag.String("input", "", "Input JSONL file, or '-' for stdin")
	output := flag.String("output", "", "Output JSONL file, stdout when empty")
	workers := flag.Int("workers", 4, "Concurrent evaluation workers")
	continueOnError := flag.Bool("continue-on-error", true, "Continue on write failures")
	dryRun := flag.Bool("dry-run", false, "Validate input without evaluating")

	flag.Parse()

	if *input == "" {
		log.Fatal().Msg("required flag -input not provided")
	}

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	ctx, cancel := setupGracefulShutdown()
	defer cancel()

	cfg := setup.LoadConfig()

	deps, err := setup.Wire(ctx, cfg, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	var inputFile io.Reader
	if *input == "-" {
		inputFile = os.Stdin
		log.Info().Msg("Reading from stdin")
	} else {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatal().Err(err).Str("file", *input).Msg("Failed to open input file")
		}
		defer f.Close()
		inputFile = f
		log.Info().Str("file", *input).Msg("Reading input file")
	}

	reader := batch.NewReader(inputFile, deps.Logger)

	var jobs []models.EvaluationJob
	parseErrors := 0
	for record := range reader.ReadAll(ctx) {
		if record.Error != nil {
			log.Error().Int("line", record.LineNumber).Err(record.Error).Msg("Invalid record")
			parseErrors++
			continue
		}
		job := record.Job
		if len(job.Criteria) == 0 {
			job.Criteria = deps.Criteria
		}
		jobs = append(jobs, job)
	}

	log.Info().Int("jobs", len(jobs)).Int("errors", parseErrors).Msg("Input file parsed")

	if *dryRun {
		if parseErrors > 0 {
			log.Fatal().Int("errors", parseErrors).Msg("Validation failed")
		}
		log.Info().Msg("Validation successful")
		return
	}

	var outputFile io.Writer
	if *output == "" {
		outputFile = os.Stdout
		log.Info().Msg("Writing to stdout")
	} else {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatal().Err(err).Str("file", *output).Msg("Failed to create output file")
		}
		defer f.Close()
		outputFile = f
		log.Info().Str("file", *output).Msg("Writing to output file")
	}

	writer := batch.NewWriter(outputFile, deps.Logger)

	processor := batch.NewProcessor(deps.Evaluator, deps.Gate, *workers, deps.Logger)
	results := processor.Process(ctx, jobs)

	writeErrors := 0
	for result := range results {
		if err := writer.Write(result); err != nil {
			log.Error().Err(err).Str("media_id", result.MediaID).Msg("Failed to write result")
			writeErrors++
			if !*continueOnError {
				log.Fatal().Msg("Stopping due to write error")
			}
		}
	}

	writer.LogSummary()

	log.Info().
		Int("write_errors", writeErrors).
		Dur("duration", time.Since(startTime)).
		Msg("Batch evaluation complete")
}

func setupGracefulShutdown() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Warn().Msg("Received interrupt signal, finishing current work...")
		cancel()
	}()

	return ctx, cancel
}
