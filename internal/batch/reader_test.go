package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vmorozov/mediaguard/internal/models"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestReader_InvalidFile(t *testing.T) {
	file := strings.NewReader("invalid file content")

	reader := NewReader(file, newTestLogger())
	ch := reader.ReadAll(context.Background())

	for record := range ch {
		if record.Error == nil {
			t.Errorf("expected parse error for invalid JSON, but got none")
		}
	}
}

func TestReader_ValidFile(t *testing.T) {
	inputFile := `{"job_id":"j1","media_id":"m1","media_type":"video","media_path":"/tmp/a.mp4"}
{"job_id":"j2","media_id":"m2","media_type":"image","media_path":"/tmp/b.png"}

{"job_id":"j3","media_id":"m3","media_type":"video","media_path":"/tmp/c.mp4"}`

	reader := NewReader(strings.NewReader(inputFile), newTestLogger())
	ch := reader.ReadAll(context.Background())

	count := 0
	for record := range ch {
		count++
		if record.Error != nil {
			t.Errorf("error reading job record: %s", record.Error)
		}
	}
	if count != 3 {
		t.Errorf("expected 3 jobs with the blank line skipped, got %d", count)
	}
}

func TestReader_MissingMediaID(t *testing.T) {
	reader := NewReader(strings.NewReader(`{"job_id":"j1","media_path":"/tmp/a.mp4"}`), newTestLogger())
	ch := reader.ReadAll(context.Background())

	record := <-ch
	if record.Error == nil {
		t.Fatal("expected error for missing media_id")
	}
	if !strings.Contains(record.Error.Error(), "media_id") {
		t.Errorf("error should name the missing field, got %s", record.Error)
	}
}

func TestReader_ContextCancellation(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, `{"job_id":"j","media_id":"m","media_type":"video","media_path":"/tmp/a.mp4"}`)
	}
	file := strings.NewReader(strings.Join(lines, "\n"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := NewReader(file, newTestLogger())

	ch := reader.ReadAll(ctx)
	count := 0
	for range ch {
		count++
		if count == 5 {
			cancel()
			break
		}
	}

	if count >= 100 {
		t.Errorf("expected early cancellation, but read all records")
	}
}

func TestWriterTallies(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriter(&buf, newTestLogger())

	records := []OutputRecord{
		{JobID: "j1", MediaID: "m1", Result: models.FusionResult{Verdict: models.VerdictSafe, Confidence: 1.0}},
		{JobID: "j2", MediaID: "m2", Result: models.FusionResult{Verdict: models.VerdictUnsafe, Confidence: 0.9}},
		{JobID: "j3", MediaID: "m3", Err: "evaluation rejected"},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	writer.LogSummary()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected one JSON line per record, got %d", len(lines))
	}
	var decoded OutputRecord
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("output line is not valid JSON: %v", err)
	}
	if decoded.Result.Verdict != models.VerdictUnsafe {
		t.Errorf("got %s, want unsafe", decoded.Result.Verdict)
	}
}
