package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arista/internal/config"
	"arista/internal/logging"
	"arista/internal/services"
)

func TestConsoleLoggerWritesComponentAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "workflow").Info("job completed",
		logging.String("input", "my movie.mkv"),
		logging.Int(logging.FieldPass, 1),
	)
	logger.Debug("hidden")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"INFO", "workflow: job completed", `input="my movie.mkv"`, "pass=1"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line should be filtered at info level: %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level: %q", line)
	}
}

func TestConsoleLoggerPrefixesJobAndPass(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "workflow").Info("pass complete",
		logging.String(logging.FieldJobID, "1a2b3c4d-5e6f-4a5b-8c9d-0e1f2a3b4c5d"),
		logging.Int(logging.FieldPass, 1),
		logging.Percent(0.4567),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	for _, fragment := range []string{"workflow [1a2b3c4d#2]: pass complete", "percent=45.7"} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "job_id=") || strings.Contains(line, "pass=") {
		t.Fatalf("job and pass should only appear in the prefix: %q", line)
	}
}

func TestJSONLoggerShape(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("stalled", logging.String(logging.FieldEventType, "progress_stalled"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &payload); err != nil {
		t.Fatalf("decode json log: %v (%s)", err, content)
	}
	if payload["level"] != "warn" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key: %v", payload)
	}
	if payload[logging.FieldEventType] != "progress_stalled" {
		t.Fatalf("unexpected event type: %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesFileCopy(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.File = true

	logger, err := logging.NewFromConfig(&cfg, "error")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Debug("debug goes to file only")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "arista.log"))
	if err != nil {
		t.Fatalf("read file log: %v", err)
	}
	if !strings.Contains(string(content), "debug goes to file only") {
		t.Fatalf("expected debug line in file log, got %q", content)
	}
}

func TestWithContextAddsJobFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithJobID(context.Background(), "job-7")
	ctx = services.WithPass(ctx, 2)
	logging.WithContext(ctx, base).Info("tick")

	out := buf.String()
	if !strings.Contains(out, `"job_id":"job-7"`) || !strings.Contains(out, `"pass":2`) {
		t.Fatalf("expected job fields in %q", out)
	}
}

func TestTeeLoggerDuplicates(t *testing.T) {
	var first, second bytes.Buffer
	base := slog.New(slog.NewTextHandler(&first, nil))
	logger := logging.TeeLogger(base, slog.NewTextHandler(&second, nil))
	logger.Info("both")
	if !strings.Contains(first.String(), "both") || !strings.Contains(second.String(), "both") {
		t.Fatalf("expected both handlers to receive record: %q / %q", first.String(), second.String())
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logging.WarnWithContext(logger, "status unavailable", "status_unavailable")
	out := buf.String()
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if !strings.Contains(out, key) {
			t.Fatalf("expected %s in %q", key, out)
		}
	}
}
