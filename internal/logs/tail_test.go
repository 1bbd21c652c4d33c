package logs_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"arista/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arista.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\nd\n")

	lines, offset, err := logs.Last(path, 3)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if !slices.Equal(lines, []string{"b", "c", "d"}) {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 8 {
		t.Fatalf("offset = %d, want 8", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 4 || lines[0] != "a" {
		t.Fatalf("short file should return every line: %#v", lines)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %v %d %v", lines, offset, err)
	}
}

func TestFollowDeliversAppendedLines(t *testing.T) {
	defer goleak.VerifyNone(t)
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var (
		mu    sync.Mutex
		lines []string
		done  = make(chan error, 1)
	)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\npartial"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		got := slices.Clone(lines)
		mu.Unlock()
		if len(got) > 0 {
			if !slices.Equal(got, []string{"later"}) {
				t.Fatalf("unexpected lines: %#v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("follow did not deliver the appended line")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
}

func TestFilterMatchesJobAndLevel(t *testing.T) {
	info := `{"level":"INFO","msg":"pass started","job_id":"4f1c2a"}`
	warn := `{"level":"WARN","msg":"progress stalled","job_id":"9b0e11"}`

	cases := []struct {
		name   string
		filter logs.Filter
		line   string
		want   bool
	}{
		{"empty passes text", logs.Filter{}, "plain text", true},
		{"job prefix", logs.Filter{JobID: "4f1"}, info, true},
		{"other job", logs.Filter{JobID: "4f1"}, warn, false},
		{"level below", logs.Filter{MinLevel: slog.LevelWarn, Levelled: true}, info, false},
		{"level at", logs.Filter{MinLevel: slog.LevelWarn, Levelled: true}, warn, true},
		{"text with filter", logs.Filter{JobID: "4f1"}, "plain text", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Match(tc.line); got != tc.want {
				t.Fatalf("Match = %v, want %v", got, tc.want)
			}
		})
	}
}
