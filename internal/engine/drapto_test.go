package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	draptolib "github.com/five82/drapto"
	"go.uber.org/goleak"
)

func draptoPass(t *testing.T, pass, count int) PassConfig {
	t.Helper()
	dir := t.TempDir()
	return PassConfig{
		Source:      Source{Kind: SourceFile, Path: filepath.Join(dir, "movie.mkv")},
		Output:      filepath.Join(dir, "movie-computer.mkv"),
		Pass:        pass,
		PassCount:   count,
		Video:       &VideoParams{Codec: "libsvtav1"},
		StatsPrefix: filepath.Join(dir, "stats"),
	}
}

func TestDraptoAdapterEncodesAndMovesOutput(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	progressed := make(chan struct{})
	release := make(chan struct{})
	encode := func(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error {
		rep.EncodingStarted(100)
		rep.EncodingProgress(draptolib.ProgressSnapshot{Percent: 40, ETA: 30 * time.Second})
		close(progressed)
		<-release
		return os.WriteFile(filepath.Join(outputDir, "movie.mkv"), []byte("av1"), 0o644)
	}
	cfg := draptoPass(t, 0, 1)
	adapter, err := NewDraptoFactory(encode, nil).Configure(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer adapter.Stop()

	<-progressed
	status, err := adapter.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Percent != 0.4 || status.Remaining != 30*time.Second || !status.Known {
		t.Fatalf("unexpected status %+v", status)
	}
	close(release)

	if ev := waitEvent(t, adapter); ev.Kind != EventEndOfStream {
		t.Fatalf("expected end-of-stream, got %v (%v)", ev.Kind, ev.Err)
	}
	data, err := os.ReadFile(cfg.Output)
	if err != nil || string(data) != "av1" {
		t.Fatalf("expected moved output, got %q err=%v", data, err)
	}
}

func TestDraptoAdapterNonFinalPassCompletesImmediately(t *testing.T) {
	called := false
	encode := func(context.Context, string, string, draptolib.Reporter) error {
		called = true
		return nil
	}
	adapter, err := NewDraptoFactory(encode, nil).Configure(context.Background(), draptoPass(t, 0, 2))
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ev := waitEvent(t, adapter); ev.Kind != EventEndOfStream {
		t.Fatalf("expected end-of-stream, got %v", ev.Kind)
	}
	_ = adapter.Stop()
	if called {
		t.Fatal("non-final pass must not encode")
	}
}

func TestDraptoAdapterGracefulStopAborts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	encode := func(ctx context.Context, _, _ string, _ draptolib.Reporter) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	adapter, err := NewDraptoFactory(encode, nil).Configure(context.Background(), draptoPass(t, 0, 1))
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := adapter.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer adapter.Stop()
	<-started
	if err := adapter.RequestGracefulStop(); err != nil {
		t.Fatalf("RequestGracefulStop: %v", err)
	}
	ev := waitEvent(t, adapter)
	if ev.Kind != EventError || !errors.Is(ev.Err, context.Canceled) {
		t.Fatalf("expected aborted error event, got %v (%v)", ev.Kind, ev.Err)
	}
}

func TestDraptoRejectsDevices(t *testing.T) {
	cfg := draptoPass(t, 0, 1)
	cfg.Source = Source{Kind: SourceDVD, Path: "/dev/sr0"}
	if _, err := NewDraptoFactory(nil, nil).Configure(context.Background(), cfg); !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
}
