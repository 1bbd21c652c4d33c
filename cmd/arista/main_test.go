package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"arista/internal/engine"
	"arista/internal/engine/enginetest"
	"arista/internal/history"
	"arista/internal/media/ffprobe"
	"arista/internal/profile"
	"arista/internal/services"
	"arista/internal/workflow"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	historyDB  string
	textfile   string
	factory    *enginetest.Factory
}

type fakeInspector struct{}

func (fakeInspector) Inspect(_ context.Context, src engine.Source) (engine.Source, ffprobe.MediaInfo, error) {
	return src, ffprobe.MediaInfo{
		FormatName: "matroska,webm",
		Duration:   90 * time.Second,
		Video: []ffprobe.VideoStream{{
			Codec: "h264", Width: 1280, Height: 720,
			Framerate:   profile.Fraction{Num: 24, Den: 1},
			PixelAspect: profile.Fraction{Num: 1, Den: 1},
			Language:    "eng",
		}},
		Audio: []ffprobe.AudioStream{{Codec: "ac3", SampleRate: 48000, Channels: 2, Language: "deu"}},
	}, nil
}

func setupCLITestEnv(t *testing.T, script func(engine.PassConfig) enginetest.Script) *cliTestEnv {
	t.Helper()
	t.Setenv("ARISTA_PRESET_DIR", "")

	base := t.TempDir()
	system := filepath.Join(base, "system-presets")
	if err := os.MkdirAll(system, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"computer.json", "ipod.json"} {
		data, err := os.ReadFile(filepath.Join("..", "..", "internal", "profile", "testdata", name))
		if err != nil {
			t.Fatalf("read fixture %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(system, name), data, 0o644); err != nil {
			t.Fatalf("write fixture %s: %v", name, err)
		}
	}

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		historyDB:  filepath.Join(base, "state", "history.db"),
		textfile:   filepath.Join(base, "metrics", "arista.prom"),
		factory:    enginetest.NewFactory(script),
	}
	content := fmt.Sprintf(`[paths]
preset_dirs = [%q]
system_preset_dir = %q
state_dir = %q
log_dir = %q

[workflow]
status_interval_ms = 10
cancel_check_interval_ms = 10

[metrics]
textfile = %q
`, filepath.Join(base, "presets"), system, filepath.Join(base, "state"), filepath.Join(base, "logs"), env.textfile)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(&overrides{factory: e.factory, inspector: fakeInspector{}, skipDeps: true})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath, "--quiet"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliTestEnv) input(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func TestTranscodeRunsEveryPassAndRecordsHistory(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	input := env.input(t, "movie.mkv")

	out, err := env.run(t, input)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 succeeded, 0 failed, 0 skipped") {
		t.Fatalf("summary missing from output:\n%s", out)
	}

	configs := env.factory.Configs()
	if len(configs) != 2 {
		t.Fatalf("expected 2 passes for the default preset, got %d", len(configs))
	}
	want := filepath.Join(env.baseDir, "movie-computer.mkv")
	if configs[0].Output != want {
		t.Fatalf("output = %q, want %q", configs[0].Output, want)
	}

	store, err := history.Open(env.historyDB)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()
	records, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 1 || records[0].Status != "succeeded" || records[0].CompletedPasses != 2 {
		t.Fatalf("unexpected history: %+v", records)
	}

	data, err := os.ReadFile(env.textfile)
	if err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), `arista_jobs_total{status="succeeded"} 1`) {
		t.Fatalf("metrics textfile missing job counter:\n%s", data)
	}
}

func TestMultipleInputsWriteIntoOutputDirectory(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	first := env.input(t, "a.mkv")
	second := env.input(t, "b.mkv")
	outDir := filepath.Join(env.baseDir, "out")

	if out, err := env.run(t, "-p", "H.264 Lossless", "-o", outDir, first, second); err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	configs := env.factory.Configs()
	if len(configs) != 2 {
		t.Fatalf("expected one pass per input, got %d", len(configs))
	}
	for i, name := range []string{"a-computer.mkv", "b-computer.mkv"} {
		if want := filepath.Join(outDir, name); configs[i].Output != want {
			t.Fatalf("job %d output = %q, want %q", i, configs[i].Output, want)
		}
	}
}

func TestNegativeCropExitsBeforeAnyPass(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	input := env.input(t, "movie.mkv")

	_, err := env.run(t, "--crop", "0:-4:0:0", input)
	if err == nil {
		t.Fatal("expected crop error")
	}
	if code := services.ExitCode(err); code != 2 {
		t.Fatalf("exit code = %d, want 2 (%v)", code, err)
	}
	if !strings.Contains(err.Error(), "-4") {
		t.Fatalf("error should name the offending value: %v", err)
	}
	if n := len(env.factory.Configs()); n != 0 {
		t.Fatalf("no pass should be configured, got %d", n)
	}
}

func TestUnknownDeviceAndPresetAreConfigurationErrors(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	input := env.input(t, "movie.mkv")

	for _, args := range [][]string{
		{"-d", "toaster", input},
		{"-p", "Nope", input},
	} {
		_, err := env.run(t, args...)
		if !services.IsConfiguration(err) {
			t.Fatalf("args %v: expected configuration error, got %v", args, err)
		}
	}
}

func TestFailedJobReturnsRuntimeError(t *testing.T) {
	boom := errors.New("encoder crashed")
	env := setupCLITestEnv(t, func(engine.PassConfig) enginetest.Script {
		return enginetest.Script{Outcome: enginetest.OutcomeError, Err: boom}
	})
	input := env.input(t, "movie.mkv")

	out, err := env.run(t, input)
	if err == nil {
		t.Fatalf("expected failure\n%s", out)
	}
	if code := services.ExitCode(err); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out, "0 succeeded, 1 failed") {
		t.Fatalf("summary missing from output:\n%s", out)
	}
}

func TestInfoListsDevicesAndDetailsOne(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, err := env.run(t, "--info")
	if err != nil {
		t.Fatalf("--info: %v", err)
	}
	for _, want := range []string{"computer", "ipod", "H.264 Lossless"} {
		if !strings.Contains(out, want) {
			t.Fatalf("--info output missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "info", "computer")
	if err != nil {
		t.Fatalf("info computer: %v", err)
	}
	if !strings.Contains(out, "H.264 (default)") || !strings.Contains(out, "libx264") {
		t.Fatalf("device detail missing presets:\n%s", out)
	}

	out, err = env.run(t, "info", "--versions")
	if err != nil {
		t.Fatalf("info --versions: %v", err)
	}
	if !strings.Contains(out, "computer, 1.2\n") {
		t.Fatalf("version info missing computer:\n%s", out)
	}
}

func TestSourceInfoShowsStreams(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	input := env.input(t, "movie.mkv")

	for _, args := range [][]string{{"source-info", input}, {"--source-info", input}} {
		out, err := env.run(t, args...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		for _, want := range []string{"1280x720", "ac3", "English", "German", "0:01:30"} {
			if !strings.Contains(out, want) {
				t.Fatalf("%v output missing %q:\n%s", args, want, out)
			}
		}
	}
}

func TestResetPresetsCopiesSystemFiles(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, err := env.run(t, "--reset-presets")
	if err != nil {
		t.Fatalf("--reset-presets: %v", err)
	}
	if !strings.Contains(out, "computer.json") {
		t.Fatalf("expected copied files in output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(env.baseDir, "presets", "ipod.json")); err != nil {
		t.Fatalf("ipod preset not copied: %v", err)
	}
}

func TestConfigInitRefusesToOverwrite(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	target := filepath.Join(env.baseDir, "new", "config.toml")

	if _, err := env.run(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	if !strings.Contains(string(data), "[engine]") {
		t.Fatalf("sample config missing engine section")
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init should refuse to overwrite")
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v", err)
	}
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t, nil)
	input := env.input(t, "movie.mkv")
	if out, err := env.run(t, input); err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}

	out, err := env.run(t, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "movie.mkv") || !strings.Contains(out, "2/2") {
		t.Fatalf("history output missing run:\n%s", out)
	}
}

func TestSkippedJobsMakeRunFail(t *testing.T) {
	cases := []struct {
		name    string
		summary workflow.Summary
		want    string
	}{
		{name: "clean", summary: workflow.Summary{Succeeded: 2}},
		{name: "cancelled final pass", summary: workflow.Summary{Succeeded: 1, Cancelled: 1}},
		{name: "failed", summary: workflow.Summary{Results: make([]workflow.Result, 2), Succeeded: 1, Failed: 1}, want: "1 of 2 jobs failed"},
		{name: "skipped", summary: workflow.Summary{Results: make([]workflow.Result, 3), Succeeded: 1, Cancelled: 1, Skipped: 2}, want: "2 of 3 jobs skipped"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := summaryError(tc.summary)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want %q", err, tc.want)
			}
			if code := services.ExitCode(err); code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
		})
	}
}
