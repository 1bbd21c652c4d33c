package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"arista/internal/config"
	"arista/internal/deps"
	"arista/internal/engine"
	"arista/internal/history"
	"arista/internal/job"
	"arista/internal/logging"
	"arista/internal/metrics"
	"arista/internal/notifications"
	"arista/internal/outputpath"
	"arista/internal/profile"
	"arista/internal/services"
	"arista/internal/workflow"
)

func runTranscode(cmd *cobra.Command, cc *commandContext, flags transcodeFlags, inputs []string) error {
	ctx := cmd.Context()
	cfg, catalog, logger, err := cc.loadCatalog(ctx)
	if err != nil {
		return err
	}
	device, preset, err := resolveTarget(catalog, flags.device, flags.preset)
	if err != nil {
		return err
	}
	var crop profile.Crop
	if strings.TrimSpace(flags.crop) != "" {
		if crop, err = job.ParseCrop(flags.crop); err != nil {
			return err
		}
	}
	if err := job.ValidateCrop(crop); err != nil {
		return err
	}
	if cc.overrides == nil || !cc.overrides.skipDeps {
		reqs := deps.Requirements(cfg.Engine.Backend, cfg.Engine.FFmpegBinary, cfg.Engine.FFprobeBinary)
		if err := deps.Verify(deps.CheckBinaries(reqs)); err != nil {
			return err
		}
	}
	var deinterlace *bool
	if cmd.Flags().Changed("deinterlace") {
		deinterlace = &flags.deinterlace
	}

	token := workflow.NewCancelToken()
	m, closeRun, err := newRunManager(cfg, cc.overrides, token, logger)
	if err != nil {
		return err
	}
	defer closeRun()

	reserved := outputpath.Reserved{}
	for _, input := range inputs {
		output, err := resolveOutput(flags.output, len(inputs), input, preset, device.ID, reserved)
		if err != nil {
			return err
		}
		if _, err := m.Submit(job.Request{
			Input:            input,
			Device:           device,
			Preset:           preset,
			Output:           output,
			Subtitle:         flags.subtitle,
			SubtitleEncoding: flags.subtitleEncoding,
			RenderSSA:        flags.ssa,
			Font:             flags.font,
			Deinterlace:      deinterlace,
			Crop:             crop,
		}); err != nil {
			return err
		}
	}

	view := newProgressView(cmd.ErrOrStderr(), cc.levelOverride() != "warn")
	view.attach(m)
	notifications.Subscribe(ctx, m, notifications.NewService(cfg), logger)

	stopSignals := workflow.InterruptHandler(token, logger)
	defer stopSignals()

	summary, runErr := m.Run(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
	if runErr != nil {
		return runErr
	}
	return summaryError(summary)
}

// summaryError turns an incomplete run into a runtime error. Jobs skipped
// after an interrupt count against the run.
func summaryError(summary workflow.Summary) error {
	switch {
	case summary.OK():
		return nil
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d jobs failed", summary.Failed, summary.Total())
	default:
		return fmt.Errorf("run interrupted: %d of %d jobs skipped", summary.Skipped, summary.Total())
	}
}

func resolveTarget(catalog *profile.Catalog, deviceID, presetName string) (*profile.Device, *profile.Preset, error) {
	device, err := catalog.LookupDevice(deviceID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "presets", "device", "", err)
	}
	preset, err := device.ResolvePreset(presetName)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrConfiguration, "presets", "preset", "", err)
	}
	return device, preset, nil
}

// resolveOutput uses --output as the file for a single input and as the
// target directory for several. Without it names are generated next to each
// input.
func resolveOutput(flag string, count int, input string, preset *profile.Preset, deviceID string, reserved outputpath.Reserved) (string, error) {
	flag = strings.TrimSpace(flag)
	var out string
	switch {
	case flag != "" && count == 1:
		out = flag
	case flag != "":
		if info, err := os.Stat(flag); err == nil && !info.IsDir() {
			return "", services.Wrap(services.ErrValidation, "output", "resolve",
				fmt.Sprintf("%s must be a directory when encoding several inputs", flag), nil)
		}
		if err := os.MkdirAll(flag, 0o755); err != nil {
			return "", services.Wrap(services.ErrConfiguration, "output", "resolve", "", err)
		}
		out = outputpath.GenerateIn(flag, input, preset.Extension, deviceID, reserved)
	default:
		out = outputpath.Generate(input, preset.Extension, deviceID, reserved)
	}
	reserved.Add(out)
	return out, nil
}

// newRunManager wires the engine, history, metrics and logging into a
// manager. The returned function flushes metrics and closes the history
// store.
func newRunManager(cfg *config.Config, ov *overrides, token *workflow.CancelToken, logger *slog.Logger) (*workflow.Manager, func(), error) {
	factory := buildFactory(cfg, logger)
	if ov != nil && ov.factory != nil {
		factory = ov.factory
	}
	inspector := sourceInspector(cfg, ov)

	var recorder workflow.Recorder
	var store *history.Store
	if cfg.History.Enabled {
		opened, err := history.Open(cfg.HistoryPath())
		if err != nil {
			logging.WarnWithContext(logger, "job history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run will not be recorded"),
				logging.String(logging.FieldErrorHint, "check "+cfg.HistoryPath()),
			)
		} else {
			store = opened
			recorder = store
		}
	}
	collectors := metrics.New()

	threads := cfg.Engine.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	m, err := workflow.NewManager(workflow.Options{
		Factory:        factory,
		Inspector:      inspector,
		Plan:           job.PlanOptions{Threads: threads, StatsDir: cfg.Paths.StateDir},
		StatusInterval: cfg.StatusInterval(),
		CancelInterval: cfg.CancelCheckInterval(),
		StallTimeout:   cfg.StallTimeout(),
		Token:          token,
		Recorder:       recorder,
		Metrics:        collectors,
		Logger:         logger,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}
	closeRun := func() {
		if err := collectors.WriteTextfile(cfg.Metrics.Textfile, time.Now()); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "node_exporter will show stale values"),
			)
		}
		if store != nil {
			_ = store.Close()
		}
	}
	return m, closeRun, nil
}

func buildFactory(cfg *config.Config, logger *slog.Logger) engine.Factory {
	if cfg.Engine.Backend == "drapto" {
		return engine.NewDraptoFactory(nil, logger)
	}
	return engine.NewFFmpegFactory(engine.FFmpegOptions{
		Binary:    cfg.Engine.FFmpegBinary,
		StopGrace: cfg.StopGrace(),
		Logger:    logger,
	})
}

func sourceInspector(cfg *config.Config, ov *overrides) workflow.Inspector {
	if ov != nil && ov.inspector != nil {
		return ov.inspector
	}
	return job.Inspector{
		FFprobe:        cfg.Engine.FFprobeBinary,
		Timeout:        cfg.ProbeTimeout(),
		TitleScanLimit: cfg.Engine.DVDTitleScanLimit,
	}
}

func renderSummary(summary workflow.Summary) string {
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		rows = append(rows, []string{
			filepath.Base(r.Input),
			r.Output,
			r.Preset,
			resultStatus(r),
			formatElapsed(r.Elapsed),
		})
	}
	table := renderTable(
		[]string{"Input", "Output", "Preset", "Status", "Elapsed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
	return fmt.Sprintf("%s\n%d succeeded, %d failed, %d skipped in %s",
		table, summary.Succeeded, summary.Failed, summary.Skipped, formatElapsed(summary.Elapsed))
}

func resultStatus(r workflow.Result) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Status == job.StatusSucceeded && r.Cancelled:
		return "succeeded (cancelled)"
	case r.Status == job.StatusSucceeded:
		return "succeeded"
	case r.Err != nil:
		return "failed: " + shortError(r.Err)
	default:
		return r.Status.String()
	}
}

func shortError(err error) string {
	msg := err.Error()
	if len(msg) > 60 {
		msg = msg[:57] + "..."
	}
	return msg
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
