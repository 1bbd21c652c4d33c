package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	draptolib "github.com/five82/drapto"

	"arista/internal/logging"
)

// EncodeFunc runs a drapto encode of input into outputDir.
type EncodeFunc func(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error

// LibraryEncode encodes with the drapto library in responsive mode.
func LibraryEncode(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error {
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return err
	}
	_, err = encoder.EncodeWithReporter(ctx, input, outputDir, rep)
	return err
}

// DraptoFactory configures adapters backed by the drapto encoder. Drapto picks
// its own codec settings and performs its own analysis, so only the final pass
// encodes; earlier passes complete immediately.
type DraptoFactory struct {
	encode EncodeFunc
	logger *slog.Logger
}

// NewDraptoFactory returns a factory using encode, or LibraryEncode when nil.
func NewDraptoFactory(encode EncodeFunc, logger *slog.Logger) *DraptoFactory {
	if encode == nil {
		encode = LibraryEncode
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DraptoFactory{encode: encode, logger: logger}
}

func (f *DraptoFactory) Configure(_ context.Context, cfg PassConfig) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Source.Kind != SourceFile {
		return nil, fmt.Errorf("%w: drapto only encodes files, got %s input", ErrStartFailed, cfg.Source.Kind)
	}
	return &draptoAdapter{
		cfg:    cfg,
		encode: f.encode,
		logger: f.logger.With(logging.String("engine", "drapto"), logging.Int(logging.FieldPass, cfg.Pass)),
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}, nil
}

type draptoAdapter struct {
	cfg    PassConfig
	encode EncodeFunc
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	stopping  bool
	aborted   bool
	percent   float64
	eta       time.Duration
	seen      bool
	lastError string

	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
}

func (a *draptoAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return fmt.Errorf("%w: adapter already %s", ErrStartFailed, a.state)
	}
	if !a.cfg.Final() {
		a.state = StateStopped
		a.events <- Event{Kind: EventEndOfStream}
		close(a.done)
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.state = StatePlaying
	go a.run(runCtx)
	return nil
}

func (a *draptoAdapter) run(ctx context.Context) {
	defer close(a.done)
	defer a.cancel()

	err := a.encodeTo(ctx)

	a.mu.Lock()
	stopping := a.stopping
	aborted := a.aborted
	var event *Event
	switch {
	case err == nil:
		a.state = StateStopped
		event = &Event{Kind: EventEndOfStream}
	case aborted && !stopping:
		a.state = StateStopped
		event = &Event{Kind: EventError, Err: fmt.Errorf("drapto encode aborted: %w", err)}
	default:
		a.state = StateError
		if a.lastError != "" {
			err = fmt.Errorf("%w: %s", err, a.lastError)
		}
		event = &Event{Kind: EventError, Err: fmt.Errorf("drapto: %w", err)}
	}
	a.mu.Unlock()

	if event != nil && !stopping {
		a.events <- *event
	}
}

// encodeTo runs drapto into a staging directory next to the output and moves
// the result into place.
func (a *draptoAdapter) encodeTo(ctx context.Context) error {
	outDir := filepath.Dir(a.cfg.Output)
	staging, err := os.MkdirTemp(outDir, ".arista-drapto-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := a.encode(ctx, a.cfg.Source.Path, staging, &draptoReporter{adapter: a}); err != nil {
		return err
	}
	base := filepath.Base(a.cfg.Source.Path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	produced := filepath.Join(staging, stem+".mkv")
	if err := os.Rename(produced, a.cfg.Output); err != nil {
		return fmt.Errorf("move drapto output: %w", err)
	}
	return nil
}

func (a *draptoAdapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *draptoAdapter) Status() (Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateIdle || !a.seen {
		return Status{}, ErrStatusUnavailable
	}
	if a.percent <= 0 {
		return Status{}, nil
	}
	return Status{Percent: a.percent, Remaining: a.eta, Known: a.eta > 0 || a.percent >= 1}, nil
}

// RequestGracefulStop cancels the encode. Drapto cannot finalize a partial
// output, so the pass ends with an error event.
func (a *draptoAdapter) RequestGracefulStop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StatePlaying || a.cancel == nil {
		return ErrNotRunning
	}
	a.aborted = true
	a.cancel()
	return nil
}

func (a *draptoAdapter) Stop() error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopping = true
		cancel := a.cancel
		if a.state == StateIdle {
			a.state = StateStopped
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		<-a.done
	})
	return nil
}

func (a *draptoAdapter) Events() <-chan Event { return a.events }

func (a *draptoAdapter) observe(percent float64, eta time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = true
	fraction := min(max(percent/100, 0), 1)
	if fraction >= a.percent {
		a.percent = fraction
	}
	if eta > 0 {
		a.eta = eta
	}
}

func (a *draptoAdapter) recordError(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = msg
}

// draptoReporter feeds drapto progress callbacks into the adapter.
type draptoReporter struct {
	adapter *draptoAdapter
}

func (r *draptoReporter) Hardware(s draptolib.HardwareSummary) {
	r.adapter.logger.Debug("drapto hardware", logging.Any("host", s.Hostname))
}

func (r *draptoReporter) Initialization(s draptolib.InitializationSummary) {
	r.adapter.logger.Debug("drapto initialized",
		logging.Any("input", s.InputFile),
		logging.Any("resolution", s.Resolution),
		logging.Any("dynamic_range", s.DynamicRange),
	)
}

func (r *draptoReporter) StageProgress(s draptolib.StageProgress) {
	var eta time.Duration
	if s.ETA != nil {
		eta = *s.ETA
	}
	r.adapter.logger.Debug("drapto stage", logging.Any(logging.FieldStage, s.Stage), logging.Any("message", s.Message))
	if s.Stage == "encoding" {
		r.adapter.observe(float64(s.Percent), eta)
	}
}

func (r *draptoReporter) CropResult(s draptolib.CropSummary) {
	r.adapter.logger.Debug("drapto crop", logging.Any("crop", s.Crop), logging.Any("required", s.Required))
}

func (r *draptoReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.adapter.logger.Debug("drapto encoding config",
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
	)
}

func (r *draptoReporter) EncodingStarted(totalFrames uint64) {
	r.adapter.observe(0, 0)
	r.adapter.logger.Debug("drapto encoding started", logging.Int64("total_frames", int64(totalFrames)))
}

func (r *draptoReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.adapter.observe(float64(s.Percent), s.ETA)
}

func (r *draptoReporter) ValidationComplete(s draptolib.ValidationSummary) {
	r.adapter.logger.Debug("drapto validation", logging.Any("passed", s.Passed))
}

func (r *draptoReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.adapter.observe(100, 0)
	r.adapter.logger.Debug("drapto encoding complete", logging.Any("output", s.OutputFile))
}

func (r *draptoReporter) Warning(message string) {
	r.adapter.logger.Warn("drapto warning", logging.String("message", message))
}

func (r *draptoReporter) Error(e draptolib.ReporterError) {
	msg := strings.TrimSpace(fmt.Sprintf("%v: %v", e.Title, e.Message))
	r.adapter.recordError(msg)
	r.adapter.logger.Debug("drapto error", logging.String("message", msg), logging.Any(logging.FieldErrorHint, e.Suggestion))
}

func (r *draptoReporter) OperationComplete(message string) {
	r.adapter.logger.Debug("drapto operation complete", logging.String("message", message))
}

func (r *draptoReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *draptoReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *draptoReporter) BatchComplete(draptolib.BatchSummary) {}

var (
	_ draptolib.Reporter = (*draptoReporter)(nil)
	_ Factory            = (*DraptoFactory)(nil)
	_ Adapter            = (*draptoAdapter)(nil)
)
