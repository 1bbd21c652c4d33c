package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"arista/internal/logging"
)

const (
	defaultStopGrace = 5 * time.Second
	stderrTailLines  = 20
)

// FFmpegOptions configures the ffmpeg backend.
type FFmpegOptions struct {
	Binary    string
	StopGrace time.Duration
	Logger    *slog.Logger
}

// FFmpegFactory configures ffmpeg adapters.
type FFmpegFactory struct {
	opts FFmpegOptions
}

// NewFFmpegFactory returns a factory for the ffmpeg backend.
func NewFFmpegFactory(opts FFmpegOptions) *FFmpegFactory {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = defaultStopGrace
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &FFmpegFactory{opts: opts}
}

// Configure builds the command line for cfg. Malformed configurations fail
// with ErrStartFailed.
func (f *FFmpegFactory) Configure(_ context.Context, cfg PassConfig) (Adapter, error) {
	args, err := BuildFFmpegArgs(cfg)
	if err != nil {
		return nil, err
	}
	return &ffmpegAdapter{
		binary:   f.opts.Binary,
		args:     args,
		grace:    f.opts.StopGrace,
		duration: cfg.Duration,
		logger:   f.opts.Logger.With(logging.String("engine", "ffmpeg"), logging.Int(logging.FieldPass, cfg.Pass)),
		events:   make(chan Event, 1),
		done:     make(chan struct{}),
		stderr:   newTailBuffer(stderrTailLines),
	}, nil
}

type ffmpegAdapter struct {
	binary   string
	args     []string
	grace    time.Duration
	duration time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	startedAt time.Time
	stopping  bool
	graceful  bool

	progress progressTracker
	stderr   *tailBuffer
	events   chan Event
	done     chan struct{}
	stopOnce sync.Once
}

// Args returns the command line, without the binary.
func (a *ffmpegAdapter) Args() []string { return append([]string(nil), a.args...) }

func (a *ffmpegAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return fmt.Errorf("%w: adapter already %s", ErrStartFailed, a.state)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	cmd := exec.Command(a.binary, a.args...)
	setProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin pipe: %w", ErrStartFailed, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %w", ErrStartFailed, err)
	}
	cmd.Stderr = a.stderr
	a.logger.Debug("starting ffmpeg", logging.String("command", a.binary+" "+strings.Join(a.args, " ")))
	if err := cmd.Start(); err != nil {
		a.state = StateError
		close(a.done)
		return fmt.Errorf("%w: %w", ErrStartFailed, err)
	}
	a.cmd = cmd
	a.stdin = stdin
	a.startedAt = time.Now()
	a.state = StatePlaying
	go a.wait(stdout)
	return nil
}

func (a *ffmpegAdapter) wait(stdout io.Reader) {
	a.progress.consume(stdout)
	err := a.cmd.Wait()

	a.mu.Lock()
	stopping := a.stopping
	graceful := a.graceful
	var event *Event
	switch {
	case err == nil:
		a.state = StateStopped
		if !stopping {
			event = &Event{Kind: EventEndOfStream}
		}
	case stopping && !graceful:
		a.state = StateStopped
	default:
		a.state = StateError
		if !stopping {
			event = &Event{Kind: EventError, Err: a.describeFailure(err)}
		}
	}
	a.mu.Unlock()

	if event != nil {
		a.events <- *event
	}
	close(a.done)
}

func (a *ffmpegAdapter) describeFailure(err error) error {
	if tail := a.stderr.String(); tail != "" {
		return fmt.Errorf("ffmpeg: %w: %s", err, tail)
	}
	return fmt.Errorf("ffmpeg: %w", err)
}

func (a *ffmpegAdapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *ffmpegAdapter) Status() (Status, error) {
	a.mu.Lock()
	started := a.startedAt
	state := a.state
	a.mu.Unlock()
	if state == StateIdle {
		return Status{}, ErrStatusUnavailable
	}
	position, seen, ended := a.progress.snapshot()
	if !seen {
		return Status{}, ErrStatusUnavailable
	}
	if ended {
		return Status{Percent: 1, Known: true}, nil
	}
	if a.duration <= 0 || position <= 0 {
		return Status{}, nil
	}
	percent := min(float64(position)/float64(a.duration), 1)
	remaining, known := EstimateRemaining(percent, time.Since(started))
	return Status{Percent: percent, Remaining: remaining, Known: known}, nil
}

// RequestGracefulStop sends ffmpeg's quit key. ffmpeg then flushes encoders,
// finalizes the container and exits cleanly, which surfaces as end-of-stream.
func (a *ffmpegAdapter) RequestGracefulStop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StatePlaying || a.stdin == nil {
		return ErrNotRunning
	}
	if a.graceful {
		return nil
	}
	if _, err := io.WriteString(a.stdin, "q"); err != nil {
		return fmt.Errorf("send quit to ffmpeg: %w", err)
	}
	a.graceful = true
	a.logger.Debug("requested graceful ffmpeg stop")
	return nil
}

func (a *ffmpegAdapter) Stop() error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopping = true
		a.graceful = false
		cmd := a.cmd
		stdin := a.stdin
		if cmd == nil && a.state == StateIdle {
			a.state = StateStopped
			a.mu.Unlock()
			return
		}
		a.mu.Unlock()
		if stdin != nil {
			_ = stdin.Close()
		}
		select {
		case <-a.done:
			return
		default:
		}
		if cmd != nil && cmd.Process != nil {
			a.logger.Debug("terminating ffmpeg process group", logging.Int("pid", cmd.Process.Pid))
			terminateGroup(cmd.Process.Pid, a.done, a.grace)
		}
		<-a.done
	})
	return nil
}

func (a *ffmpegAdapter) Events() <-chan Event { return a.events }

var (
	_ Factory = (*FFmpegFactory)(nil)
	_ Adapter = (*ffmpegAdapter)(nil)
)

// IsStartFailure reports whether err came from adapter construction or launch.
func IsStartFailure(err error) bool { return errors.Is(err, ErrStartFailed) }
