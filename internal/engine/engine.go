package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStartFailed reports a pipeline that could not be started, usually
	// because of a malformed configuration or a missing binary.
	ErrStartFailed = errors.New("engine start failed")
	// ErrStatusUnavailable is returned by Status until the pipeline has
	// reported a position.
	ErrStatusUnavailable = errors.New("engine status unavailable")
	// ErrNotRunning is returned when an operation needs a playing pipeline.
	ErrNotRunning = errors.New("engine not running")
)

// State is the coarse pipeline state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StateError
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the pipeline has finished.
func (s State) Terminal() bool {
	switch s {
	case StateError, StateStopped:
		return true
	case StateIdle, StatePlaying:
		return false
	default:
		return false
	}
}

// EventKind identifies terminal pipeline events.
type EventKind int

const (
	EventEndOfStream EventKind = iota
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventEndOfStream:
		return "eos"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered once when the pipeline terminates on its own.
type Event struct {
	Kind EventKind
	Err  error
}

// Status is a progress snapshot.
type Status struct {
	// Percent is the completed fraction in [0,1].
	Percent float64
	// Remaining is the estimated time left. Only meaningful when Known is set.
	Remaining time.Duration
	// Known is false when the duration is unknown or nothing has been encoded.
	Known bool
}

// Adapter runs a single configured pass.
type Adapter interface {
	// Start launches the pipeline. It fails with ErrStartFailed when the
	// pipeline cannot be constructed or launched.
	Start(ctx context.Context) error
	State() State
	// Status fails with ErrStatusUnavailable until a position is known.
	Status() (Status, error)
	// RequestGracefulStop asks the pipeline to finish the output and emit
	// end-of-stream. It returns without waiting.
	RequestGracefulStop() error
	// Stop tears the pipeline down. Calling it more than once is a no-op and
	// it never produces an event of its own.
	Stop() error
	Events() <-chan Event
}

// Factory creates adapters for passes.
type Factory interface {
	Configure(ctx context.Context, cfg PassConfig) (Adapter, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, cfg PassConfig) (Adapter, error)

// Configure calls f.
func (f FactoryFunc) Configure(ctx context.Context, cfg PassConfig) (Adapter, error) {
	return f(ctx, cfg)
}

// FormatRemaining renders a remaining duration as M:SS, or "Unknown".
func FormatRemaining(d time.Duration, known bool) string {
	if !known || d < 0 {
		return "Unknown"
	}
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// EstimateRemaining extrapolates the time left from the completed fraction
// and the elapsed time.
func EstimateRemaining(percent float64, elapsed time.Duration) (time.Duration, bool) {
	if percent <= 0 || elapsed <= 0 {
		return 0, false
	}
	if percent >= 1 {
		return 0, true
	}
	total := float64(elapsed) / percent
	return time.Duration(total - float64(elapsed)), true
}
