// Package enginetest provides a scripted engine backend for tests.
package enginetest

import (
	"context"
	"sync"
	"time"

	"arista/internal/engine"
)

// Outcome is how a scripted pass ends.
type Outcome int

const (
	OutcomeEndOfStream Outcome = iota
	OutcomeError
	// OutcomeHang keeps the pass playing until a graceful stop or Stop.
	OutcomeHang
)

// Script drives one fake adapter.
type Script struct {
	ConfigureErr error
	StartErr     error
	// After is how long the pass plays before Outcome fires.
	After   time.Duration
	Outcome Outcome
	Err     error
	// Statuses are returned by successive Status calls; the last one repeats.
	// With no statuses Status reports engine.ErrStatusUnavailable.
	Statuses []engine.Status
	// GracefulStopErr is returned from RequestGracefulStop.
	GracefulStopErr error
	// EndsBeforeStop makes the pass end cleanly at the moment a graceful stop
	// arrives: the adapter is already stopped with end-of-stream queued, and
	// RequestGracefulStop reports engine.ErrNotRunning.
	EndsBeforeStop bool
	// GracefulOutcome is how the pass ends after a graceful stop.
	GracefulOutcome Outcome
	GracefulErr     error
}

// Factory records every configuration and hands out scripted adapters.
type Factory struct {
	script func(cfg engine.PassConfig) Script

	mu       sync.Mutex
	configs  []engine.PassConfig
	adapters []*Adapter
	live     int
	peak     int
}

// NewFactory returns a factory that asks script for the behaviour of each pass.
// A nil script makes every pass end cleanly straight away.
func NewFactory(script func(cfg engine.PassConfig) Script) *Factory {
	if script == nil {
		script = func(engine.PassConfig) Script { return Script{} }
	}
	return &Factory{script: script}
}

func (f *Factory) Configure(_ context.Context, cfg engine.PassConfig) (engine.Adapter, error) {
	s := f.script(cfg)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if s.ConfigureErr != nil {
		return nil, s.ConfigureErr
	}
	a := &Adapter{
		factory:  f,
		Config:   cfg,
		script:   s,
		events:   make(chan engine.Event, 1),
		graceful: make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	f.adapters = append(f.adapters, a)
	f.live++
	f.peak = max(f.peak, f.live)
	return a, nil
}

// PeakLive returns the largest number of adapters that existed at once
// without having been stopped.
func (f *Factory) PeakLive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func (f *Factory) release() {
	f.mu.Lock()
	f.live--
	f.mu.Unlock()
}

// Configs returns the pass configurations seen so far.
func (f *Factory) Configs() []engine.PassConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.PassConfig(nil), f.configs...)
}

// Adapters returns the adapters created so far.
func (f *Factory) Adapters() []*Adapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Adapter(nil), f.adapters...)
}

// Adapter is a scripted engine.Adapter.
type Adapter struct {
	Config  engine.PassConfig
	factory *Factory
	script  Script

	mu            sync.Mutex
	state         engine.State
	started       bool
	statusCalls   int
	stopCalls     int
	gracefulCalls int
	gracefulAt    time.Time
	emitted       int

	events   chan engine.Event
	graceful chan struct{}
	stop     chan struct{}
	done     chan struct{}
}

func (a *Adapter) Start(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.script.StartErr != nil {
		a.state = engine.StateError
		return a.script.StartErr
	}
	a.started = true
	a.state = engine.StatePlaying
	go a.run()
	return nil
}

func (a *Adapter) run() {
	defer close(a.done)
	var timeout <-chan time.Time
	if a.script.Outcome != OutcomeHang {
		timer := time.NewTimer(a.script.After)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-timeout:
		a.finish(a.script.Outcome, a.script.Err)
	case <-a.graceful:
		a.finish(a.script.GracefulOutcome, a.script.GracefulErr)
	case <-a.stop:
		a.mu.Lock()
		a.state = engine.StateStopped
		a.mu.Unlock()
	}
}

func (a *Adapter) finish(outcome Outcome, err error) {
	a.mu.Lock()
	event := engine.Event{Kind: engine.EventEndOfStream}
	a.state = engine.StateStopped
	if outcome == OutcomeError {
		event = engine.Event{Kind: engine.EventError, Err: err}
		a.state = engine.StateError
	}
	a.emitted++
	a.mu.Unlock()
	a.events <- event
}

func (a *Adapter) State() engine.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) Status() (engine.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started || len(a.script.Statuses) == 0 {
		return engine.Status{}, engine.ErrStatusUnavailable
	}
	idx := min(a.statusCalls, len(a.script.Statuses)-1)
	a.statusCalls++
	return a.script.Statuses[idx], nil
}

func (a *Adapter) RequestGracefulStop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gracefulCalls++
	if a.script.GracefulStopErr != nil {
		return a.script.GracefulStopErr
	}
	if a.script.EndsBeforeStop && a.state == engine.StatePlaying {
		a.state = engine.StateStopped
		a.emitted++
		a.events <- engine.Event{Kind: engine.EventEndOfStream}
		return engine.ErrNotRunning
	}
	if a.state != engine.StatePlaying {
		return engine.ErrNotRunning
	}
	if a.gracefulCalls == 1 {
		a.gracefulAt = time.Now()
		close(a.graceful)
	}
	return nil
}

func (a *Adapter) Stop() error {
	a.mu.Lock()
	a.stopCalls++
	first := a.stopCalls == 1
	started := a.started
	if !started && a.state == engine.StateIdle {
		a.state = engine.StateStopped
	}
	a.mu.Unlock()
	if first {
		a.factory.release()
	}
	if first && started {
		close(a.stop)
		<-a.done
	}
	return nil
}

func (a *Adapter) Events() <-chan engine.Event { return a.events }

// StopCalls returns how many times Stop was called.
func (a *Adapter) StopCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCalls
}

// GracefulCalls returns how many times RequestGracefulStop was called.
func (a *Adapter) GracefulCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gracefulCalls
}

// GracefulRequestedAt returns when the first graceful stop arrived.
func (a *Adapter) GracefulRequestedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gracefulAt
}

// EventsEmitted returns the number of terminal events produced.
func (a *Adapter) EventsEmitted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emitted
}

var (
	_ engine.Factory = (*Factory)(nil)
	_ engine.Adapter = (*Adapter)(nil)
)
