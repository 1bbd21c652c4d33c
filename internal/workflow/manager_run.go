package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"arista/internal/engine"
	"arista/internal/job"
	"arista/internal/logging"
	"arista/internal/services"
)

// ErrAlreadyRunning is returned when Run is called while another Run is active.
var ErrAlreadyRunning = errors.New("workflow already running")

// Run processes the queue head until the queue is empty, then fires
// queue-complete and returns the summary. Once cancellation is requested no
// further job starts and the remaining jobs are reported as skipped.
func (m *Manager) Run(ctx context.Context) (Summary, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return Summary{}, ErrAlreadyRunning
	}
	m.running = true
	m.exitAfterJob = false
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	start := time.Now()
	var (
		summary Summary
		runErr  error
	)
	for {
		j, _ := m.head()
		if j == nil {
			break
		}
		if stop, reason := m.shouldStop(ctx, runErr); stop {
			m.skipRemaining(&summary, reason)
			break
		}
		err := m.runJob(ctx, j)
		summary.add(resultFor(j))
		m.pop()
		switch {
		case errors.Is(err, ErrForcedExit):
			runErr = err
		case err != nil && ctx.Err() != nil:
			runErr = ctx.Err()
		}
	}
	summary.Elapsed = time.Since(start)

	m.logger.Info("queue complete",
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("cancelled", summary.Cancelled),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", summary.Elapsed),
		logging.String(logging.FieldEventType, "queue_complete"),
	)
	m.emit(Event{Kind: EventQueueComplete, Summary: &summary})
	return summary, runErr
}

func (m *Manager) shouldStop(ctx context.Context, runErr error) (bool, string) {
	switch {
	case runErr != nil:
		return true, runErr.Error()
	case ctx.Err() != nil:
		return true, ctx.Err().Error()
	case m.token.Cancelled():
		return true, "cancelled"
	case m.exitAfterJob:
		return true, "exit requested"
	default:
		return false, ""
	}
}

func (m *Manager) skipRemaining(summary *Summary, reason string) {
	for {
		j, _ := m.head()
		if j == nil {
			return
		}
		result := resultFor(j)
		result.Skipped = true
		summary.add(result)
		m.logger.Info("job skipped",
			logging.String(logging.FieldJobID, j.ID),
			logging.String("input", j.Request.Input),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "job_skipped"),
		)
		m.pop()
	}
}

// runJob drives one job to a terminal status. Only ErrForcedExit and context
// cancellation are returned; every other failure stays with the job.
func (m *Manager) runJob(ctx context.Context, j *job.Job) error {
	ctx = services.WithJobID(ctx, j.ID)
	logger := logging.WithContext(ctx, m.logger)

	if err := j.Begin(); err != nil {
		return err
	}
	m.recordStart(ctx, logger, j)
	logger.Info("job started",
		logging.String("input", j.Request.Input),
		logging.String("output", j.Request.Output),
		logging.Preset(j.Request.Preset.Label()),
		logging.String(logging.FieldEventType, "job_started"),
	)
	m.emit(Event{Kind: EventJobStarted, Job: j, PassCount: j.PassCount(), Remaining: m.remaining()})

	if err := m.prepare(ctx, j); err != nil {
		m.failJob(ctx, j, err)
		return m.finishJob(ctx, j, contextErr(ctx, err))
	}

	for {
		pass := j.Pass()
		passCtx := services.WithPass(services.WithStage(ctx, "encode"), pass)
		m.emit(Event{Kind: EventPassSetup, Job: j, Pass: pass, PassCount: j.PassCount(), Remaining: m.remaining()})

		cfg, err := j.PassConfig(pass, m.plan)
		if err != nil {
			m.metrics.PassFinished("failed")
			m.failJob(passCtx, j, err)
			return m.finishJob(ctx, j, nil)
		}
		if err := m.runPass(passCtx, j, cfg); err != nil {
			m.metrics.PassFinished(passResult(j, err))
			m.failJob(passCtx, j, err)
			if errors.Is(err, ErrForcedExit) {
				return m.finishJob(ctx, j, err)
			}
			return m.finishJob(ctx, j, contextErr(ctx, err))
		}
		more, err := j.CompletePass()
		if err != nil {
			m.metrics.PassFinished("failed")
			return m.finishJob(ctx, j, err)
		}
		if j.Status() == job.StatusFailed {
			m.metrics.PassFinished("aborted")
		} else {
			m.metrics.PassFinished("completed")
		}
		logging.WithContext(passCtx, m.logger).Info("pass complete",
			logging.Int("pass_count", j.PassCount()),
			logging.String(logging.FieldEventType, "pass_complete"),
		)
		if !more {
			return m.finishJob(ctx, j, nil)
		}
		if err := j.NextPass(); err != nil {
			return m.finishJob(ctx, j, err)
		}
	}
}

func (m *Manager) prepare(ctx context.Context, j *job.Job) error {
	src, err := job.ParseSource(j.Request.Input)
	if err != nil {
		return err
	}
	ctx = services.WithStage(ctx, "probe")
	src, media, err := m.inspector.Inspect(ctx, src)
	if err != nil {
		return err
	}
	if err := j.Prepare(src, media); err != nil {
		return err
	}
	logging.WithContext(ctx, m.logger).Debug("source inspected",
		logging.String("mimetype", media.Mimetype),
		logging.Duration("duration", media.Duration),
		logging.Int("video_streams", len(media.Video)),
		logging.Int("audio_streams", len(media.Audio)),
		logging.Int("pass_count", j.PassCount()),
	)
	return nil
}

// runPass configures and runs a single pass until the engine reports a
// terminal event. The adapter is always stopped on return.
func (m *Manager) runPass(ctx context.Context, j *job.Job, cfg engine.PassConfig) error {
	logger := logging.WithContext(ctx, m.logger)
	adapter, err := m.factory.Configure(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := adapter.Stop(); err != nil {
			logger.Debug("adapter stop failed", logging.Error(err))
		}
	}()
	if err := adapter.Start(ctx); err != nil {
		return err
	}
	logger.Debug("pass started",
		logging.Int("pass_count", cfg.PassCount),
		logging.Bool("final", cfg.Final()),
	)

	statusTicker := time.NewTicker(m.statusInterval)
	defer statusTicker.Stop()
	cancelTicker := time.NewTicker(m.cancelInterval)
	defer cancelTicker.Stop()

	reporter := newProgressReporter(logger, m.metrics, m.stallTimeout, cfg.Pass)
	stopRequested := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-adapter.Events():
			return eventErr(ev)
		case <-cancelTicker.C:
			if stopRequested || !m.token.Cancelled() {
				continue
			}
			stopRequested = true
			j.MarkCancelled()
			if err := m.requestStop(ctx, logger, adapter); err != nil {
				var ended endedError
				if errors.As(err, &ended) {
					return eventErr(ended.event)
				}
				return err
			}
		case <-statusTicker.C:
			status, publish, action := reporter.tick(adapter, stopRequested)
			if publish {
				m.emit(Event{
					Kind:      EventJobProgress,
					Job:       j,
					Pass:      cfg.Pass,
					PassCount: cfg.PassCount,
					Progress:  status,
					Remaining: m.remaining(),
				})
			}
			switch action {
			case reportStalled:
				if err := adapter.RequestGracefulStop(); err != nil {
					logging.WarnWithContext(logger, "graceful stop after stall failed", "stall_stop_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "pass continues until the engine ends it"),
					)
				}
			case reportExitAfterJob:
				m.exitAfterJob = true
			case reportContinue:
			}
		}
	}
}

func eventErr(ev engine.Event) error {
	switch ev.Kind {
	case engine.EventEndOfStream:
		return nil
	case engine.EventError:
		if ev.Err == nil {
			return errors.New("engine reported an error")
		}
		return ev.Err
	default:
		return fmt.Errorf("unexpected engine event %s", ev.Kind)
	}
}

// endedError carries the terminal event of an engine that finished on its own
// while a graceful stop was being requested.
type endedError struct {
	event engine.Event
}

func (e endedError) Error() string { return "engine already ended: " + e.event.Kind.String() }

// requestStop asks the adapter to finish its output. When that is refused the
// pass is torn down and ErrForcedExit ends the run, unless the engine had
// already reached a terminal state, in which case its event is returned as an
// endedError.
func (m *Manager) requestStop(ctx context.Context, logger *slog.Logger, adapter engine.Adapter) error {
	logger.Info("cancellation requested; finishing current pass",
		logging.String(logging.FieldEventType, "graceful_stop_requested"),
	)
	err := adapter.RequestGracefulStop()
	if err == nil {
		return nil
	}
	if ev, ok := awaitEndedEvent(ctx, adapter); ok {
		logger.Debug("engine ended before the graceful stop", logging.String("event", ev.Kind.String()))
		return endedError{event: ev}
	}
	logging.ErrorWithContext(logger, "graceful stop failed; terminating engine", "graceful_stop_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the output file may be incomplete"),
	)
	if stopErr := adapter.Stop(); stopErr != nil {
		logger.Debug("adapter stop failed", logging.Error(stopErr))
	}
	return fmt.Errorf("%w: %w", ErrForcedExit, err)
}

func (m *Manager) recordStart(ctx context.Context, logger *slog.Logger, j *job.Job) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.JobStarted(ctx, j); err != nil {
		logging.WarnWithContext(logger, "failed to record job start", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job will be missing from history"),
			logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		)
	}
}

// awaitEndedEvent collects the terminal event of an engine that has already
// stopped. The event is sent just after the state changes, so it is waited
// for briefly.
func awaitEndedEvent(ctx context.Context, adapter engine.Adapter) (engine.Event, bool) {
	if !adapter.State().Terminal() {
		return engine.Event{}, false
	}
	timer := time.NewTimer(endedEventWait)
	defer timer.Stop()
	select {
	case ev := <-adapter.Events():
		return ev, true
	case <-ctx.Done():
	case <-timer.C:
	}
	return engine.Event{}, false
}

func passResult(j *job.Job, err error) string {
	switch {
	case errors.Is(err, ErrForcedExit), j.Cancelled():
		return "aborted"
	default:
		return "failed"
	}
}

func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return ctx.Err()
	}
	return nil
}
