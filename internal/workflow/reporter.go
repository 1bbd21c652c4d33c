package workflow

import (
	"errors"
	"log/slog"
	"time"

	"arista/internal/engine"
	"arista/internal/logging"
)

type reporterAction int

const (
	reportContinue reporterAction = iota
	// reportStalled asks for a graceful stop because progress stopped moving.
	reportStalled
	// reportExitAfterJob asks the run to end once the current job is done.
	reportExitAfterJob
)

// progressReporter turns engine status polls into job-progress samples. The
// reported percent never decreases within a pass.
type progressReporter struct {
	logger       *slog.Logger
	metrics      Metrics
	stallTimeout time.Duration
	sampler      *logging.ProgressSampler
	pass         int
	now          func() time.Time

	best       float64
	lastChange time.Time
	stalled    bool
	stopped    bool
}

func newProgressReporter(logger *slog.Logger, metrics Metrics, stallTimeout time.Duration, pass int) *progressReporter {
	return &progressReporter{
		logger:       logger,
		metrics:      metrics,
		stallTimeout: stallTimeout,
		sampler:      logging.NewProgressSampler(10),
		pass:         pass,
		now:          time.Now,
	}
}

// tick polls the adapter once. It returns a sample when one should be
// published.
func (r *progressReporter) tick(adapter engine.Adapter, cancelRequested bool) (engine.Status, bool, reporterAction) {
	if r.stopped {
		return engine.Status{}, false, reportContinue
	}
	switch state := adapter.State(); state {
	case engine.StateIdle:
		return engine.Status{}, false, reportContinue
	case engine.StateStopped, engine.StateError:
		if cancelRequested {
			r.stopped = true
			r.logger.Debug("pipeline ended after cancellation", logging.String("state", state.String()))
			return engine.Status{}, false, reportExitAfterJob
		}
		return engine.Status{}, false, reportContinue
	case engine.StatePlaying:
		return r.poll(adapter)
	default:
		return engine.Status{}, false, reportContinue
	}
}

func (r *progressReporter) poll(adapter engine.Adapter) (engine.Status, bool, reporterAction) {
	status, err := adapter.Status()
	if err != nil {
		if errors.Is(err, engine.ErrStatusUnavailable) {
			r.metrics.StatusUnavailable()
		}
		r.logger.Debug("engine status unavailable", logging.Error(err))
		return engine.Status{}, false, reportContinue
	}
	now := r.now()
	if status.Percent > r.best || r.lastChange.IsZero() {
		if status.Percent > r.best {
			r.best = status.Percent
		}
		r.lastChange = now
	}
	status.Percent = r.best

	if r.sampler.ShouldLog(status.Percent*100, r.pass) {
		r.logger.Info("encoding progress",
			logging.Int(logging.FieldPass, r.pass),
			logging.Percent(status.Percent),
			logging.String("remaining", engine.FormatRemaining(status.Remaining, status.Known)),
		)
	}

	if r.stallTimeout > 0 && r.best > 0 && !r.stalled && now.Sub(r.lastChange) > r.stallTimeout {
		r.stalled = true
		r.logger.Warn("progress stalled; ending pass",
			logging.Duration("stalled_for", now.Sub(r.lastChange)),
			logging.Percent(r.best),
			logging.String(logging.FieldEventType, "progress_stalled"),
			logging.String(logging.FieldErrorHint, "the source may be truncated or the device stopped delivering data"),
		)
		return status, true, reportStalled
	}
	return status, true, reportContinue
}
