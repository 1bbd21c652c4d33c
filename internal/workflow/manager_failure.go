package workflow

import (
	"context"
	"errors"
	"fmt"

	"arista/internal/engine"
	"arista/internal/job"
	"arista/internal/logging"
	"arista/internal/media/ffprobe"
	"arista/internal/services"
)

// failJob moves a running job to Failed. The recorded error names the input
// and the device/preset so the message stands on its own.
func (m *Manager) failJob(ctx context.Context, j *job.Job, cause error) {
	logger := logging.WithContext(ctx, m.logger)
	wrapped := fmt.Errorf("%s: %w", j.Label(), cause)
	if err := j.Fail(wrapped); err != nil {
		logger.Debug("job already terminal", logging.Error(err))
		return
	}
	attrs := []logging.Attr{
		logging.Error(cause),
		logging.String("input", j.Request.Input),
		logging.String("preset", j.Request.Preset.Label()),
		logging.String(logging.FieldErrorHint, failureHint(j, cause)),
	}
	if j.Cancelled() {
		logger.Info("job aborted", logging.Args(append(attrs, logging.String(logging.FieldEventType, "job_aborted"))...)...)
		return
	}
	logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)
}

// finishJob publishes the terminal event, records the outcome and passes ret
// through to the run loop.
func (m *Manager) finishJob(ctx context.Context, j *job.Job, ret error) error {
	logger := logging.WithContext(ctx, m.logger)
	status := j.Status()
	ev := Event{Job: j, Pass: j.Pass(), PassCount: j.PassCount(), Remaining: m.remaining()}
	switch status {
	case job.StatusSucceeded:
		ev.Kind = EventJobCompleted
		logger.Info("job completed",
			logging.String("output", j.Request.Output),
			logging.Bool("cancelled", j.Cancelled()),
			logging.Duration("elapsed", j.Elapsed()),
			logging.String(logging.FieldEventType, "job_completed"),
		)
	case job.StatusFailed:
		ev.Kind = EventJobError
		ev.Err = j.Err()
	case job.StatusPending, job.StatusRunning, job.StatusPassComplete:
		// A non-terminal job here means a transition was rejected; fail it so
		// the queue can advance.
		if err := j.Fail(ret); err != nil {
			logger.Error("job left in non-terminal state", logging.String("status", status.String()), logging.Error(err))
		}
		ev.Kind = EventJobError
		ev.Err = j.Err()
		status = j.Status()
	}
	m.emit(ev)

	m.metrics.JobFinished(status.String(), j.Elapsed())
	if m.recorder != nil {
		// Record even after cancellation so the history reflects the abort.
		recordCtx := context.WithoutCancel(ctx)
		if err := m.recorder.JobFinished(recordCtx, j); err != nil {
			logging.WarnWithContext(logger, "failed to record job result", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "job will be missing from history"),
			)
		}
	}
	if ret != nil && !errors.Is(ret, ErrForcedExit) && !errors.Is(ret, context.Canceled) && !errors.Is(ret, context.DeadlineExceeded) {
		return nil
	}
	return ret
}

func failureHint(j *job.Job, err error) string {
	switch {
	case j.Cancelled():
		return "job was cancelled by the user"
	case errors.Is(err, ErrForcedExit):
		return "the engine ignored the stop request; the output may be incomplete"
	case errors.Is(err, ffprobe.ErrProbeTimeout):
		return "the source did not answer in time; check the device or raise engine.probe_timeout"
	case errors.Is(err, engine.ErrStartFailed):
		return "check the engine binary and the preset's encoder options"
	case errors.Is(err, services.ErrExternalTool):
		return "run the source-info command on the input to check it is readable"
	case errors.Is(err, services.ErrValidation):
		return "the source cannot be encoded with this preset"
	default:
		return "inspect the engine output above"
	}
}
