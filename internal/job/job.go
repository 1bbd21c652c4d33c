package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"arista/internal/engine"
	"arista/internal/media/ffprobe"
)

// Job is a queued request plus its run state.
type Job struct {
	ID      string
	Request Request

	mu         sync.Mutex
	status     Status
	pass       int
	passCount  int
	cancelled  bool
	err        error
	source     engine.Source
	media      ffprobe.MediaInfo
	prepared   bool
	startedAt  time.Time
	finishedAt time.Time
}

// New validates req and returns a pending job with a fresh id.
func New(req Request) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &Job{
		ID:        uuid.NewString(),
		Request:   req,
		passCount: req.Preset.PassCount(),
	}, nil
}

// Label identifies the job in messages.
func (j *Job) Label() string { return j.Request.Label() }

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Pass returns the current zero-based pass index.
func (j *Job) Pass() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pass
}

// PassCount returns the number of passes the job will run.
func (j *Job) PassCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.passCount
}

// Cancelled reports whether cancellation reached this job.
func (j *Job) Cancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// MarkCancelled records that cancellation reached the job while it ran.
func (j *Job) MarkCancelled() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = true
}

// Err returns the failure cause of a failed job.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Elapsed is the wall time between start and finish, or until now.
func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch {
	case j.startedAt.IsZero():
		return 0
	case j.finishedAt.IsZero():
		return time.Since(j.startedAt)
	default:
		return j.finishedAt.Sub(j.startedAt)
	}
}

// StartedAt returns when the job entered Running.
func (j *Job) StartedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt
}

// FinishedAt returns when the job became terminal.
func (j *Job) FinishedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedAt
}

// Begin moves a pending job to Running(0).
func (j *Job) Begin() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPending {
		return j.invalid(StatusRunning)
	}
	j.status = StatusRunning
	j.pass = 0
	j.startedAt = time.Now()
	return nil
}

// CompletePass records a clean end of the running pass. It returns true when
// another pass follows, leaving the job in PassComplete(i); otherwise the job
// is Succeeded. A cancelled job can only succeed from its final pass.
func (j *Job) CompletePass() (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return false, j.invalid(StatusPassComplete)
	}
	if j.pass >= j.passCount-1 {
		j.status = StatusSucceeded
		j.finishedAt = time.Now()
		return false, nil
	}
	if j.cancelled {
		j.status = StatusFailed
		j.err = fmt.Errorf("%w during pass %d of %d", ErrAborted, j.pass+1, j.passCount)
		j.finishedAt = time.Now()
		return false, nil
	}
	j.status = StatusPassComplete
	return true, nil
}

// NextPass moves PassComplete(i) to Running(i+1).
func (j *Job) NextPass() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPassComplete || j.pass+1 >= j.passCount {
		return j.invalid(StatusRunning)
	}
	j.status = StatusRunning
	j.pass++
	return nil
}

// Fail moves a running job to Failed. A cancelled job always fails with
// ErrAborted wrapping cause.
func (j *Job) Fail(cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusRunning {
		return j.invalid(StatusFailed)
	}
	switch {
	case j.cancelled && cause == nil:
		cause = ErrAborted
	case j.cancelled && !errors.Is(cause, ErrAborted):
		cause = fmt.Errorf("%w: %w", ErrAborted, cause)
	case cause == nil:
		cause = errors.New("unknown failure")
	}
	j.status = StatusFailed
	j.err = cause
	j.finishedAt = time.Now()
	return nil
}

func (j *Job) invalid(to Status) error {
	return fmt.Errorf("%w: %s(%d) -> %s", ErrInvalidTransition, j.status, j.pass, to)
}
