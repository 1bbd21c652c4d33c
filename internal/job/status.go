package job

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition rejects a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid job transition")
	// ErrAborted marks a job stopped by cancellation without a clean finish.
	ErrAborted = errors.New("job aborted")
)

// Status is the lifecycle state of a job.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusPassComplete
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassComplete:
		return "pass-complete"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed:
		return true
	case StatusPending, StatusRunning, StatusPassComplete:
		return false
	default:
		return false
	}
}
