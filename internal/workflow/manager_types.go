package workflow

import (
	"context"
	"time"

	"arista/internal/engine"
	"arista/internal/job"
	"arista/internal/media/ffprobe"
)

// EventKind names an orchestrator event.
type EventKind string

const (
	EventJobStarted    EventKind = "job-started"
	EventPassSetup     EventKind = "pass-setup"
	EventJobProgress   EventKind = "job-progress"
	EventJobCompleted  EventKind = "job-completed"
	EventJobError      EventKind = "job-error"
	EventQueueComplete EventKind = "queue-complete"
)

// Event is delivered to subscribed handlers.
type Event struct {
	Kind EventKind
	Job  *job.Job
	// Pass and PassCount are set on pass-setup and job-progress events.
	Pass      int
	PassCount int
	Progress  engine.Status
	// Err is set on job-error events.
	Err error
	// Remaining counts jobs still queued behind the current one.
	Remaining int
	// Summary is set on queue-complete.
	Summary *Summary
}

// Last reports whether no jobs are queued behind the event's job.
func (e Event) Last() bool { return e.Remaining == 0 }

// Message is the error text of a job-error event.
func (e Event) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Handler observes events.
type Handler func(Event)

// Inspector resolves and probes a job's source before its first pass.
type Inspector interface {
	Inspect(ctx context.Context, src engine.Source) (engine.Source, ffprobe.MediaInfo, error)
}

// Recorder persists job runs.
type Recorder interface {
	JobStarted(ctx context.Context, j *job.Job) error
	JobFinished(ctx context.Context, j *job.Job) error
}

// Metrics receives run counters.
type Metrics interface {
	JobFinished(status string, elapsed time.Duration)
	PassFinished(result string)
	StatusUnavailable()
}

type noopMetrics struct{}

func (noopMetrics) JobFinished(string, time.Duration) {}
func (noopMetrics) PassFinished(string)               {}
func (noopMetrics) StatusUnavailable()                {}

// Result is the outcome of one queued job.
type Result struct {
	JobID     string
	Input     string
	Output    string
	Preset    string
	Status    job.Status
	Cancelled bool
	Skipped   bool
	Err       error
	Passes    int
	Elapsed   time.Duration
}

// Summary aggregates a run.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	Cancelled int
	Skipped   int
	Elapsed   time.Duration
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch {
	case r.Skipped:
		s.Skipped++
	case r.Status == job.StatusSucceeded:
		s.Succeeded++
		if r.Cancelled {
			s.Cancelled++
		}
	default:
		s.Failed++
	}
}

// Total is the number of jobs the run accounted for.
func (s Summary) Total() int { return len(s.Results) }

// OK reports whether every job succeeded.
func (s Summary) OK() bool { return s.Failed == 0 && s.Skipped == 0 }

func resultFor(j *job.Job) Result {
	preset := ""
	if j.Request.Preset != nil {
		preset = j.Request.Preset.Label()
	}
	return Result{
		JobID:     j.ID,
		Input:     j.Request.Input,
		Output:    j.Request.Output,
		Preset:    preset,
		Status:    j.Status(),
		Cancelled: j.Cancelled(),
		Err:       j.Err(),
		Passes:    j.PassCount(),
		Elapsed:   j.Elapsed(),
	}
}
