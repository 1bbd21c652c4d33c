// Package notifications publishes run results to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers subscribe it unconditionally. Subscribe wires a Service to the
// orchestrator's job-error and queue-complete events.
package notifications
