// Package logging assembles structured slog loggers and formatting helpers used
// across arista.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so the orchestrator and engine adapters can
// tag log lines with job IDs, stages and pass indices. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
