// Package services defines shared utilities consumed by the job runner, the
// engine adapters and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, lifecycle stages, pass indices and
//     run correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, so callers can separate
//     configuration problems (reported before any job runs) from per-job
//     engine failures.
//
// Use these helpers when wiring new components so error classification and
// observability stay uniform across the transcoder.
package services
