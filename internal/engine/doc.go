// Package engine defines the boundary between job orchestration and the
// external media pipeline.
//
// A Factory configures one Adapter per encoding pass. Adapters run the
// pipeline asynchronously, expose a coarse State, answer Status queries with
// percent complete and remaining time, and deliver exactly one terminal Event
// (end-of-stream or error) on their Events channel. Stop is idempotent and
// always safe to defer.
//
// Two backends are provided: FFmpeg, which drives the ffmpeg binary in its own
// process group, and Drapto, which runs the drapto encoder library in process.
package engine
