// Package config loads, normalizes, and validates arista configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ARISTA_FFMPEG and ARISTA_PRESET_DIR. The Config type centralizes every knob
// the CLI and orchestrator need: preset search paths, engine binaries, polling
// intervals, history and metrics output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
