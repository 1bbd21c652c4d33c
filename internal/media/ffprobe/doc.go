// Package ffprobe inspects media sources with the ffprobe binary.
//
// Probe runs ffprobe under a timeout and maps its JSON output to MediaInfo:
// container mimetype, duration and one descriptor per audio and video stream.
// Result keeps the raw ffprobe shape for callers that need fields MediaInfo
// does not carry.
package ffprobe
