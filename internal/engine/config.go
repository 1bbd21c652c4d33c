package engine

import (
	"fmt"
	"strings"
	"time"

	"arista/internal/profile"
)

// SourceKind tells adapters how to open an input.
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceDVD
	SourceCapture
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceDVD:
		return "dvd"
	case SourceCapture:
		return "capture"
	default:
		return fmt.Sprintf("source(%d)", int(k))
	}
}

// Source describes the pipeline input.
type Source struct {
	Kind SourceKind
	// Path is the file path or device node.
	Path string
	// Title, Chapter and AudioTrack select DVD content. Zero means default.
	Title      int
	Chapter    int
	AudioTrack int
}

// Subtitles controls subtitle burn-in.
type Subtitles struct {
	// File is an external subtitle file rendered onto the video.
	File     string
	Encoding string
	// RenderEmbedded burns the first embedded SSA/ASS track of the input.
	RenderEmbedded bool
	Font           string
}

// Enabled reports whether any subtitle rendering is requested.
func (s Subtitles) Enabled() bool {
	return strings.TrimSpace(s.File) != "" || s.RenderEmbedded
}

// VideoParams configures the video stream of a pass.
type VideoParams struct {
	Codec string
	// Options are the expanded encoder options for this pass.
	Options     []profile.Param
	Geometry    profile.Geometry
	Crop        profile.Crop
	FrameRate   profile.Fraction
	Transform   string
	Deinterlace bool
	Subtitles   Subtitles
}

// AudioParams configures the audio stream. It is only set on the final pass.
type AudioParams struct {
	Codec    string
	Options  []profile.Param
	Rate     int
	Channels int
}

// PassConfig fully describes one pass of a job.
type PassConfig struct {
	JobID  string
	Label  string
	Source Source
	Output string
	// Container is the muxer name from the preset.
	Container string
	Pass      int
	PassCount int
	Video     *VideoParams
	Audio     *AudioParams
	// StatsPrefix is a job-scoped path prefix shared by all passes so that
	// later passes can read statistics written by earlier ones.
	StatsPrefix string
	// Duration of the source, zero when unknown.
	Duration time.Duration
	Threads  int
}

// Final reports whether this is the last pass of the job.
func (c PassConfig) Final() bool { return c.Pass >= c.PassCount-1 }

// MultiPass reports whether the video encoder runs more than once.
func (c PassConfig) MultiPass() bool { return c.PassCount > 1 && c.Video != nil }

// Validate rejects configurations no adapter can run.
func (c PassConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Source.Path) == "":
		return fmt.Errorf("%w: input is required", ErrStartFailed)
	case strings.TrimSpace(c.Output) == "":
		return fmt.Errorf("%w: output is required", ErrStartFailed)
	case c.PassCount < 1:
		return fmt.Errorf("%w: pass count must be at least 1", ErrStartFailed)
	case c.Pass < 0 || c.Pass >= c.PassCount:
		return fmt.Errorf("%w: pass %d outside 0..%d", ErrStartFailed, c.Pass, c.PassCount-1)
	case c.Video == nil && c.Audio == nil && c.Final():
		return fmt.Errorf("%w: no streams to encode", ErrStartFailed)
	case c.MultiPass() && strings.TrimSpace(c.StatsPrefix) == "":
		return fmt.Errorf("%w: multi-pass encode needs a stats prefix", ErrStartFailed)
	}
	return nil
}
