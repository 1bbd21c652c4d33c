package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"arista/internal/services"
)

// ErrProbeTimeout is returned when ffprobe does not answer in time.
var ErrProbeTimeout = fmt.Errorf("probe timed out: %w", services.ErrTimeout)

// DefaultTimeout bounds a probe when the caller passes zero.
const DefaultTimeout = 5 * time.Second

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index             int               `json:"index"`
	CodecName         string            `json:"codec_name"`
	CodecType         string            `json:"codec_type"`
	Duration          string            `json:"duration"`
	BitRate           string            `json:"bit_rate"`
	Width             int               `json:"width"`
	Height            int               `json:"height"`
	SampleAspectRatio string            `json:"sample_aspect_ratio"`
	DisplayAspect     string            `json:"display_aspect_ratio"`
	FrameRate         string            `json:"r_frame_rate"`
	AvgFrameRate      string            `json:"avg_frame_rate"`
	FieldOrder        string            `json:"field_order"`
	SampleRate        string            `json:"sample_rate"`
	SampleFormat      string            `json:"sample_fmt"`
	Channels          int               `json:"channels"`
	BitsPerSample     int               `json:"bits_per_sample"`
	BitsPerRawSample  string            `json:"bits_per_raw_sample"`
	Tags              map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Request describes a probe. Format and InputOptions select a demuxer, for
// example dvdvideo with -title.
type Request struct {
	Binary       string
	Path         string
	Format       string
	InputOptions []string
	Timeout      time.Duration
}

// Probe inspects uri and returns its media description.
func Probe(ctx context.Context, binary, uri string, timeout time.Duration) (MediaInfo, error) {
	return ProbeWith(ctx, Request{Binary: binary, Path: uri, Timeout: timeout})
}

// ProbeWith inspects a source described by req.
func ProbeWith(ctx context.Context, req Request) (MediaInfo, error) {
	result, err := Inspect(ctx, req)
	if err != nil {
		return MediaInfo{}, err
	}
	return result.MediaInfo(), nil
}

// Inspect executes ffprobe and decodes the JSON response.
func Inspect(ctx context.Context, req Request) (Result, error) {
	binary := strings.TrimSpace(req.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return Result{}, services.Wrap(services.ErrValidation, "probe", "inspect", "empty path", nil)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-v", "error", "-hide_banner", "-print_format", "json", "-show_format", "-show_streams"}
	if req.Format != "" {
		args = append(args, "-f", req.Format)
	}
	args = append(args, req.InputOptions...)
	args = append(args, "-i", path)

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = time.Second
	var stderr strings.Builder
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("%w: %s after %s", ErrProbeTimeout, path, timeout)
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "probe", "inspect",
			fmt.Sprintf("%s: %s", path, strings.TrimSpace(stderr.String())), err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "probe", "parse", path, err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

func (r Result) countType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	return nonNegative(parseFloat(r.Format.Size))
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	return nonNegative(parseFloat(r.Format.BitRate))
}

func nonNegative(v float64) int64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return int64(v)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
