package ffprobe

import (
	"math"
	"strconv"
	"strings"
	"time"

	"arista/internal/profile"
)

// MediaInfo describes a probed source.
type MediaInfo struct {
	URI        string
	Mimetype   string
	FormatName string
	// Duration is zero when unknown, as for live capture devices.
	Duration time.Duration
	Size     int64
	Bitrate  int64
	Video    []VideoStream
	Audio    []AudioStream
}

// VideoStream describes a video stream.
type VideoStream struct {
	Index         int
	Codec         string
	Bitrate       int64
	Width         int
	Height        int
	Framerate     profile.Fraction
	PixelAspect   profile.Fraction
	DisplayAspect string
	Interlaced    bool
	Language      string
}

// AudioStream describes an audio stream.
type AudioStream struct {
	Index      int
	Codec      string
	Bitrate    int64
	SampleRate int
	Channels   int
	Depth      int
	Language   string
}

// HasVideo reports whether at least one video stream exists.
func (m MediaInfo) HasVideo() bool { return len(m.Video) > 0 }

// HasAudio reports whether at least one audio stream exists.
func (m MediaInfo) HasAudio() bool { return len(m.Audio) > 0 }

// VideoDimensions returns the size of the first video stream.
func (m MediaInfo) VideoDimensions() (profile.Size, bool) {
	if !m.HasVideo() {
		return profile.Size{}, false
	}
	v := m.Video[0]
	return profile.Size{Width: v.Width, Height: v.Height}, v.Width > 0 && v.Height > 0
}

var mimetypes = map[string]string{
	"matroska":     "video/x-matroska",
	"webm":         "video/webm",
	"mov":          "video/quicktime",
	"mp4":          "video/mp4",
	"ogg":          "application/ogg",
	"avi":          "video/x-msvideo",
	"mpegts":       "video/mp2t",
	"mpeg":         "video/mpeg",
	"dvdvideo":     "video/mpeg",
	"flv":          "video/x-flv",
	"asf":          "video/x-ms-asf",
	"video4linux2": "video/x-raw",
	"v4l2":         "video/x-raw",
	"mp3":          "audio/mpeg",
	"flac":         "audio/x-flac",
	"wav":          "audio/x-wav",
}

// MediaInfo maps the raw result to a MediaInfo.
func (r Result) MediaInfo() MediaInfo {
	info := MediaInfo{
		URI:        r.Format.Filename,
		FormatName: r.Format.FormatName,
		Mimetype:   mimetypeFor(r.Format.FormatName),
		Size:       r.SizeBytes(),
		Bitrate:    r.BitRate(),
	}
	if secs := r.DurationSeconds(); secs > 0 && !math.IsNaN(secs) {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	for _, s := range r.Streams {
		switch strings.ToLower(s.CodecType) {
		case "video":
			info.Video = append(info.Video, VideoStream{
				Index:         s.Index,
				Codec:         s.CodecName,
				Bitrate:       nonNegative(parseFloat(s.BitRate)),
				Width:         s.Width,
				Height:        s.Height,
				Framerate:     pickRate(s.AvgFrameRate, s.FrameRate),
				PixelAspect:   parseRatio(s.SampleAspectRatio, ":"),
				DisplayAspect: s.DisplayAspect,
				Interlaced:    interlaced(s.FieldOrder),
				Language:      s.Tags["language"],
			})
		case "audio":
			depth := s.BitsPerSample
			if depth == 0 {
				depth, _ = strconv.Atoi(s.BitsPerRawSample)
			}
			if depth == 0 {
				depth = depthFromFormat(s.SampleFormat)
			}
			rate, _ := strconv.Atoi(strings.TrimSpace(s.SampleRate))
			info.Audio = append(info.Audio, AudioStream{
				Index:      s.Index,
				Codec:      s.CodecName,
				Bitrate:    nonNegative(parseFloat(s.BitRate)),
				SampleRate: rate,
				Channels:   s.Channels,
				Depth:      depth,
				Language:   s.Tags["language"],
			})
		}
	}
	return info
}

func mimetypeFor(formatName string) string {
	for _, name := range strings.Split(formatName, ",") {
		if mt, ok := mimetypes[strings.TrimSpace(name)]; ok {
			return mt
		}
	}
	if formatName == "" {
		return ""
	}
	return "application/octet-stream"
}

func pickRate(values ...string) profile.Fraction {
	for _, v := range values {
		if f := parseRatio(v, "/"); f.Num > 0 && f.Den > 0 {
			return f
		}
	}
	return profile.Fraction{}
}

func parseRatio(value, sep string) profile.Fraction {
	num, den, ok := strings.Cut(strings.TrimSpace(value), sep)
	if !ok {
		return profile.Fraction{}
	}
	n, err1 := strconv.ParseInt(num, 10, 64)
	d, err2 := strconv.ParseInt(den, 10, 64)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return profile.Fraction{}
	}
	return profile.Fraction{Num: n, Den: d}
}

func interlaced(fieldOrder string) bool {
	switch strings.ToLower(strings.TrimSpace(fieldOrder)) {
	case "tt", "bb", "tb", "bt":
		return true
	default:
		return false
	}
}

func depthFromFormat(format string) int {
	switch strings.TrimSuffix(strings.ToLower(format), "p") {
	case "u8":
		return 8
	case "s16":
		return 16
	case "s32", "flt":
		return 32
	case "s64", "dbl":
		return 64
	default:
		return 0
	}
}
