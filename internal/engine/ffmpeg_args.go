package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"arista/internal/profile"
)

var muxerFormats = map[string]string{
	"matroskamux": "matroska",
	"webmmux":     "webm",
	"mp4mux":      "mp4",
	"qtmux":       "mov",
	"ffmux_mp4":   "mp4",
	"oggmux":      "ogg",
	"avimux":      "avi",
	"flvmux":      "flv",
	"mpegtsmux":   "mpegts",
	"avmux_dvd":   "dvd",
	"mpegpsmux":   "vob",
	"3gppmux":     "3gp",
}

// MuxerFormat maps a preset container name to an ffmpeg output format. Names
// that are already ffmpeg formats pass through.
func MuxerFormat(container string) string {
	container = strings.TrimSpace(container)
	if format, ok := muxerFormats[container]; ok {
		return format
	}
	return container
}

// streamKeys holds encoder options that are handled by the adapter itself.
var streamKeys = map[string]bool{"pass": true, "passlogfile": true}

// BuildFFmpegArgs renders the ffmpeg command line for a pass.
func BuildFFmpegArgs(cfg PassConfig) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// stdin stays open: the graceful stop key is written to it.
	args := []string{"-hide_banner", "-y", "-progress", "pipe:1", "-nostats", "-loglevel", "error"}
	if cfg.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(cfg.Threads))
	}
	args = append(args, inputArgs(cfg.Source)...)

	includeAudio := cfg.Audio != nil && (cfg.Final() || cfg.Video == nil)
	if cfg.Video != nil {
		args = append(args, "-map", "0:v:0")
	}
	if includeAudio {
		args = append(args, "-map", audioMap(cfg.Source))
	}

	if v := cfg.Video; v != nil {
		args = append(args, "-c:v", v.Codec)
		if chain := videoFilters(cfg); chain != "" {
			args = append(args, "-vf", chain)
		}
		if v.FrameRate.Num > 0 {
			args = append(args, "-r", v.FrameRate.String())
		}
		args = append(args, streamOptions(v.Options, "v")...)
		if cfg.MultiPass() {
			args = append(args, "-pass", strconv.Itoa(cfg.Pass+1), "-passlogfile", cfg.StatsPrefix)
		}
	} else {
		args = append(args, "-vn")
	}

	if includeAudio {
		a := cfg.Audio
		args = append(args, "-c:a", a.Codec)
		if a.Rate > 0 {
			args = append(args, "-ar", strconv.Itoa(a.Rate))
		}
		if a.Channels > 0 {
			args = append(args, "-ac", strconv.Itoa(a.Channels))
		}
		args = append(args, streamOptions(a.Options, "a")...)
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-sn")

	if !cfg.Final() {
		return append(args, "-f", "null", os.DevNull), nil
	}
	if format := MuxerFormat(cfg.Container); format != "" {
		args = append(args, "-f", format)
	}
	return append(args, cfg.Output), nil
}

func inputArgs(src Source) []string {
	switch src.Kind {
	case SourceDVD:
		args := []string{"-f", "dvdvideo"}
		if src.Title > 0 {
			args = append(args, "-title", strconv.Itoa(src.Title))
		}
		if src.Chapter > 0 {
			args = append(args, "-chapter_start", strconv.Itoa(src.Chapter))
		}
		return append(args, "-i", src.Path)
	case SourceCapture:
		return []string{"-f", "v4l2", "-i", src.Path}
	case SourceFile:
		return []string{"-i", src.Path}
	default:
		return []string{"-i", src.Path}
	}
}

func audioMap(src Source) string {
	if src.Kind == SourceDVD && src.AudioTrack > 0 {
		return fmt.Sprintf("0:a:%d?", src.AudioTrack-1)
	}
	return "0:a:0?"
}

func streamOptions(params []profile.Param, stream string) []string {
	var args []string
	for _, p := range params {
		if streamKeys[p.Key] {
			continue
		}
		key := strings.TrimPrefix(p.Key, "-")
		if !strings.Contains(key, ":") {
			key += ":" + stream
		}
		value := p.Value
		if value == "" {
			value = "1"
		}
		args = append(args, "-"+key, value)
	}
	return args
}

func videoFilters(cfg PassConfig) string {
	v := cfg.Video
	var filters []string
	if v.Deinterlace {
		filters = append(filters, "yadif")
	}
	if c := v.Crop; !c.IsZero() {
		filters = append(filters, fmt.Sprintf("crop=iw-%d:ih-%d:%d:%d", c.Left+c.Right, c.Top+c.Bottom, c.Left, c.Top))
	}
	if g := v.Geometry; g.Width > 0 && g.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", g.Width, g.Height))
		if g.Padded() {
			filters = append(filters, fmt.Sprintf("pad=%d:%d:%d:%d", g.OuterWidth(), g.OuterHeight(), g.PadX, g.PadY))
		}
	}
	if t := strings.TrimSpace(v.Transform); t != "" {
		filters = append(filters, t)
	}
	if sub := subtitleFilter(cfg); sub != "" {
		filters = append(filters, sub)
	}
	return strings.Join(filters, ",")
}

func subtitleFilter(cfg PassConfig) string {
	sub := cfg.Video.Subtitles
	if !sub.Enabled() {
		return ""
	}
	var file string
	switch {
	case strings.TrimSpace(sub.File) != "":
		file = sub.File
	case sub.RenderEmbedded && cfg.Source.Kind == SourceFile:
		file = cfg.Source.Path
	default:
		return ""
	}
	parts := []string{"subtitles=filename=" + escapeFilterValue(file)}
	if enc := strings.TrimSpace(sub.Encoding); enc != "" && sub.File != "" {
		parts = append(parts, "charenc="+escapeFilterValue(enc))
	}
	if font := strings.TrimSpace(sub.Font); font != "" {
		parts = append(parts, "force_style="+escapeFilterValue("FontName="+font))
	}
	return strings.Join(parts, ":")
}

// Filter option values are escaped twice: once for the option parser and once
// for the filtergraph parser that sees the whole -vf string first.
var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

func escapeFilterValue(value string) string {
	return graphEscaper.Replace(optionEscaper.Replace(value))
}
