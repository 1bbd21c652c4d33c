package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"arista/internal/engine"
	"arista/internal/media/dvd"
	"arista/internal/media/ffprobe"
	"arista/internal/services"
)

var captureSchemes = []string{"v4l2://", "v4l://"}

// ParseSource turns an input locator into an engine source. Plain paths and
// file:// URIs are files; dvd:// and v4l:// locators address devices.
func ParseSource(input string) (engine.Source, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return engine.Source{}, services.Wrap(services.ErrValidation, "source", "parse", "input is required", nil)
	case dvd.IsLocator(input):
		loc, err := dvd.ParseLocator(input)
		if err != nil {
			return engine.Source{}, services.Wrap(services.ErrValidation, "source", "parse", "dvd locator", err)
		}
		return engine.Source{Kind: engine.SourceDVD, Path: loc.Device, Title: loc.Title, Chapter: loc.Chapter, AudioTrack: loc.Audio}, nil
	case strings.HasPrefix(input, "file://"):
		return engine.Source{Kind: engine.SourceFile, Path: strings.TrimPrefix(input, "file://")}, nil
	}
	for _, scheme := range captureSchemes {
		if strings.HasPrefix(input, scheme) {
			return engine.Source{Kind: engine.SourceCapture, Path: strings.TrimPrefix(input, scheme)}, nil
		}
	}
	return engine.Source{Kind: engine.SourceFile, Path: input}, nil
}

// Inspector probes sources before their first pass.
type Inspector struct {
	FFprobe        string
	Timeout        time.Duration
	TitleScanLimit int
	// Titles probes DVD titles. Nil uses ffprobe's dvdvideo demuxer.
	Titles dvd.TitleProber
	// Probe inspects files and capture devices. Nil uses ffprobe.
	Probe func(ctx context.Context, req ffprobe.Request) (ffprobe.MediaInfo, error)
}

// Inspect probes src. DVD sources without a title get the longest of the
// first titles; the returned source carries the chosen title.
func (in Inspector) Inspect(ctx context.Context, src engine.Source) (engine.Source, ffprobe.MediaInfo, error) {
	probe := in.Probe
	if probe == nil {
		probe = ffprobe.ProbeWith
	}
	switch src.Kind {
	case engine.SourceDVD:
		titles := in.Titles
		if titles == nil {
			titles = dvd.FFprobeTitles(in.FFprobe, in.Timeout)
		}
		if src.Title > 0 {
			info, err := titles(ctx, src.Path, src.Title)
			return src, info, err
		}
		title, info, err := dvd.SelectLongestTitle(ctx, src.Path, in.TitleScanLimit, titles)
		if err != nil {
			return src, ffprobe.MediaInfo{}, err
		}
		src.Title = title
		return src, info, nil
	case engine.SourceCapture:
		info, err := probe(ctx, ffprobe.Request{Binary: in.FFprobe, Path: src.Path, Format: "v4l2", Timeout: in.Timeout})
		if err != nil {
			return src, info, err
		}
		// Live sources have no meaningful duration.
		info.Duration = 0
		return src, info, nil
	case engine.SourceFile:
		info, err := probe(ctx, ffprobe.Request{Binary: in.FFprobe, Path: src.Path, Timeout: in.Timeout})
		return src, info, err
	default:
		return src, ffprobe.MediaInfo{}, fmt.Errorf("unsupported source kind %s", src.Kind)
	}
}
