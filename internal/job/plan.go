package job

import (
	"fmt"
	"path/filepath"

	"arista/internal/engine"
	"arista/internal/media/ffprobe"
	"arista/internal/profile"
	"arista/internal/services"
)

// PlanOptions are run-wide inputs to pass planning.
type PlanOptions struct {
	Threads  int
	StatsDir string
}

// Prepare records the resolved source and its media description. It fixes
// the pass count: when the source has no video only the audio passes run.
func (j *Job) Prepare(src engine.Source, media ffprobe.MediaInfo) error {
	preset := j.Request.Preset
	encodeVideo := preset.Video != nil && media.HasVideo()
	encodeAudio := preset.Audio != nil && media.HasAudio()
	if !encodeVideo && !encodeAudio {
		return services.Wrap(services.ErrValidation, "plan", "prepare",
			fmt.Sprintf("%s has no streams that %s can encode", j.Request.Input, preset.Label()), nil)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPending && j.status != StatusRunning {
		return j.invalid(j.status)
	}
	j.source = src
	j.media = media
	j.prepared = true
	if !encodeVideo {
		j.passCount = max(len(preset.Audio.Passes), 1)
	} else {
		j.passCount = preset.PassCount()
	}
	return nil
}

// Media returns the probed media description.
func (j *Job) Media() ffprobe.MediaInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.media
}

// PassConfig plans pass for the engine.
func (j *Job) PassConfig(pass int, opts PlanOptions) (engine.PassConfig, error) {
	j.mu.Lock()
	src, media, prepared, passCount := j.source, j.media, j.prepared, j.passCount
	j.mu.Unlock()
	if !prepared {
		return engine.PassConfig{}, fmt.Errorf("%w: job %s planned before prepare", engine.ErrStartFailed, j.ID)
	}
	req := j.Request
	preset := req.Preset
	cfg := engine.PassConfig{
		JobID:     j.ID,
		Label:     req.Label(),
		Source:    src,
		Output:    req.Output,
		Container: preset.Container,
		Pass:      pass,
		PassCount: passCount,
		Duration:  media.Duration,
		Threads:   opts.Threads,
	}
	if opts.StatsDir != "" {
		cfg.StatsPrefix = filepath.Join(opts.StatsDir, "arista-"+j.ID)
	}

	videoPasses := 0
	if preset.Video != nil && media.HasVideo() {
		videoPasses = len(preset.Video.Passes)
		cfg.Video = planVideo(req, preset.Video, media, src, pass, opts.Threads)
	}
	if preset.Audio != nil && media.HasAudio() && (cfg.Final() || cfg.Video == nil) {
		cfg.Audio = planAudio(preset.Audio, media.Audio[0], videoPasses, pass, opts.Threads)
	}
	switch {
	case cfg.Video == nil && preset.Audio != nil && preset.Audio.Container != "":
		cfg.Container = preset.Audio.Container
	case cfg.Video != nil && !media.HasAudio() && preset.Video.Container != "":
		cfg.Container = preset.Video.Container
	case cfg.Container == "" && cfg.Video != nil:
		cfg.Container = preset.Video.Container
	}
	return cfg, cfg.Validate()
}

func planVideo(req Request, v *profile.VideoCodec, media ffprobe.MediaInfo, src engine.Source, pass, threads int) *engine.VideoParams {
	stream := media.Video[0]
	passIdx := min(pass, len(v.Passes)-1)
	params := &engine.VideoParams{
		Codec:     v.Name,
		Options:   profile.ParsePass(profile.ExpandPass(v.Passes[passIdx], threads)),
		Crop:      req.Crop,
		Transform: v.Transform,
		Subtitles: engine.Subtitles{
			File:           req.Subtitle,
			Encoding:       req.SubtitleEncoding,
			RenderEmbedded: req.RenderSSA,
			Font:           req.Font,
		},
	}
	if size, ok := media.VideoDimensions(); ok {
		params.Geometry = profile.FitDimensions(size, req.Crop, stream.PixelAspect, v)
	}
	params.FrameRate = clampRate(stream.Framerate, v.Rate)
	switch {
	case req.Deinterlace != nil:
		params.Deinterlace = *req.Deinterlace
	default:
		params.Deinterlace = stream.Interlaced || src.Kind == engine.SourceDVD
	}
	return params
}

func planAudio(a *profile.AudioCodec, stream ffprobe.AudioStream, videoPasses, pass, threads int) *engine.AudioParams {
	params := &engine.AudioParams{Codec: a.Name}
	if idx := profile.AudioPassIndex(videoPasses, len(a.Passes), pass); idx >= 0 {
		params.Options = profile.ParsePass(profile.ExpandPass(a.Passes[idx], threads))
	}
	if stream.SampleRate > 0 {
		params.Rate = a.Rate.Clamp(stream.SampleRate)
	}
	if stream.Channels > 0 {
		params.Channels = a.Channels.Clamp(stream.Channels)
	}
	return params
}

// clampRate returns the output frame rate, or zero to keep the source rate.
func clampRate(src profile.Fraction, r profile.FractionRange) profile.Fraction {
	if r.IsZero() {
		return profile.Fraction{}
	}
	if src.Num <= 0 {
		return r.Max
	}
	switch {
	case src.Float() > r.Max.Float():
		return r.Max
	case src.Float() < r.Min.Float():
		return r.Min
	default:
		return profile.Fraction{}
	}
}
