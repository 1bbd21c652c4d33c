package job

import (
	"errors"
	"strings"
	"testing"

	"arista/internal/engine"
	"arista/internal/media/ffprobe"
	"arista/internal/profile"
	"arista/internal/services"
)

func testPreset(videoPasses ...string) *profile.Preset {
	return &profile.Preset{
		Name:      "H.264",
		DeviceID:  "computer",
		Container: "matroskamux",
		Extension: "mkv",
		Video: &profile.VideoCodec{
			Codec:  profile.Codec{Name: "libx264", Passes: videoPasses},
			Width:  profile.IntRange{Min: 120, Max: 1280},
			Height: profile.IntRange{Min: 120, Max: 720},
			Rate:   profile.FractionRange{Min: profile.Fraction{Num: 1, Den: 1}, Max: profile.Fraction{Num: 30, Den: 1}},
		},
		Audio: &profile.AudioCodec{
			Codec:    profile.Codec{Name: "aac", Container: "mp4mux", Passes: []string{"b=192k"}},
			Rate:     profile.IntRange{Min: 8000, Max: 48000},
			Channels: profile.IntRange{Min: 1, Max: 2},
		},
	}
}

func testMedia() ffprobe.MediaInfo {
	return ffprobe.MediaInfo{
		Duration: 3600e9,
		Video: []ffprobe.VideoStream{{
			Codec: "h264", Width: 1920, Height: 1080,
			Framerate:   profile.Fraction{Num: 60000, Den: 1001},
			PixelAspect: profile.Fraction{Num: 1, Den: 1},
		}},
		Audio: []ffprobe.AudioStream{{Codec: "ac3", SampleRate: 96000, Channels: 6}},
	}
}

func newJob(t *testing.T, preset *profile.Preset) *Job {
	t.Helper()
	j, err := New(Request{Input: "/in/movie.mkv", Preset: preset, Output: "/out/movie.mkv"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return j
}

func TestLifecycleTwoPasses(t *testing.T) {
	j := newJob(t, testPreset("pass=1", "pass=2"))
	if j.ID == "" || j.Status() != StatusPending || j.PassCount() != 2 {
		t.Fatalf("unexpected fresh job: id=%q status=%s passes=%d", j.ID, j.Status(), j.PassCount())
	}
	if err := j.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	more, err := j.CompletePass()
	if err != nil || !more {
		t.Fatalf("CompletePass(0): more=%v err=%v", more, err)
	}
	if j.Status() != StatusPassComplete || j.Pass() != 0 {
		t.Fatalf("expected PassComplete(0), got %s(%d)", j.Status(), j.Pass())
	}
	if err := j.NextPass(); err != nil {
		t.Fatalf("NextPass: %v", err)
	}
	if j.Status() != StatusRunning || j.Pass() != 1 {
		t.Fatalf("expected Running(1), got %s(%d)", j.Status(), j.Pass())
	}
	more, err = j.CompletePass()
	if err != nil || more {
		t.Fatalf("CompletePass(1): more=%v err=%v", more, err)
	}
	if j.Status() != StatusSucceeded || j.Cancelled() {
		t.Fatalf("expected clean success, got %s cancelled=%v", j.Status(), j.Cancelled())
	}
}

func TestInvalidTransitions(t *testing.T) {
	j := newJob(t, testPreset("crf=20"))
	if _, err := j.CompletePass(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("CompletePass on pending: %v", err)
	}
	if err := j.Fail(errors.New("x")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fail on pending: %v", err)
	}
	if err := j.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := j.Begin(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double Begin: %v", err)
	}
	if err := j.NextPass(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("NextPass while running: %v", err)
	}
	if _, err := j.CompletePass(); err != nil {
		t.Fatalf("CompletePass: %v", err)
	}
	if err := j.Fail(errors.New("late")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Fail after success: %v", err)
	}
}

func TestCancelledFinalPassSucceeds(t *testing.T) {
	j := newJob(t, testPreset("crf=20"))
	_ = j.Begin()
	j.MarkCancelled()
	if _, err := j.CompletePass(); err != nil {
		t.Fatalf("CompletePass: %v", err)
	}
	if j.Status() != StatusSucceeded || !j.Cancelled() {
		t.Fatalf("expected cancelled success, got %s cancelled=%v", j.Status(), j.Cancelled())
	}
}

func TestCancelledEarlyPassAborts(t *testing.T) {
	j := newJob(t, testPreset("pass=1", "pass=2"))
	_ = j.Begin()
	j.MarkCancelled()
	more, err := j.CompletePass()
	if err != nil || more {
		t.Fatalf("CompletePass: more=%v err=%v", more, err)
	}
	if j.Status() != StatusFailed || !errors.Is(j.Err(), ErrAborted) {
		t.Fatalf("expected aborted failure, got %s %v", j.Status(), j.Err())
	}
}

func TestFailWhileCancelledIsAborted(t *testing.T) {
	j := newJob(t, testPreset("crf=20"))
	_ = j.Begin()
	j.MarkCancelled()
	cause := errors.New("engine died")
	if err := j.Fail(cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !errors.Is(j.Err(), ErrAborted) || !errors.Is(j.Err(), cause) {
		t.Fatalf("expected aborted wrapping cause, got %v", j.Err())
	}
}

func TestNegativeCropRejected(t *testing.T) {
	_, err := New(Request{Input: "a", Preset: testPreset("x"), Output: "b", Crop: profile.Crop{Top: -1}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "crop value -1 must be non-negative") {
		t.Fatalf("message should name the value: %v", err)
	}
}

func TestParseCrop(t *testing.T) {
	crop, err := ParseCrop("8:0:8:4")
	if err != nil {
		t.Fatalf("ParseCrop: %v", err)
	}
	if crop != (profile.Crop{Top: 8, Bottom: 8, Left: 4}) {
		t.Fatalf("unexpected crop %+v", crop)
	}
	if _, err := ParseCrop("-1:0:0:0"); err == nil || !strings.Contains(err.Error(), "-1") {
		t.Fatalf("expected negative crop error naming -1, got %v", err)
	}
	for _, bad := range []string{"1:2:3", "a:b:c:d", "1:2:3:4x"} {
		if _, err := ParseCrop(bad); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("ParseCrop(%q) expected validation error, got %v", bad, err)
		}
	}
}

func TestPassConfigPlansVideoAndFinalAudio(t *testing.T) {
	j := newJob(t, testPreset("pass=1 threads=%(threads)s", "pass=2 threads=%(threads)s"))
	_ = j.Begin()
	if err := j.Prepare(engine.Source{Kind: engine.SourceFile, Path: "/in/movie.mkv"}, testMedia()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	opts := PlanOptions{Threads: 4, StatsDir: "/tmp"}

	first, err := j.PassConfig(0, opts)
	if err != nil {
		t.Fatalf("PassConfig(0): %v", err)
	}
	if first.Audio != nil {
		t.Fatal("audio must only be encoded in the final pass")
	}
	if first.StatsPrefix != "/tmp/arista-"+j.ID {
		t.Fatalf("unexpected stats prefix %q", first.StatsPrefix)
	}
	if got := profile.FormatPass(first.Video.Options); got != "pass=1 threads=4" {
		t.Fatalf("unexpected options %q", got)
	}
	if first.Video.Geometry != (profile.Geometry{Width: 1280, Height: 720}) {
		t.Fatalf("unexpected geometry %+v", first.Video.Geometry)
	}
	if first.Video.FrameRate != (profile.Fraction{Num: 30, Den: 1}) {
		t.Fatalf("expected frame rate clamped to 30, got %v", first.Video.FrameRate)
	}

	second, err := j.PassConfig(1, opts)
	if err != nil {
		t.Fatalf("PassConfig(1): %v", err)
	}
	if second.Audio == nil || second.Audio.Rate != 48000 || second.Audio.Channels != 2 {
		t.Fatalf("unexpected final audio %+v", second.Audio)
	}
	if second.StatsPrefix != first.StatsPrefix {
		t.Fatal("stats prefix must be shared across passes")
	}
}

func TestPrepareAudioOnlySource(t *testing.T) {
	j := newJob(t, testPreset("pass=1", "pass=2"))
	_ = j.Begin()
	media := testMedia()
	media.Video = nil
	if err := j.Prepare(engine.Source{Path: "/in/song.flac"}, media); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if j.PassCount() != 1 {
		t.Fatalf("audio-only source should run audio passes only, got %d", j.PassCount())
	}
	cfg, err := j.PassConfig(0, PlanOptions{})
	if err != nil {
		t.Fatalf("PassConfig: %v", err)
	}
	if cfg.Video != nil || cfg.Audio == nil || cfg.Container != "mp4mux" {
		t.Fatalf("unexpected audio-only plan %+v", cfg)
	}
}

func TestVideoOnlySourceUsesVideoContainer(t *testing.T) {
	preset := testPreset("crf=20")
	preset.Video.Container = "webmmux"
	j := newJob(t, preset)
	_ = j.Begin()
	media := testMedia()
	media.Audio = nil
	if err := j.Prepare(engine.Source{Path: "/in/clip.mkv"}, media); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	cfg, err := j.PassConfig(0, PlanOptions{})
	if err != nil {
		t.Fatalf("PassConfig: %v", err)
	}
	if cfg.Audio != nil || cfg.Container != "webmmux" {
		t.Fatalf("video-only plan: container=%q audio=%v", cfg.Container, cfg.Audio)
	}

	withAudio := newJob(t, preset)
	_ = withAudio.Begin()
	if err := withAudio.Prepare(engine.Source{Path: "/in/movie.mkv"}, testMedia()); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	cfg, err = withAudio.PassConfig(0, PlanOptions{})
	if err != nil {
		t.Fatalf("PassConfig: %v", err)
	}
	if cfg.Container != "matroskamux" {
		t.Fatalf("audio and video source should use the preset container, got %q", cfg.Container)
	}
}

func TestPrepareRejectsUnencodableSource(t *testing.T) {
	preset := testPreset("crf=20")
	preset.Audio = nil
	j := newJob(t, preset)
	media := testMedia()
	media.Video = nil
	if err := j.Prepare(engine.Source{Path: "/in/song.flac"}, media); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		in   string
		want engine.Source
	}{
		{in: "/media/movie.mkv", want: engine.Source{Kind: engine.SourceFile, Path: "/media/movie.mkv"}},
		{in: "file:///media/movie.mkv", want: engine.Source{Kind: engine.SourceFile, Path: "/media/movie.mkv"}},
		{in: "dvd:///dev/sr0@2:1:a", want: engine.Source{Kind: engine.SourceDVD, Path: "/dev/sr0", Title: 2, Chapter: 1}},
		{in: "v4l2:///dev/video0", want: engine.Source{Kind: engine.SourceCapture, Path: "/dev/video0"}},
	}
	for _, tc := range tests {
		got, err := ParseSource(tc.in)
		if err != nil {
			t.Fatalf("ParseSource(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseSource(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
