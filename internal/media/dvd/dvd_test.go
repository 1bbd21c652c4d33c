package dvd

import (
	"context"
	"errors"
	"testing"
	"time"

	"arista/internal/media/ffprobe"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in   string
		want Locator
	}{
		{in: "dvd:///dev/sr0", want: Locator{Device: "/dev/sr0"}},
		{in: "dvd:///dev/sr0@3:a:2", want: Locator{Device: "/dev/sr0", Title: 3, Audio: 2}},
		{in: "dvd:///dev/sr0@a:4", want: Locator{Device: "/dev/sr0", Chapter: 4}},
	}
	for _, tc := range tests {
		got, err := ParseLocator(tc.in)
		if err != nil {
			t.Fatalf("ParseLocator(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseLocator(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"/dev/sr0", "dvd://", "dvd:///dev/sr0@x", "dvd:///dev/sr0@1:2:3:4"} {
		if _, err := ParseLocator(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if s := (Locator{Device: "/dev/sr0", Title: 2}).String(); s != "dvd:///dev/sr0@2:a:a" {
		t.Fatalf("unexpected string %q", s)
	}
}

func TestSelectLongestTitle(t *testing.T) {
	durations := map[int]time.Duration{1: 2 * time.Minute, 2: 95 * time.Minute, 3: 30 * time.Minute}
	var probed []int
	probe := func(_ context.Context, device string, title int) (ffprobe.MediaInfo, error) {
		probed = append(probed, title)
		d, ok := durations[title]
		if !ok {
			return ffprobe.MediaInfo{}, errors.New("no such title")
		}
		return ffprobe.MediaInfo{URI: device, Duration: d}, nil
	}
	title, info, err := SelectLongestTitle(context.Background(), "/dev/sr0", 0, probe)
	if err != nil {
		t.Fatalf("SelectLongestTitle: %v", err)
	}
	if title != 2 || info.Duration != 95*time.Minute {
		t.Fatalf("expected title 2, got %d (%v)", title, info.Duration)
	}
	if len(probed) != DefaultTitleScanLimit {
		t.Fatalf("expected %d probes, got %d", DefaultTitleScanLimit, len(probed))
	}
}

func TestSelectLongestTitleNoneValid(t *testing.T) {
	probe := func(context.Context, string, int) (ffprobe.MediaInfo, error) {
		return ffprobe.MediaInfo{}, nil
	}
	if _, _, err := SelectLongestTitle(context.Background(), "/dev/sr0", 3, probe); !errors.Is(err, ErrNoTitle) {
		t.Fatalf("expected ErrNoTitle, got %v", err)
	}
}
