// Package dvd parses DVD locators and picks the main feature title.
//
// A locator has the form dvd://device@title:chapter:audio where each of the
// trailing fields is a 1-based index or "a" for automatic selection.
package dvd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"arista/internal/media/ffprobe"
)

// Scheme prefixes DVD locators.
const Scheme = "dvd://"

// DefaultTitleScanLimit is how many titles are probed when looking for the
// main feature.
const DefaultTitleScanLimit = 8

// ErrNoTitle is returned when no probed title has a duration.
var ErrNoTitle = errors.New("no valid DVD title found")

// Locator addresses content on a DVD. Zero fields mean automatic selection.
type Locator struct {
	Device  string
	Title   int
	Chapter int
	Audio   int
}

// IsLocator reports whether s uses the dvd:// scheme.
func IsLocator(s string) bool {
	return strings.HasPrefix(s, Scheme)
}

// ParseLocator parses a dvd:// locator. Missing or "a" fields are automatic.
func ParseLocator(s string) (Locator, error) {
	if !IsLocator(s) {
		return Locator{}, fmt.Errorf("not a dvd locator: %q", s)
	}
	device, rest, _ := strings.Cut(strings.TrimPrefix(s, Scheme), "@")
	if device == "" {
		return Locator{}, fmt.Errorf("dvd locator %q has no device", s)
	}
	loc := Locator{Device: device}
	if rest == "" {
		return loc, nil
	}
	fields := strings.Split(rest, ":")
	if len(fields) > 3 {
		return Locator{}, fmt.Errorf("dvd locator %q has too many fields", s)
	}
	targets := []*int{&loc.Title, &loc.Chapter, &loc.Audio}
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" || field == "a" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 {
			return Locator{}, fmt.Errorf("dvd locator %q: invalid index %q", s, field)
		}
		*targets[i] = n
	}
	return loc, nil
}

func (l Locator) String() string {
	return fmt.Sprintf("%s%s@%s:%s:%s", Scheme, l.Device, index(l.Title), index(l.Chapter), index(l.Audio))
}

func index(n int) string {
	if n <= 0 {
		return "a"
	}
	return strconv.Itoa(n)
}

// TitleProber probes one title of a disc.
type TitleProber func(ctx context.Context, device string, title int) (ffprobe.MediaInfo, error)

// FFprobeTitles returns a TitleProber that uses ffprobe's dvdvideo demuxer.
func FFprobeTitles(binary string, timeout time.Duration) TitleProber {
	return func(ctx context.Context, device string, title int) (ffprobe.MediaInfo, error) {
		return ffprobe.ProbeWith(ctx, ffprobe.Request{
			Binary:       binary,
			Path:         device,
			Format:       "dvdvideo",
			InputOptions: []string{"-title", strconv.Itoa(title)},
			Timeout:      timeout,
		})
	}
}

// SelectLongestTitle probes titles 1..limit and returns the longest one.
// Titles that fail to probe are skipped.
func SelectLongestTitle(ctx context.Context, device string, limit int, probe TitleProber) (int, ffprobe.MediaInfo, error) {
	if limit <= 0 {
		limit = DefaultTitleScanLimit
	}
	best := 0
	var bestInfo ffprobe.MediaInfo
	var lastErr error
	for title := 1; title <= limit; title++ {
		if err := ctx.Err(); err != nil {
			return 0, ffprobe.MediaInfo{}, err
		}
		info, err := probe(ctx, device, title)
		if err != nil {
			lastErr = err
			continue
		}
		if info.Duration > bestInfo.Duration {
			best, bestInfo = title, info
		}
	}
	if best == 0 {
		if lastErr != nil {
			return 0, ffprobe.MediaInfo{}, fmt.Errorf("%w on %s: %w", ErrNoTitle, device, lastErr)
		}
		return 0, ffprobe.MediaInfo{}, fmt.Errorf("%w on %s", ErrNoTitle, device)
	}
	return best, bestInfo, nil
}
