package job

import (
	"fmt"
	"strconv"
	"strings"

	"arista/internal/profile"
	"arista/internal/services"
)

// Request is an immutable description of one transcode.
type Request struct {
	Input  string
	Device *profile.Device
	Preset *profile.Preset
	Output string

	Subtitle         string
	SubtitleEncoding string
	// RenderSSA burns embedded SSA/ASS subtitles into the video.
	RenderSSA bool
	Font      string
	// Deinterlace forces deinterlacing on or off. Nil decides from the source.
	Deinterlace *bool
	Crop        profile.Crop
}

// Label identifies the request in user-facing messages.
func (r Request) Label() string {
	preset := "?"
	if r.Preset != nil {
		preset = r.Preset.Label()
	}
	return fmt.Sprintf("%s (%s)", r.Input, preset)
}

// Validate checks the request before it is queued.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return services.Wrap(services.ErrValidation, "request", "validate", "input is required", nil)
	}
	if r.Preset == nil {
		return services.Wrap(services.ErrValidation, "request", "validate", "preset is required", nil)
	}
	if strings.TrimSpace(r.Output) == "" {
		return services.Wrap(services.ErrValidation, "request", "validate", "output path is required", nil)
	}
	return ValidateCrop(r.Crop)
}

// ValidateCrop rejects negative margins, naming the first offending value.
func ValidateCrop(c profile.Crop) error {
	for _, v := range []int{c.Top, c.Right, c.Bottom, c.Left} {
		if v < 0 {
			return fmt.Errorf("%w: crop value %d must be non-negative", services.ErrValidation, v)
		}
	}
	return nil
}

// ParseCrop parses T:R:B:L margins.
func ParseCrop(s string) (profile.Crop, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return profile.Crop{}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return profile.Crop{}, fmt.Errorf("%w: crop %q must be TOP:RIGHT:BOTTOM:LEFT", services.ErrValidation, s)
	}
	var values [4]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return profile.Crop{}, fmt.Errorf("%w: crop value %q is not a number", services.ErrValidation, part)
		}
		values[i] = n
	}
	crop := profile.Crop{Top: values[0], Right: values[1], Bottom: values[2], Left: values[3]}
	return crop, ValidateCrop(crop)
}
