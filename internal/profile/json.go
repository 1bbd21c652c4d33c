package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type deviceFile struct {
	Make        string                `json:"make"`
	Model       string                `json:"model"`
	Description string                `json:"description"`
	Author      Author                `json:"author"`
	Version     string                `json:"version"`
	Icon        string                `json:"icon"`
	Default     string                `json:"default"`
	Presets     map[string]presetFile `json:"presets"`
}

type presetFile struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Author      *Author     `json:"author"`
	Version     string      `json:"version"`
	Icon        string      `json:"icon"`
	Container   string      `json:"container"`
	Extension   string      `json:"extension"`
	VCodec      *vcodecFile `json:"vcodec"`
	ACodec      *acodecFile `json:"acodec"`
}

type vcodecFile struct {
	Name      string        `json:"name"`
	Container string        `json:"container"`
	Rate      FractionRange `json:"rate"`
	Passes    []string      `json:"passes"`
	Width     IntRange      `json:"width"`
	Height    IntRange      `json:"height"`
	Transform string        `json:"transform"`
}

type acodecFile struct {
	Name      string   `json:"name"`
	Container string   `json:"container"`
	Rate      IntRange `json:"rate"`
	Passes    []string `json:"passes"`
	Width     IntRange `json:"width"`
	Depth     IntRange `json:"depth"`
	Channels  IntRange `json:"channels"`
}

// UnmarshalJSON accepts a [min, max] pair of numbers or numeric strings, or a
// single value that is used for both bounds.
func (r *IntRange) UnmarshalJSON(data []byte) error {
	values, err := rawPair(data)
	if err != nil {
		return fmt.Errorf("range: %w", err)
	}
	var bounds [2]int
	for i, raw := range values {
		n, err := parseNumber(raw)
		if err != nil {
			return fmt.Errorf("range: %w", err)
		}
		bounds[i] = int(n)
	}
	r.Min, r.Max = bounds[0], bounds[1]
	return nil
}

// UnmarshalJSON accepts a [min, max] pair of numbers or "num/den" strings.
func (r *FractionRange) UnmarshalJSON(data []byte) error {
	values, err := rawPair(data)
	if err != nil {
		return fmt.Errorf("rate: %w", err)
	}
	var bounds [2]Fraction
	for i, raw := range values {
		f, err := parseFraction(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		bounds[i] = f
	}
	r.Min, r.Max = bounds[0], bounds[1]
	return nil
}

func rawPair(data []byte) ([2]json.RawMessage, error) {
	var out [2]json.RawMessage
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		out[0], out[1] = json.RawMessage("0"), json.RawMessage("0")
		return out, nil
	}
	if trimmed[0] != '[' {
		out[0], out[1] = trimmed, trimmed
		return out, nil
	}
	var values []json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return out, err
	}
	switch len(values) {
	case 1:
		out[0], out[1] = values[0], values[0]
	case 2:
		out[0], out[1] = values[0], values[1]
	default:
		return out, fmt.Errorf("expected [min, max], got %d values", len(values))
	}
	return out, nil
}

func unquote(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return text
}

func parseNumber(raw json.RawMessage) (float64, error) {
	text := unquote(raw)
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", text)
	}
	return n, nil
}

func parseFraction(raw json.RawMessage) (Fraction, error) {
	text := unquote(raw)
	num, den, found := strings.Cut(text, "/")
	if !found {
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return Fraction{}, fmt.Errorf("invalid fraction %q", text)
		}
		return Fraction{Num: n, Den: 1}, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return Fraction{}, fmt.Errorf("invalid fraction %q", text)
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil || d <= 0 {
		return Fraction{}, fmt.Errorf("invalid fraction %q", text)
	}
	return Fraction{Num: n, Den: d}, nil
}

func decodeDevice(id string, data []byte) (*Device, error) {
	var file deviceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProfile, id, err)
	}
	device := &Device{
		ID:          id,
		Make:        file.Make,
		Model:       file.Model,
		Description: file.Description,
		Author:      file.Author,
		Version:     file.Version,
		Icon:        file.Icon,
		Default:     file.Default,
		Presets:     make(map[string]*Preset, len(file.Presets)),
	}
	if device.Make == "" {
		device.Make = GenericMake
	}
	if device.Version == "" {
		device.Version = "1.0"
	}
	for key, pf := range file.Presets {
		name := pf.Name
		if name == "" {
			name = key
		}
		preset := &Preset{
			Name:        name,
			Description: firstNonEmpty(pf.Description, device.Description),
			Author:      device.Author,
			Version:     firstNonEmpty(pf.Version, device.Version),
			Icon:        firstNonEmpty(pf.Icon, device.Icon),
			Container:   pf.Container,
			Extension:   pf.Extension,
			DeviceID:    id,
		}
		if pf.Author != nil {
			preset.Author = *pf.Author
		}
		if pf.VCodec != nil && pf.VCodec.Name != "" {
			preset.Video = &VideoCodec{
				Codec:     Codec{Name: pf.VCodec.Name, Container: pf.VCodec.Container, Passes: pf.VCodec.Passes},
				Rate:      pf.VCodec.Rate,
				Width:     pf.VCodec.Width,
				Height:    pf.VCodec.Height,
				Transform: pf.VCodec.Transform,
			}
		}
		if pf.ACodec != nil && pf.ACodec.Name != "" {
			preset.Audio = &AudioCodec{
				Codec:    Codec{Name: pf.ACodec.Name, Container: pf.ACodec.Container, Passes: pf.ACodec.Passes},
				Rate:     pf.ACodec.Rate,
				Width:    pf.ACodec.Width,
				Depth:    pf.ACodec.Depth,
				Channels: pf.ACodec.Channels,
			}
		}
		if preset.Extension == "" {
			preset.Extension = defaultExtension(preset.Container)
		}
		device.Presets[name] = preset
	}
	if err := device.validate(); err != nil {
		return nil, err
	}
	return device, nil
}

func defaultExtension(container string) string {
	switch container {
	case "", "matroskamux":
		return "mkv"
	case "mp4mux", "qtmux", "ffmux_mp4":
		return "mp4"
	case "oggmux":
		return "ogg"
	case "webmmux":
		return "webm"
	case "avimux":
		return "avi"
	default:
		return strings.TrimSuffix(container, "mux")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
