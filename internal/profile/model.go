package profile

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GenericMake marks devices that are named by model alone.
const GenericMake = "Generic"

// Author identifies who wrote a device or preset definition.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (a Author) String() string {
	switch {
	case a.Email == "":
		return a.Name
	case a.Name == "":
		return "<" + a.Email + ">"
	default:
		return a.Name + " <" + a.Email + ">"
	}
}

// IntRange is an inclusive [Min, Max] pair. The zero value means unconstrained.
type IntRange struct {
	Min int
	Max int
}

// IsZero reports whether the range was left unset.
func (r IntRange) IsZero() bool { return r.Min == 0 && r.Max == 0 }

// Clamp limits v to the range. Unset ranges return v unchanged.
func (r IntRange) Clamp(v int) int {
	if r.IsZero() {
		return v
	}
	return min(max(v, r.Min), r.Max)
}

func (r IntRange) bounds() (int, int) {
	if r.IsZero() {
		return 0, math.MaxInt32
	}
	return r.Min, r.Max
}

func (r IntRange) String() string {
	if r.IsZero() {
		return "any"
	}
	if r.Min == r.Max {
		return fmt.Sprintf("%d", r.Min)
	}
	return fmt.Sprintf("%d-%d", r.Min, r.Max)
}

// Fraction is a rational number such as a 30000/1001 frame rate.
type Fraction struct {
	Num int64
	Den int64
}

// Float returns the value of f, treating a zero denominator as one.
func (f Fraction) Float() float64 {
	if f.Den == 0 {
		return float64(f.Num)
	}
	return float64(f.Num) / float64(f.Den)
}

func (f Fraction) String() string {
	if f.Den == 0 || f.Den == 1 {
		return fmt.Sprintf("%d", f.Num)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// FractionRange is an inclusive range of fractions.
type FractionRange struct {
	Min Fraction
	Max Fraction
}

// IsZero reports whether the range was left unset.
func (r FractionRange) IsZero() bool { return r.Min.Num == 0 && r.Max.Num == 0 }

func (r FractionRange) String() string {
	if r.IsZero() {
		return "any"
	}
	if r.Min == r.Max {
		return r.Min.String()
	}
	return r.Min.String() + "-" + r.Max.String()
}

// Codec holds the settings common to audio and video encoders.
type Codec struct {
	// Name is the encoder name passed to the engine (for example libx264).
	Name string
	// Container overrides the preset container when only this stream type is present.
	Container string
	// Passes are space separated key=value encoder options, one entry per pass.
	Passes []string
}

// VideoCodec describes video encoder capabilities for a preset.
type VideoCodec struct {
	Codec
	Rate      FractionRange
	Width     IntRange
	Height    IntRange
	Transform string
}

// AudioCodec describes audio encoder capabilities for a preset.
type AudioCodec struct {
	Codec
	Rate     IntRange
	Width    IntRange
	Depth    IntRange
	Channels IntRange
}

// Preset is a named output specification for a device.
type Preset struct {
	Name        string
	Description string
	Author      Author
	Version     string
	Icon        string
	Container   string
	Extension   string
	Video       *VideoCodec
	Audio       *AudioCodec

	// DeviceID is the short name of the owning device.
	DeviceID string
}

// PassCount returns the number of encoding passes the preset requires.
func (p *Preset) PassCount() int {
	count := 0
	if p.Video != nil {
		count = len(p.Video.Passes)
	}
	if p.Audio != nil && len(p.Audio.Passes) > count {
		count = len(p.Audio.Passes)
	}
	return max(count, 1)
}

// Slug returns a file-name safe identifier combining device id and preset name.
func (p *Preset) Slug() string {
	slug := p.DeviceID + "-" + cases.Lower(language.Und).String(p.Name)
	return strings.NewReplacer(" ", "_", "'", "", "/", "").Replace(slug)
}

// Label renders device/preset for user-facing messages.
func (p *Preset) Label() string {
	return p.DeviceID + "/" + p.Name
}

func (p *Preset) String() string {
	return p.Name + " " + p.Container
}

// Device is a playback target with a set of presets.
type Device struct {
	ID          string
	Make        string
	Model       string
	Description string
	Author      Author
	Version     string
	Icon        string
	Default     string
	Presets     map[string]*Preset

	// Filename is the file the device was loaded from.
	Filename string
}

// Name returns a friendly name: the model for generic devices, otherwise make and model.
func (d *Device) Name() string {
	if d.Make == GenericMake || strings.TrimSpace(d.Make) == "" {
		return d.Model
	}
	return d.Make + " " + d.Model
}

// PresetNames returns the preset names in sorted order.
func (d *Device) PresetNames() []string {
	names := make([]string, 0, len(d.Presets))
	for name := range d.Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultPreset returns the designated default preset.
func (d *Device) DefaultPreset() (*Preset, error) {
	if preset, ok := d.Presets[d.Default]; ok {
		return preset, nil
	}
	return nil, fmt.Errorf("%w: device %s has no default preset", ErrPresetNotFound, d.ID)
}

// ResolvePreset returns the default preset when name is empty. Otherwise it
// matches an exact name, then a unique case-sensitive prefix.
func (d *Device) ResolvePreset(name string) (*Preset, error) {
	if name == "" {
		return d.DefaultPreset()
	}
	if preset, ok := d.Presets[name]; ok {
		return preset, nil
	}
	var matches []string
	for _, candidate := range d.PresetNames() {
		if strings.HasPrefix(candidate, name) {
			matches = append(matches, candidate)
		}
	}
	switch len(matches) {
	case 1:
		return d.Presets[matches[0]], nil
	case 0:
		return nil, fmt.Errorf("%w: %q for device %s (available: %s)",
			ErrPresetNotFound, name, d.ID, strings.Join(d.PresetNames(), ", "))
	default:
		return nil, fmt.Errorf("%w: %q is ambiguous for device %s (matches: %s)",
			ErrPresetNotFound, name, d.ID, strings.Join(matches, ", "))
	}
}

func (d *Device) validate() error {
	if len(d.Presets) == 0 {
		return fmt.Errorf("%w: %s defines no presets", ErrInvalidProfile, d.ID)
	}
	if d.Default == "" {
		d.Default = d.PresetNames()[0]
	}
	if _, ok := d.Presets[d.Default]; !ok {
		return fmt.Errorf("%w: %s default preset %q is not defined", ErrInvalidProfile, d.ID, d.Default)
	}
	for _, name := range d.PresetNames() {
		if err := d.Presets[name].validate(); err != nil {
			return fmt.Errorf("%w: %s/%s: %v", ErrInvalidProfile, d.ID, name, err)
		}
	}
	return nil
}

func (p *Preset) validate() error {
	if p.Video == nil && p.Audio == nil {
		return fmt.Errorf("preset defines neither vcodec nor acodec")
	}
	if p.Video != nil {
		if len(p.Video.Passes) == 0 {
			return fmt.Errorf("vcodec %s has no passes", p.Video.Name)
		}
		if err := checkRanges(map[string]IntRange{"vcodec.width": p.Video.Width, "vcodec.height": p.Video.Height}); err != nil {
			return err
		}
		if !p.Video.Rate.IsZero() && p.Video.Rate.Min.Float() > p.Video.Rate.Max.Float() {
			return fmt.Errorf("vcodec.rate min %s exceeds max %s", p.Video.Rate.Min, p.Video.Rate.Max)
		}
	}
	if p.Audio != nil {
		if len(p.Audio.Passes) == 0 {
			p.Audio.Passes = []string{""}
		}
		if err := checkRanges(map[string]IntRange{
			"acodec.rate":     p.Audio.Rate,
			"acodec.width":    p.Audio.Width,
			"acodec.depth":    p.Audio.Depth,
			"acodec.channels": p.Audio.Channels,
		}); err != nil {
			return err
		}
	}
	return nil
}

func checkRanges(ranges map[string]IntRange) error {
	keys := make([]string, 0, len(ranges))
	for key := range ranges {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		r := ranges[key]
		if r.Min > r.Max || r.Min < 0 {
			return fmt.Errorf("%s range [%d, %d] is invalid", key, r.Min, r.Max)
		}
	}
	return nil
}
