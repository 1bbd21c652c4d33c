// Package inputs discovers transcodable devices: optical drives that can hold
// a DVD and Video4Linux capture devices.
//
// Scan walks sysfs through the go-udev crawler and enriches each device with
// the properties udev stored for it. Monitor follows the kernel's udev netlink
// stream and reports arrivals and removals while it runs.
package inputs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pilebones/go-udev/netlink"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind distinguishes optical drives from capture devices.
type Kind int

const (
	KindDVD Kind = iota
	KindCapture
)

func (k Kind) String() string {
	switch k {
	case KindDVD:
		return "dvd"
	case KindCapture:
		return "capture"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Input is a discovered device.
type Input struct {
	Kind   Kind
	Device string
	// Label is the disc volume label for drives holding media, otherwise the
	// device model.
	Label string
	Model string
	// HasMedia reports whether an optical drive holds a disc. Capture devices
	// always report true.
	HasMedia bool
}

// Locator returns the input string the transcoder accepts for this device.
func (in Input) Locator() string {
	switch in.Kind {
	case KindDVD:
		return "dvd://" + in.Device
	case KindCapture:
		return "v4l2://" + in.Device
	default:
		return in.Device
	}
}

const (
	subsystemBlock = "block"
	subsystemV4L   = "video4linux"
)

// matcher selects optical drives and capture devices.
func matcher() *netlink.RuleDefinitions {
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"SUBSYSTEM": "^" + subsystemBlock + "$",
			"DEVNAME":   `(^|/)sr[0-9]+$`,
		},
	})
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"SUBSYSTEM": "^" + subsystemV4L + "$",
			"DEVNAME":   `(^|/)video[0-9]+$`,
		},
	})
	return rules
}

// fromEnv builds an Input from a uevent environment.
func fromEnv(env map[string]string) (Input, bool) {
	device := deviceName(env)
	if device == "" {
		return Input{}, false
	}
	var in Input
	switch base := filepath.Base(device); env["SUBSYSTEM"] {
	case subsystemBlock:
		if !numbered(base, "sr") {
			return Input{}, false
		}
		in = Input{Kind: KindDVD, Device: device, HasMedia: env["ID_CDROM_MEDIA"] == "1"}
	case subsystemV4L:
		if !numbered(base, "video") {
			return Input{}, false
		}
		in = Input{Kind: KindCapture, Device: device, HasMedia: true}
	default:
		return Input{}, false
	}
	in.Model = firstNonEmpty(env["ID_V4L_PRODUCT"], env["ID_MODEL"], env["NAME"])
	in.Model = strings.Trim(strings.ReplaceAll(in.Model, "_", " "), "\" ")
	in.Label = in.Model
	if label := DiscLabel(env["ID_FS_LABEL"]); label != "" && in.Kind == KindDVD && in.HasMedia {
		in.Label = label
	}
	if in.Label == "" {
		in.Label = filepath.Base(device)
	}
	return in, true
}

// DiscLabel title-cases a volume label and turns underscores into spaces,
// so "THE_MATRIX" becomes "The Matrix".
func DiscLabel(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", " "))
	if raw == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.Join(strings.Fields(raw), " "))
}

func deviceName(env map[string]string) string {
	if devname := strings.TrimSpace(env["DEVNAME"]); devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	return "/dev/" + filepath.Base(devpath)
}

// numbered reports whether name is prefix followed by a device number.
func numbered(name, prefix string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
