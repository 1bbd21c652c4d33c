package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"arista/internal/logging"
)

// Catalog is an immutable set of loaded devices keyed by id.
type Catalog struct {
	devices map[string]*Device
}

// NewCatalog builds a catalog from already constructed devices. Later entries
// with a duplicate id are ignored.
func NewCatalog(devices ...*Device) *Catalog {
	c := &Catalog{devices: make(map[string]*Device, len(devices))}
	for _, d := range devices {
		if d == nil {
			continue
		}
		if _, exists := c.devices[d.ID]; !exists {
			c.devices[d.ID] = d
		}
	}
	return c
}

// LoadFile parses a single device definition. The device id is the file name
// without its .json extension.
func LoadFile(path string) (*Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset file: %w", err)
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	device, err := decodeDevice(id, data)
	if err != nil {
		return nil, err
	}
	device.Filename = path
	return device, nil
}

// LoadDirs loads every *.json device definition found in dirs. Directories
// that do not exist are skipped. Earlier directories take precedence on id
// collisions. Invalid files are logged and skipped.
func LoadDirs(dirs []string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var devices []*Device
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read preset dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			device, err := LoadFile(path)
			if err != nil {
				logger.Warn("skipping preset file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "preset_load_failed"),
					logging.String(logging.FieldErrorHint, "fix or remove the file"),
					logging.String(logging.FieldImpact, "device unavailable"),
				)
				continue
			}
			devices = append(devices, device)
		}
	}
	catalog := NewCatalog(devices...)
	logger.Debug("preset catalog loaded", logging.Int("devices", catalog.Len()))
	return catalog, nil
}

// Len returns the number of devices.
func (c *Catalog) Len() int { return len(c.devices) }

// LookupDevice returns the device with the given id.
func (c *Catalog) LookupDevice(id string) (*Device, error) {
	if device, ok := c.devices[id]; ok {
		return device, nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrDeviceNotFound, id, strings.Join(c.IDs(), ", "))
}

// IDs returns the sorted device ids.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Devices returns the devices ordered by id.
func (c *Catalog) Devices() []*Device {
	out := make([]*Device, 0, len(c.devices))
	for _, id := range c.IDs() {
		out = append(out, c.devices[id])
	}
	return out
}

// VersionInfo returns one "id, version" line per device for update checks.
func (c *Catalog) VersionInfo() string {
	var b strings.Builder
	for _, d := range c.Devices() {
		fmt.Fprintf(&b, "%s, %s\n", d.ID, d.Version)
	}
	return b.String()
}
