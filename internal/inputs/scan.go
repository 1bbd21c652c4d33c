package inputs

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pilebones/go-udev/crawler"

	"arista/internal/logging"
)

// DefaultUdevDataDir is where udev persists device properties.
const DefaultUdevDataDir = "/run/udev/data"

// ScanOptions tune Scan.
type ScanOptions struct {
	// UdevDataDir overrides DefaultUdevDataDir.
	UdevDataDir string
	// Crawl overrides the sysfs crawler. Tests substitute a fixed list.
	Crawl  func(ctx context.Context) ([]map[string]string, error)
	Logger *slog.Logger
}

// Scan lists optical drives and capture devices currently present.
func Scan(ctx context.Context, opts ScanOptions) ([]Input, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	crawl := opts.Crawl
	if crawl == nil {
		crawl = crawlSysfs
	}
	dataDir := opts.UdevDataDir
	if dataDir == "" {
		dataDir = DefaultUdevDataDir
	}

	envs, err := crawl(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan devices: %w", err)
	}
	seen := make(map[string]bool, len(envs))
	var inputs []Input
	for _, env := range envs {
		merged := mergeEnv(env, udevProperties(dataDir, env))
		in, ok := fromEnv(merged)
		if !ok || seen[in.Device] {
			continue
		}
		seen[in.Device] = true
		logger.Debug("input discovered",
			logging.String("device", in.Device),
			logging.String("kind", in.Kind.String()),
			logging.String("label", in.Label),
		)
		inputs = append(inputs, in)
	}
	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].Kind != inputs[j].Kind {
			return inputs[i].Kind < inputs[j].Kind
		}
		return inputs[i].Device < inputs[j].Device
	})
	return inputs, nil
}

// crawlSysfs walks /sys/devices for matching uevent files.
func crawlSysfs(ctx context.Context) ([]map[string]string, error) {
	queue := make(chan crawler.Device)
	errs := make(chan error, 1)
	quit := crawler.ExistingDevices(queue, errs, matcher())

	var envs []map[string]string
	for {
		select {
		case <-ctx.Done():
			select {
			case quit <- struct{}{}:
			default:
			}
			for range queue {
			}
			return nil, ctx.Err()
		case dev, ok := <-queue:
			if !ok {
				select {
				case err := <-errs:
					if len(envs) == 0 {
						return nil, err
					}
				default:
				}
				return envs, nil
			}
			envs = append(envs, dev.Env)
		}
	}
}

// udevProperties reads the E: lines udev stored for the device.
func udevProperties(dir string, env map[string]string) map[string]string {
	major, minor := env["MAJOR"], env["MINOR"]
	if major == "" || minor == "" {
		return nil
	}
	prefix := "c"
	if env["SUBSYSTEM"] == subsystemBlock {
		prefix = "b"
	}
	f, err := os.Open(filepath.Join(dir, prefix+major+":"+minor))
	if err != nil {
		return nil
	}
	defer f.Close()
	props := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line, ok := strings.CutPrefix(scanner.Text(), "E:")
		if !ok {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			props[key] = value
		}
	}
	return props
}

func mergeEnv(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range extra {
		out[k] = v
	}
	// The kernel's view wins for identity keys.
	for k, v := range base {
		out[k] = v
	}
	return out
}
