package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains preset search paths and state directories.
type Paths struct {
	// PresetDirs is searched in order; the first entry is where presets are
	// installed and reset to.
	PresetDirs      []string `toml:"preset_dirs"`
	SystemPresetDir string   `toml:"system_preset_dir"`
	StateDir        string   `toml:"state_dir"`
	LogDir          string   `toml:"log_dir"`
}

// Engine selects and tunes the media engine that runs encoding passes.
type Engine struct {
	Backend           string `toml:"backend"`
	FFmpegBinary      string `toml:"ffmpeg_binary"`
	FFprobeBinary     string `toml:"ffprobe_binary"`
	Threads           int    `toml:"threads"`
	ProbeTimeout      int    `toml:"probe_timeout"`
	StopGrace         int    `toml:"stop_grace"`
	DVDTitleScanLimit int    `toml:"dvd_title_scan_limit"`
}

// Workflow contains the orchestrator's polling intervals.
type Workflow struct {
	StatusIntervalMS      int `toml:"status_interval_ms"`
	CancelCheckIntervalMS int `toml:"cancel_check_interval_ms"`
	// StallTimeout is the number of seconds progress may stay flat before a
	// graceful stop is requested. Zero disables stall detection.
	StallTimeout int `toml:"stall_timeout"`
}

// History controls the persisted job run log.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Metrics controls Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Notifications configures ntfy delivery of run results.
type Notifications struct {
	// NtfyTopic is the full topic URL. Empty disables notifications.
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File enables a JSON log file under paths.log_dir in addition to the console.
	File bool `toml:"file"`
}

// Config encapsulates all configuration values for arista.
//
// Configuration sections by subsystem:
//   - Paths: preset search directories and state locations
//   - Engine: backend selection, binaries and process tuning
//   - Workflow: progress and cancellation polling
//   - History: sqlite job history
//   - Metrics: Prometheus textfile output
//   - Notifications: ntfy topic for run results
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Workflow      Workflow      `toml:"workflow"`
	History       History       `toml:"history"`
	Metrics       Metrics       `toml:"metrics"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// NotifyTimeout is the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("arista.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state directory and the writable preset
// directory. The log directory is only created when file logging is enabled.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.PresetWriteDir()}
	if c.Logging.File {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PresetWriteDir returns the directory presets are installed into.
func (c *Config) PresetWriteDir() string {
	if len(c.Paths.PresetDirs) == 0 {
		return ""
	}
	return c.Paths.PresetDirs[0]
}

// HistoryPath returns the sqlite database used for job history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// StatusInterval returns the progress polling period.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Workflow.StatusIntervalMS) * time.Millisecond
}

// CancelCheckInterval returns the period of the cancellation checker.
func (c *Config) CancelCheckInterval() time.Duration {
	return time.Duration(c.Workflow.CancelCheckIntervalMS) * time.Millisecond
}

// StallTimeout returns the flat-progress window, or zero when disabled.
func (c *Config) StallTimeout() time.Duration {
	return time.Duration(c.Workflow.StallTimeout) * time.Second
}

// ProbeTimeout returns the per-input media probe deadline.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Engine.ProbeTimeout) * time.Second
}

// StopGrace returns how long the engine gets between SIGTERM and SIGKILL.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Engine.StopGrace) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
