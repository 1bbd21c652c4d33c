package config

const (
	defaultConfigPath            = "~/.config/arista/config.toml"
	defaultUserPresetDir         = "~/.config/arista/presets"
	defaultSystemPresetDir       = "/usr/share/arista/presets"
	defaultStateDir              = "~/.local/state/arista"
	defaultLogDir                = "~/.local/state/arista/logs"
	defaultEngineBackend         = "ffmpeg"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultProbeTimeout          = 5
	defaultStopGrace             = 5
	defaultDVDTitleScanLimit     = 8
	defaultStatusIntervalMS      = 500
	defaultCancelCheckIntervalMS = 50
	defaultStallTimeout          = 5
	defaultNotifyTimeout         = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PresetDirs:      []string{defaultUserPresetDir},
			SystemPresetDir: defaultSystemPresetDir,
			StateDir:        defaultStateDir,
			LogDir:          defaultLogDir,
		},
		Engine: Engine{
			Backend:           defaultEngineBackend,
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			ProbeTimeout:      defaultProbeTimeout,
			StopGrace:         defaultStopGrace,
			DVDTitleScanLimit: defaultDVDTitleScanLimit,
		},
		Workflow: Workflow{
			StatusIntervalMS:      defaultStatusIntervalMS,
			CancelCheckIntervalMS: defaultCancelCheckIntervalMS,
			StallTimeout:          defaultStallTimeout,
		},
		History: History{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
