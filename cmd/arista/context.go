package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"arista/internal/config"
	"arista/internal/engine"
	"arista/internal/logging"
	"arista/internal/profile"
	"arista/internal/services"
	"arista/internal/workflow"
)

// overrides lets tests substitute the engine and source inspection.
type overrides struct {
	factory   engine.Factory
	inspector workflow.Inspector
	skipDeps  bool
}

type commandContext struct {
	configFlag *string
	quiet      *bool
	verbose    *bool
	logFormat  *string
	overrides  *overrides

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, quiet, verbose *bool, logFormat *string, ov *overrides) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		quiet:      quiet,
		verbose:    verbose,
		logFormat:  logFormat,
		overrides:  ov,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if c.logFormat != nil && strings.TrimSpace(*c.logFormat) != "" {
			cfg.Logging.Format = strings.ToLower(strings.TrimSpace(*c.logFormat))
			if err := cfg.Validate(); err != nil {
				c.configErr = services.Wrap(services.ErrConfiguration, "config", "log format", "", err)
				return
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) levelOverride() string {
	switch {
	case c.verbose != nil && *c.verbose:
		return "debug"
	case c.quiet != nil && *c.quiet:
		return "warn"
	default:
		return ""
	}
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg, c.levelOverride())
	})
	return c.logger, c.loggerErr
}

// presetDirs is the catalog search path: user directories first, then the
// system directory.
func presetDirs(cfg *config.Config) []string {
	dirs := append([]string(nil), cfg.Paths.PresetDirs...)
	if cfg.Paths.SystemPresetDir != "" {
		dirs = append(dirs, cfg.Paths.SystemPresetDir)
	}
	return dirs
}

// loadCatalog seeds the writable preset directory on first use and loads
// every device.
func (c *commandContext) loadCatalog(ctx context.Context) (*config.Config, *profile.Catalog, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Paths.SystemPresetDir != "" {
		written, err := profile.Reset(ctx, profile.ResetOptions{
			Sources: []string{cfg.Paths.SystemPresetDir},
			Target:  cfg.PresetWriteDir(),
		})
		if err != nil {
			logging.WarnWithContext(logger, "initial preset copy failed", "preset_seed_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "system presets are still read in place"),
				logging.String(logging.FieldErrorHint, "check permissions on "+cfg.PresetWriteDir()),
			)
		} else if len(written) > 0 {
			logger.Info("copied system presets", logging.Int("files", len(written)), logging.String("target", cfg.PresetWriteDir()))
		}
	}
	catalog, err := profile.LoadDirs(presetDirs(cfg), logger)
	if err != nil {
		return nil, nil, nil, services.Wrap(services.ErrConfiguration, "presets", "load", "", err)
	}
	return cfg, catalog, logger, nil
}
