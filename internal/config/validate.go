package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if len(c.Paths.PresetDirs) == 0 {
		return errors.New("paths.preset_dirs must list at least one directory")
	}
	return nil
}

func (c *Config) validateEngine() error {
	switch c.Engine.Backend {
	case "ffmpeg", "drapto":
	default:
		return fmt.Errorf("engine.backend: unsupported value %q (use ffmpeg or drapto)", c.Engine.Backend)
	}
	if c.Engine.Threads < 0 {
		return errors.New("engine.threads must be zero or positive")
	}
	if c.Engine.ProbeTimeout <= 0 {
		return errors.New("engine.probe_timeout must be positive")
	}
	if c.Engine.StopGrace <= 0 {
		return errors.New("engine.stop_grace must be positive")
	}
	if c.Engine.DVDTitleScanLimit < 1 {
		return errors.New("engine.dvd_title_scan_limit must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.StatusIntervalMS <= 0 {
		return errors.New("workflow.status_interval_ms must be positive")
	}
	if c.Workflow.CancelCheckIntervalMS <= 0 {
		return errors.New("workflow.cancel_check_interval_ms must be positive")
	}
	if c.Workflow.CancelCheckIntervalMS > c.Workflow.StatusIntervalMS {
		return errors.New("workflow.cancel_check_interval_ms must not exceed workflow.status_interval_ms")
	}
	if c.Workflow.StallTimeout < 0 {
		return errors.New("workflow.stall_timeout must be zero or positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if topic := c.Notifications.NtfyTopic; topic != "" {
		u, err := url.Parse(topic)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic: %q is not an http(s) URL", topic)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
