package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DownloadDir == "" {
		return errors.New("paths.download_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.APIBind != "" {
		if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
			return fmt.Errorf("paths.api_bind must be host:port: %w", err)
		}
	}
	return nil
}

func (c *Config) validateFetch() error {
	quality, err := strconv.Atoi(c.Fetch.AudioQuality)
	if err != nil {
		return fmt.Errorf("fetch.audio_quality must be numeric, got %q", c.Fetch.AudioQuality)
	}
	if quality <= 0 {
		return errors.New("fetch.audio_quality must be positive")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.MaxConcurrent < 0 {
		return errors.New("jobs.max_concurrent must be zero (unbounded) or positive")
	}
	if c.Jobs.TimeoutSeconds < 0 {
		return errors.New("jobs.timeout_seconds must be zero (no timeout) or positive")
	}
	if c.Jobs.RetainTerminal < 0 {
		return errors.New("jobs.retain_terminal must be zero (keep all) or positive")
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
