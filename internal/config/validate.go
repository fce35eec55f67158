package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if c.Encoder.Effort < 1 || c.Encoder.Effort > 10 {
		return fmt.Errorf("encoder.effort must be between 1 and 10, got %d", c.Encoder.Effort)
	}
	if c.Encoder.Distance < 0 {
		return errors.New("encoder.distance must not be negative")
	}
	if c.Encoder.SizeThreshold <= 0 {
		return errors.New("encoder.size_threshold must be positive")
	}
	if c.Encoder.PixelThreshold <= 0 {
		return errors.New("encoder.pixel_threshold must be positive")
	}
	if c.Encoder.TimeoutSeconds <= 0 {
		return errors.New("encoder.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	if c.Processing.Threads <= 0 {
		return errors.New("processing.threads must be positive")
	}
	if c.Processing.GCInterval < 0 {
		return errors.New("processing.gc_interval must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
