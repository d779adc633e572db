package config

import (
	"fmt"
	"time"
)

// Validate rejects configurations the pipeline cannot run with. Defaults are
// applied before validation, so only user-supplied values can fail here.
func (c *Config) Validate() error {
	if c.Tools.Colmap == "" {
		return fmt.Errorf("tools.colmap must not be empty")
	}

	if NormalizeMatcher(string(c.Pipeline.Matcher)) == "" {
		return fmt.Errorf("pipeline.matcher: unknown matcher %q (want exhaustive or sequential)", c.Pipeline.Matcher)
	}
	if c.Pipeline.MaxImages < 1 {
		return fmt.Errorf("pipeline.max_images must be at least 1, got %d", c.Pipeline.MaxImages)
	}

	if NormalizeRetryBackoff(string(c.Retry.Backoff)) == "" {
		return fmt.Errorf("retry.backoff: unknown mode %q", c.Retry.Backoff)
	}
	if _, err := time.ParseDuration(c.Retry.InitialDelay); err != nil {
		return fmt.Errorf("retry.initial_delay: %w", err)
	}
	if _, err := time.ParseDuration(c.Retry.MaxDelay); err != nil {
		return fmt.Errorf("retry.max_delay: %w", err)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries cannot be negative")
	}

	if _, err := time.ParseDuration(c.Daemon.SweepInterval); err != nil {
		return fmt.Errorf("daemon.sweep_interval: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q (want text or json)", c.Logging.Format)
	}

	return nil
}
