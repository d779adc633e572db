package config

import (
	"os"
	"path/filepath"
)

// DefaultOutputDir is the historical default the packaging scripts and docs
// reference; keep it stable.
const DefaultOutputDir = "photo2stl_output"

// DefaultMaxImages caps dataset size unless the user raises it.
const DefaultMaxImages = 4

func (c *Config) applyDefaults() {
	if c.Tools.Colmap == "" {
		c.Tools.Colmap = "colmap"
	}

	if c.Pipeline.Matcher == "" {
		c.Pipeline.Matcher = MatcherExhaustive
	}
	if c.Pipeline.MaxImages <= 0 {
		c.Pipeline.MaxImages = DefaultMaxImages
	}

	if c.Output.Directory == "" {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		c.Output.Directory = filepath.Join(cwd, DefaultOutputDir)
	}

	if c.Retry.Backoff == "" {
		c.Retry.Backoff = RetryBackoffLinear
	}
	if c.Retry.InitialDelay == "" {
		c.Retry.InitialDelay = "2s"
	}
	if c.Retry.MaxDelay == "" {
		c.Retry.MaxDelay = "30s"
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 1
	}

	if c.Workspace.RetentionHours <= 0 {
		c.Workspace.RetentionHours = 24
	}

	if c.Daemon.Inbox == "" {
		c.Daemon.Inbox = "./inbox"
	}
	if c.Daemon.MarkerFile == "" {
		c.Daemon.MarkerFile = "ready"
	}
	if c.Daemon.DebounceMS <= 0 {
		c.Daemon.DebounceMS = 2000
	}
	if c.Daemon.SweepInterval == "" {
		c.Daemon.SweepInterval = "5m"
	}
	if c.Daemon.ListenAddr == "" {
		c.Daemon.ListenAddr = "127.0.0.1:8085"
	}
	if c.Daemon.HistoryDB == "" {
		c.Daemon.HistoryDB = "./photo2stl.db"
	}
	if c.Daemon.QueueSize <= 0 {
		c.Daemon.QueueSize = 32
	}
	if c.Daemon.Workers <= 0 {
		// Reconstruction saturates the GPU; one job at a time is the safe default.
		c.Daemon.Workers = 1
	}
	if c.Daemon.NATSSubject == "" {
		c.Daemon.NATSSubject = "photo2stl.jobs"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 20
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
}
