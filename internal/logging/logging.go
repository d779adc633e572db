// Package logging configures the process-wide slog default from the logging
// section of the configuration, with optional rotated file output.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"git.home.luguber.info/inful/photo2stl/internal/config"
)

// Setup installs the default slog logger. The verbose flag forces debug level
// regardless of configured level. Returns a close function for the log file
// writer (a no-op when file logging is disabled).
func Setup(cfg config.LoggingConfig, verbose bool) func() error {
	level := levelFrom(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		}
		w = io.MultiWriter(os.Stderr, lj)
		closeFn = lj.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	return closeFn
}

func levelFrom(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
