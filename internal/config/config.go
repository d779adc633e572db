package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Tools     ToolsConfig     `yaml:"tools"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Output    OutputConfig    `yaml:"output"`
	Retry     RetryConfig     `yaml:"retry"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ToolsConfig locates the external reconstruction binaries.
type ToolsConfig struct {
	// Colmap is the COLMAP executable: an absolute path or a name resolved via PATH.
	Colmap string `yaml:"colmap"`
	// OpenMVSBin is the directory holding the OpenMVS tools (InterfaceCOLMAP,
	// DensifyPointCloud, ReconstructMesh, RefineMesh, TextureMesh).
	OpenMVSBin string `yaml:"openmvs_bin,omitempty"`
}

// MatcherKind selects the COLMAP matching strategy.
type MatcherKind string

const (
	// MatcherExhaustive compares every image pair; right for small capture sets.
	MatcherExhaustive MatcherKind = "exhaustive"
	// MatcherSequential assumes ordered captures (video frames, turntable shots).
	MatcherSequential MatcherKind = "sequential"
)

// PipelineConfig controls the reconstruction pipeline.
type PipelineConfig struct {
	Matcher   MatcherKind `yaml:"matcher,omitempty"`
	MaxImages int         `yaml:"max_images,omitempty"`
	// Texture enables the TextureMesh stage. Off by default: printing does not
	// need textures and the stage is the slowest in the OpenMVS sequence.
	Texture bool `yaml:"texture,omitempty"`
	// StopAfter truncates the pipeline after the named stage (empty = run all).
	StopAfter string `yaml:"stop_after,omitempty"`
}

// OutputConfig represents output configuration
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"` // Clean output directory before a run
	// AsciiSTL selects ASCII STL output instead of binary.
	AsciiSTL bool `yaml:"ascii_stl,omitempty"`
}

// RetryConfig holds retry/backoff settings for transient tool failures.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
	MaxRetries   int              `yaml:"max_retries,omitempty"`
}

// WorkspaceConfig controls staging directories.
type WorkspaceConfig struct {
	BaseDir    string `yaml:"base_dir,omitempty"`
	Persistent bool   `yaml:"persistent,omitempty"`
	// RetentionHours bounds how long ephemeral workspaces survive before the
	// daemon's sweep removes them. Zero keeps the default.
	RetentionHours int `yaml:"retention_hours,omitempty"`
}

// DaemonConfig configures continuous mode.
type DaemonConfig struct {
	Inbox         string `yaml:"inbox,omitempty"`
	MarkerFile    string `yaml:"marker_file,omitempty"`
	DebounceMS    int    `yaml:"debounce_ms,omitempty"`
	SweepInterval string `yaml:"sweep_interval,omitempty"`
	ListenAddr    string `yaml:"listen_addr,omitempty"`
	HistoryDB     string `yaml:"history_db,omitempty"`
	QueueSize     int    `yaml:"queue_size,omitempty"`
	Workers       int    `yaml:"workers,omitempty"`
	// NATS event publishing is enabled only when a URL is set.
	NATSURL     string `yaml:"nats_url,omitempty"`
	NATSSubject string `yaml:"nats_subject,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
	// File enables rotated file logging in addition to stderr.
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFiles(); err != nil {
		// Don't fail if .env doesn't exist, just note it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns a configuration with all defaults applied and no file input.
// Used by commands that can run without a config file on disk.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
