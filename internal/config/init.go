package config

import (
	"os"

	"gopkg.in/yaml.v3"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
)

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return perrors.New(perrors.CategoryConfig, perrors.SeverityFatal,
			"configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath)
	}

	exampleConfig := Config{
		Tools: ToolsConfig{
			Colmap:     "colmap",
			OpenMVSBin: "/usr/local/bin/OpenMVS",
		},
		Pipeline: PipelineConfig{
			Matcher:   MatcherExhaustive,
			MaxImages: DefaultMaxImages,
			Texture:   false,
		},
		Output: OutputConfig{
			Directory: "./" + DefaultOutputDir,
			Clean:     true,
		},
		Retry: RetryConfig{
			Backoff:      RetryBackoffLinear,
			InitialDelay: "2s",
			MaxDelay:     "30s",
			MaxRetries:   1,
		},
		Daemon: DaemonConfig{
			Inbox:      "./inbox",
			ListenAddr: "127.0.0.1:8085",
			HistoryDB:  "./photo2stl.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return perrors.Wrap(err, perrors.CategoryConfig, perrors.SeverityFatal, "marshal starter config")
	}

	header := "# photo2stl configuration\n" +
		"# COLMAP and OpenMVS are located via `tools`; everything else has\n" +
		"# working defaults. See `photo2stl tools` to verify the toolchain.\n\n"

	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o644); err != nil {
		return perrors.Wrap(err, perrors.CategoryConfig, perrors.SeverityFatal, "write starter config").
			WithContext("path", configPath)
	}

	return nil
}
