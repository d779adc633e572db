package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/photo2stl/internal/config"
	"git.home.luguber.info/inful/photo2stl/internal/daemon"
	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/logging"
	"git.home.luguber.info/inful/photo2stl/internal/pipeline"
	"git.home.luguber.info/inful/photo2stl/internal/toolchain"
	"git.home.luguber.info/inful/photo2stl/internal/version"
)

const timeRounding = 10 * time.Millisecond

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Inputs        []string `arg:"" optional:"" help:"Image files, a capture directory, or a git+URL source"`
		Output        string   `short:"o" help:"Output directory for the STL (overrides config)"`
		Until         string   `short:"u" help:"Stop after the named pipeline stage"`
		KeepWorkspace bool     `short:"k" help:"Keep the staging workspace for inspection"`
		Texture       bool     `help:"Run the texturing stage (requires TextureMesh)"`
	} `cmd:"" help:"Reconstruct a 3D-printable STL from photos"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`

	Tools struct{} `cmd:"" help:"Probe the external reconstruction tools (COLMAP, OpenMVS)"`

	Stages struct{} `cmd:"" help:"List pipeline stages in execution order"`

	Daemon struct{} `cmd:"" help:"Run continuously: watch an inbox and serve the job API"`

	Jobs struct {
		List struct {
			Limit int `short:"n" help:"Maximum jobs to show" default:"20"`
		} `cmd:"" help:"List recent jobs from the ledger"`
		Show struct {
			ID string `arg:"" help:"Job ID"`
		} `cmd:"" help:"Show one job with its event history"`
	} `cmd:"" help:"Inspect the daemon's job ledger"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	kctx := kong.Parse(&CLI)
	adapter := perrors.NewCLIErrorAdapter(CLI.Verbose, nil)

	switch kctx.Command() {
	case "build", "build <inputs>":
		adapter.HandleError(runBuild())
	case "init":
		adapter.HandleError(runInit())
	case "tools":
		adapter.HandleError(runTools())
	case "stages":
		runStages()
	case "daemon":
		adapter.HandleError(runDaemon())
	case "jobs list":
		adapter.HandleError(runJobsList())
	case "jobs show <id>":
		adapter.HandleError(runJobsShow())
	case "version":
		fmt.Printf("photo2stl %s (commit %s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
	}
}

// loadConfig reads the config file when present; a missing default file falls
// back to built-in defaults so `photo2stl build ./photos` works out of the box.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(CLI.Config); os.IsNotExist(err) {
		if CLI.Config == "config.yaml" {
			return config.Default(), nil
		}
		return nil, perrors.ConfigNotFound(CLI.Config)
	}
	return config.Load(CLI.Config)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runBuild() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLogs := logging.Setup(cfg.Logging, CLI.Verbose)
	defer func() { _ = closeLogs() }()

	ctx, cancel := signalContext()
	defer cancel()

	inputs := CLI.Build.Inputs
	if len(inputs) == 0 {
		inputs = []string{"."}
	}
	if CLI.Build.Texture {
		cfg.Pipeline.Texture = true
	}

	report, err := pipeline.Execute(ctx, cfg, pipeline.RunRequest{
		Inputs:        inputs,
		Until:         pipeline.StageName(CLI.Build.Until),
		OutputDir:     CLI.Build.Output,
		KeepWorkspace: CLI.Build.KeepWorkspace,
	})
	if report != nil {
		printReport(report)
	}
	return err
}

func printReport(r *pipeline.RunReport) {
	fmt.Println()
	fmt.Printf("  Source:   %s (%d images)\n", r.Source, r.Images)
	for _, s := range r.Stages {
		fmt.Printf("  %-22s %-8s %s\n", s.Stage, s.Status, s.Duration.Round(timeRounding))
	}
	if r.STLPath != "" {
		fmt.Printf("  STL:      %s\n", r.STLPath)
	}
	if r.MeshInfo != nil {
		fmt.Printf("  Mesh:     %d triangles, watertight=%v\n",
			r.MeshInfo.Triangles, r.MeshInfo.Watertight)
	}
	fmt.Printf("  Duration: %s\n", r.Duration.Round(timeRounding))
}

func runInit() error {
	if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", CLI.Config)
	return nil
}

func runTools() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging, CLI.Verbose)

	ctx, cancel := signalContext()
	defer cancel()

	missing := false
	for _, st := range toolchain.Probe(ctx, cfg.Tools) {
		state := "ok"
		if !st.Found {
			state = "MISSING"
			missing = true
		}
		fmt.Printf("  %-18s %-8s %s", st.Name, state, st.Path)
		if st.Version != "" {
			fmt.Printf("  (%s)", st.Version)
		}
		fmt.Println()
	}
	if missing {
		return perrors.New(perrors.CategoryToolchain, perrors.SeverityError,
			"one or more external tools are missing")
	}
	return nil
}

func runStages() {
	for _, name := range pipeline.KnownStages() {
		fmt.Println(name)
	}
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLogs := logging.Setup(cfg.Logging, CLI.Verbose)
	defer func() { _ = closeLogs() }()

	ctx, cancel := signalContext()
	defer cancel()

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	slog.Info("photo2stl daemon", "version", version.Version)
	return d.Run(ctx)
}
