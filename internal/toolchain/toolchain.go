// Package toolchain locates and invokes the external reconstruction binaries
// (COLMAP and the OpenMVS tool suite). The photogrammetry itself lives in
// those tools; this package owns process discovery, invocation, and output
// streaming.
package toolchain

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	perrors "git.home.luguber.info/inful/photo2stl/internal/errors"
	"git.home.luguber.info/inful/photo2stl/internal/config"
)

// External tool names. The OpenMVS names match the shipped binaries.
const (
	ColmapTool          = "colmap"
	InterfaceCOLMAPTool = "InterfaceCOLMAP"
	DensifyTool         = "DensifyPointCloud"
	ReconstructTool     = "ReconstructMesh"
	RefineTool          = "RefineMesh"
	TextureTool         = "TextureMesh"
)

// openMVSTools lists the suite resolved inside the OpenMVS bin directory.
var openMVSTools = []string{
	InterfaceCOLMAPTool,
	DensifyTool,
	ReconstructTool,
	RefineTool,
	TextureTool,
}

// Toolchain holds resolved absolute paths for the external binaries.
type Toolchain struct {
	// Colmap is the resolved COLMAP executable path.
	Colmap string
	// OpenMVS maps tool name to resolved path; empty when no bin dir configured.
	OpenMVS map[string]string
}

// Locate resolves the configured tools. A missing COLMAP is fatal; a missing
// or unconfigured OpenMVS bin dir leaves OpenMVS empty, and the pipeline
// decides whether dense stages can be skipped.
func Locate(cfg config.ToolsConfig) (*Toolchain, error) {
	tc := &Toolchain{OpenMVS: map[string]string{}}

	colmap, err := resolveExecutable(cfg.Colmap)
	if err != nil {
		return nil, perrors.ToolNotFound(ColmapTool).
			WithContext("configured", cfg.Colmap)
	}
	tc.Colmap = colmap

	if cfg.OpenMVSBin == "" {
		return tc, nil
	}
	if info, err := os.Stat(cfg.OpenMVSBin); err != nil || !info.IsDir() {
		return nil, perrors.New(perrors.CategoryToolchain, perrors.SeverityFatal, "OpenMVS bin directory not found").
			WithContext("path", cfg.OpenMVSBin)
	}
	tc.OpenMVS = locateOpenMVS(cfg.OpenMVSBin)
	return tc, nil
}

// locateOpenMVS resolves the tool suite inside a bin directory. Missing
// tools are simply absent from the map.
func locateOpenMVS(binDir string) map[string]string {
	found := map[string]string{}
	if binDir == "" {
		return found
	}
	for _, name := range openMVSTools {
		path := filepath.Join(binDir, exeName(name))
		if _, err := os.Stat(path); err == nil {
			found[name] = path
		}
	}
	return found
}

// HasOpenMVS reports whether the mandatory dense-pipeline tools resolved.
// TextureMesh is deliberately excluded: texturing is optional.
func (t *Toolchain) HasOpenMVS() bool {
	for _, name := range []string{InterfaceCOLMAPTool, DensifyTool, ReconstructTool, RefineTool} {
		if t.OpenMVS[name] == "" {
			return false
		}
	}
	return true
}

// OpenMVSTool returns the resolved path for an OpenMVS tool.
func (t *Toolchain) OpenMVSTool(name string) (string, error) {
	if path := t.OpenMVS[name]; path != "" {
		return path, nil
	}
	return "", perrors.ToolNotFound(name)
}

// resolveExecutable accepts either a bare name (PATH lookup) or a path.
func resolveExecutable(nameOrPath string) (string, error) {
	if nameOrPath == "" {
		return "", os.ErrNotExist
	}
	if filepath.Base(nameOrPath) != nameOrPath {
		// Looks like a path; require it to exist.
		if _, err := os.Stat(nameOrPath); err != nil {
			return "", err
		}
		return nameOrPath, nil
	}
	return exec.LookPath(nameOrPath)
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
