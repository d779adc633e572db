package toolchain

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
	"time"

	"git.home.luguber.info/inful/photo2stl/internal/config"
)

// ToolStatus describes one external tool for the `tools` report.
type ToolStatus struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Found   bool   `json:"found"`
	Version string `json:"version,omitempty"`
}

// Probe resolves the toolchain and reports per-tool availability.
// It never fails: missing tools come back with Found=false.
func Probe(ctx context.Context, cfg config.ToolsConfig) []ToolStatus {
	statuses := make([]ToolStatus, 0, len(openMVSTools)+1)

	colmapStatus := ToolStatus{Name: ColmapTool}
	if path, err := resolveExecutable(cfg.Colmap); err == nil {
		colmapStatus.Found = true
		colmapStatus.Path = path
		colmapStatus.Version = probeVersion(ctx, path, "help")
	}
	statuses = append(statuses, colmapStatus)

	// Resolved directly rather than through Locate: a broken COLMAP must
	// not hide OpenMVS tools that resolve fine on their own.
	suite := locateOpenMVS(cfg.OpenMVSBin)
	for _, name := range openMVSTools {
		st := ToolStatus{Name: name}
		if path := suite[name]; path != "" {
			st.Found = true
			st.Path = path
			st.Version = probeVersion(ctx, path)
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// probeVersion runs the binary with the given args and returns the first
// non-empty output line. Best effort with a short timeout; COLMAP prints its
// version banner at the top of `colmap help`, the OpenMVS tools print theirs
// before the usage text when invoked without arguments.
func probeVersion(ctx context.Context, bin string, args ...string) string {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, bin, args...).CombinedOutput()
	if err != nil && len(out) == 0 {
		return ""
	}
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}
