//go:build !windows

package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/photo2stl/internal/config"
)

func bannerBin(t *testing.T, dir, name, banner string) string {
	t.Helper()
	path := filepath.Join(dir, exeName(name))
	script := "#!/bin/sh\necho \"" + banner + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestProbeCapturesOpenMVSVersions(t *testing.T) {
	dir := t.TempDir()
	colmap := bannerBin(t, dir, "colmap", "COLMAP 3.9.1")

	mvsDir := filepath.Join(dir, "OpenMVS")
	require.NoError(t, os.MkdirAll(mvsDir, 0o755))
	for _, name := range openMVSTools {
		bannerBin(t, mvsDir, name, name+" v2.1.0")
	}

	statuses := Probe(t.Context(), config.ToolsConfig{Colmap: colmap, OpenMVSBin: mvsDir})
	require.Len(t, statuses, len(openMVSTools)+1)

	assert.Equal(t, "COLMAP 3.9.1", statuses[0].Version)
	for _, st := range statuses[1:] {
		assert.True(t, st.Found, "tool %s should resolve", st.Name)
		assert.Equal(t, st.Name+" v2.1.0", st.Version)
	}
}

func TestProbeOpenMVSIndependentOfColmap(t *testing.T) {
	dir := t.TempDir()
	mvsDir := filepath.Join(dir, "OpenMVS")
	require.NoError(t, os.MkdirAll(mvsDir, 0o755))
	bannerBin(t, mvsDir, DensifyTool, DensifyTool+" v2.1.0")

	statuses := Probe(t.Context(), config.ToolsConfig{
		Colmap:     filepath.Join(dir, "no-such-colmap"),
		OpenMVSBin: mvsDir,
	})

	byName := map[string]ToolStatus{}
	for _, st := range statuses {
		byName[st.Name] = st
	}
	assert.False(t, byName[ColmapTool].Found)
	assert.True(t, byName[DensifyTool].Found,
		"a missing COLMAP must not mask resolvable OpenMVS tools")
	assert.False(t, byName[ReconstructTool].Found)
}
