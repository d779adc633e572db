// Package workspace manages staging directories for reconstruction runs,
// supporting both ephemeral (timestamped) and persistent (fixed-path) modes.
//
// Ephemeral mode creates timestamped directories (e.g., photo2stl-20260829-122336)
// suitable for one-shot runs; the daemon sweeps them past a retention age.
//
// Persistent mode uses a fixed directory path that survives across runs,
// letting operators inspect intermediate COLMAP/OpenMVS artifacts.
package workspace
