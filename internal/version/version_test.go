package version

import "testing"

func TestDefaultsInitialized(t *testing.T) {
	// All three are stamped by ldflags in release builds; in tests they fall
	// back to "unknown" but must never be empty.
	for name, v := range map[string]string{
		"Version":   Version,
		"BuildTime": BuildTime,
		"GitCommit": GitCommit,
	} {
		if v == "" {
			t.Errorf("%s should not be empty", name)
		}
	}
}
