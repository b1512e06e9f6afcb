package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	safeDir := filepath.Join(tmpDir, "safe")
	unsafeDir := filepath.Join(tmpDir, "unsafe")
	require.NoError(t, os.MkdirAll(safeDir, 0o755))
	require.NoError(t, os.MkdirAll(unsafeDir, 0o755))
	link := filepath.Join(safeDir, "evil-symlink")
	require.NoError(t, os.Symlink(unsafeDir, link))

	tests := []struct {
		name    string
		path    string
		dir     string
		wantErr bool
	}{
		{"file in dir", filepath.Join(tmpDir, "grid.png"), tmpDir, false},
		{"nested file not yet created", filepath.Join(tmpDir, "exports", "grid.png"), tmpDir, false},
		{"dot dot", filepath.Join(tmpDir, "..", "grid.png"), tmpDir, true},
		{"relative escape", "../../../etc/passwd", tmpDir, true},
		{"absolute outside", "/etc/passwd", tmpDir, true},
		{"through symlink", filepath.Join(link, "grid.png"), safeDir, true},
		{"symlink itself", link, safeDir, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, tt.dir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()

	assert.NoError(t, ValidatePathWithinAllowedDirs(filepath.Join(a, "grid.png"), []string{a, b}))
	assert.NoError(t, ValidatePathWithinAllowedDirs(filepath.Join(b, "grid.png"), []string{a, b}))
	assert.Error(t, ValidatePathWithinAllowedDirs("/etc/passwd", []string{a, b}))
	assert.Error(t, ValidatePathWithinAllowedDirs(filepath.Join(a, "grid.png"), nil))
}

func TestValidateExportPath(t *testing.T) {
	assert.NoError(t, ValidateExportPath(filepath.Join(os.TempDir(), "grid.png")))
	assert.NoError(t, ValidateExportPath("grid.png"))
	assert.Error(t, ValidateExportPath("/etc/passwd"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                   "unknown",
		"...":                "unknown",
		"session-01.png":     "session-01.png",
		"a b/c":              "a_b_c",
		"x   y":              "x_y",
		"../../etc":          "etc",
		"_hidden_":           "hidden",
		"9f1c2d7e-1b2c-4d5e": "9f1c2d7e-1b2c-4d5e",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 128)
}
