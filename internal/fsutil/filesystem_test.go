package fsutil

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSystems(t *testing.T) {
	dir := t.TempDir()
	for name, fsys := range map[string]FileSystem{
		"os":     OSFileSystem{},
		"memory": NewMemoryFileSystem(),
	} {
		t.Run(name, func(t *testing.T) {
			sub := filepath.Join(dir, name, "exports")
			require.NoError(t, fsys.MkdirAll(sub, 0o755))

			path := filepath.Join(sub, "grid.png")
			w, err := fsys.Create(path)
			require.NoError(t, err)
			_, err = w.Write([]byte("PNG"))
			require.NoError(t, err)
			require.NoError(t, w.Close())

			data, err := fsys.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, []byte("PNG"), data)

			_, err = fsys.ReadFile(filepath.Join(sub, "missing.png"))
			assert.ErrorIs(t, err, fs.ErrNotExist)
		})
	}
}

func TestMemoryFileSystemBookkeeping(t *testing.T) {
	m := NewMemoryFileSystem()
	require.NoError(t, m.MkdirAll("/a/b", 0o755))
	assert.True(t, m.IsDir("/a"))
	assert.True(t, m.IsDir("/a/b/"))
	assert.False(t, m.IsDir("/c"))

	for _, name := range []string{"/a/b/2.png", "/a/1.png"} {
		w, err := m.Create(name)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	assert.Equal(t, []string{"/a/1.png", "/a/b/2.png"}, m.Files())
}
