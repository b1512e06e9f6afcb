package monitoring

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not reach the previous logger")
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetDebug(false)
	}()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	SetDebug(false)
	Debugf("[vis] hidden %d", 1)
	assert.Empty(t, lines)

	SetDebug(true)
	assert.True(t, DebugEnabled())
	Debugf("[vis] shown %d", 2)
	assert.Equal(t, []string{"[vis] shown 2"}, lines)
}

func TestCoalescer(t *testing.T) {
	tests := []struct {
		name    string
		every   int
		hits    int
		reports []int
	}{
		{"every hit", 1, 3, []int{1, 2, 3}},
		{"every third", 3, 7, []int{3, 6}},
		{"zero treated as one", 0, 2, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoalescer(tt.every)
			var got []int
			for i := 0; i < tt.hits; i++ {
				if n, report := c.Hit(); report {
					got = append(got, n)
				}
			}
			assert.Equal(t, tt.reports, got)
			assert.Equal(t, tt.hits, c.Count())
			c.Reset()
			assert.Zero(t, c.Count())
		})
	}
}

func TestRotatingOutput(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "logs", "visionnav.log")
	closer, err := RotatingOutput(path, false)
	require.NoError(t, err)

	log.Print("[vis] rotated line")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(data, []byte("[vis] rotated line")))
}
