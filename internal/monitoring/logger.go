package monitoring

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var debug atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug turns Debugf output on or off.
func SetDebug(on bool) { debug.Store(on) }

// DebugEnabled reports whether Debugf writes anything.
func DebugEnabled() bool { return debug.Load() }

// Debugf logs through Logf only when debug output is enabled.
func Debugf(format string, v ...interface{}) {
	if debug.Load() {
		Logf(format, v...)
	}
}

// Coalescer folds a noisy, repeating failure into one notice every N
// occurrences.
type Coalescer struct {
	mu    sync.Mutex
	every int
	count int
}

// NewCoalescer reports every n-th hit. n below 1 reports every hit.
func NewCoalescer(n int) *Coalescer {
	if n < 1 {
		n = 1
	}
	return &Coalescer{every: n}
}

// Hit records one occurrence and returns the running total and whether this
// occurrence should be reported.
func (c *Coalescer) Hit() (total int, report bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count, c.count%c.every == 0
}

// Count returns the running total.
func (c *Coalescer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Reset zeroes the running total.
func (c *Coalescer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
}

// RotatingOutput points the standard logger at a size-rotated file and, when
// tee is set, also at stderr. The returned closer flushes and closes the file.
func RotatingOutput(path string, tee bool) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		Compress:   true,
	}
	var w io.Writer = lj
	if tee {
		w = io.MultiWriter(os.Stderr, lj)
	}
	log.SetOutput(w)
	return lj, nil
}
