package estimator

import "time"

const fpsWindow = 500 * time.Millisecond

// FPSMeter reports the frame rate averaged over half-second windows.
type FPSMeter struct {
	start  time.Time
	frames int
	fps    float64
}

// Tick counts one frame at now and returns the latest rate.
func (m *FPSMeter) Tick(now time.Time) float64 {
	if m.start.IsZero() {
		m.start = now
		return m.fps
	}
	m.frames++
	if elapsed := now.Sub(m.start); elapsed >= fpsWindow {
		m.fps = float64(m.frames) / elapsed.Seconds()
		m.start = now
		m.frames = 0
	}
	return m.fps
}

// FPS returns the rate of the last complete window.
func (m *FPSMeter) FPS() float64 { return m.fps }

// Reset clears the meter.
func (m *FPSMeter) Reset() { *m = FPSMeter{} }
