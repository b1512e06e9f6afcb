package estimator

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
)

// LowPass is a first-order exponential filter on a vector:
// out = raw*(1-Alpha) + prev*Alpha. Alpha 0 passes raw through.
type LowPass struct {
	Alpha float64
	prev  r3.Vec
}

// Update filters raw and stores the result as the new memory.
func (f *LowPass) Update(raw r3.Vec) r3.Vec {
	out := r3.Add(r3.Scale(1-f.Alpha, raw), r3.Scale(f.Alpha, f.prev))
	f.prev = out
	return out
}

// Value returns the last filtered output.
func (f *LowPass) Value() r3.Vec { return f.prev }

// Reset zeroes the filter memory.
func (f *LowPass) Reset() { f.prev = r3.Vec{} }

// AttitudeLowPass applies the LowPass formula to each Euler angle. The
// blend runs on the wrapped difference so that yaw crossing +-pi does not
// swing through zero.
type AttitudeLowPass struct {
	Alpha float64
	prev  geometry.Euler
}

// Update filters raw and stores the result as the new memory.
func (f *AttitudeLowPass) Update(raw geometry.Euler) geometry.Euler {
	k := 1 - f.Alpha
	out := geometry.Euler{
		Roll:  blendAngle(f.prev.Roll, raw.Roll, k),
		Pitch: blendAngle(f.prev.Pitch, raw.Pitch, k),
		Yaw:   blendAngle(f.prev.Yaw, raw.Yaw, k),
	}
	f.prev = out
	return out
}

// Value returns the last filtered output.
func (f *AttitudeLowPass) Value() geometry.Euler { return f.prev }

// Reset zeroes the filter memory.
func (f *AttitudeLowPass) Reset() { f.prev = geometry.Euler{} }

func blendAngle(prev, raw, k float64) float64 {
	return geometry.WrapAngle(prev + k*geometry.WrapAngle(raw-prev))
}
