package estimator

import (
	"github.com/banshee-data/vision.nav/internal/geometry"
)

// BiasAccumulator learns the vision-to-NED rotation as the running mean of
// the vehicle attitude sampled while the estimator initializes.
type BiasAccumulator struct {
	mean geometry.Euler
	n    int
	bias geometry.RigidTransform
}

// NewBiasAccumulator returns an empty accumulator with an identity bias.
func NewBiasAccumulator() *BiasAccumulator {
	return &BiasAccumulator{bias: geometry.IdentityTransform()}
}

// Add folds one attitude sample into the mean, mean = (mean*n + s)/(n+1),
// and rebuilds the bias rotation from it. Each component is averaged on its
// wrapped offset from the current mean.
func (b *BiasAccumulator) Add(s geometry.Euler) {
	w := 1 / float64(b.n+1)
	b.mean = geometry.Euler{
		Roll:  geometry.WrapAngle(b.mean.Roll + w*geometry.WrapAngle(s.Roll-b.mean.Roll)),
		Pitch: geometry.WrapAngle(b.mean.Pitch + w*geometry.WrapAngle(s.Pitch-b.mean.Pitch)),
		Yaw:   geometry.WrapAngle(b.mean.Yaw + w*geometry.WrapAngle(s.Yaw-b.mean.Yaw)),
	}
	b.n++
	b.bias = geometry.RigidTransform{R: geometry.RotationFromEuler(b.mean)}
}

// Mean returns the current mean attitude.
func (b *BiasAccumulator) Mean() geometry.Euler { return b.mean }

// Samples returns how many samples the mean holds.
func (b *BiasAccumulator) Samples() int { return b.n }

// Bias returns the rotation-only vision-to-NED transform.
func (b *BiasAccumulator) Bias() geometry.RigidTransform { return b.bias }

// Reset discards all samples.
func (b *BiasAccumulator) Reset() {
	b.mean = geometry.Euler{}
	b.n = 0
	b.bias = geometry.IdentityTransform()
}
