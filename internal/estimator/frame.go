package estimator

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/vision.nav/internal/geometry"
)

// ToNav converts a camera-to-world pose into the navigation frame. The mount
// offset is added to the camera translation first, then the learned bias
// rotation is applied on top: navPose = (cameraPose + offset).Compose(bias).
// The result stays on vision axes; use geometry.ToNED for NED components and
// navPose.R.Euler() for the attitude.
func ToNav(cameraPose, bias geometry.RigidTransform, mountOffset r3.Vec) geometry.RigidTransform {
	return cameraPose.Translate(mountOffset).Compose(bias)
}

// MountOffset converts a camera position given in body axes (x forward,
// y right, z down, metres) into the vision-axis offset added to every raw
// camera translation.
func MountOffset(forward, right, down float64) r3.Vec {
	return r3.Vec{X: -right, Y: -down, Z: -forward}
}
