package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Euler holds roll, pitch and yaw in radians. See the package doc for the
// convention.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Add returns the component-wise sum.
func (e Euler) Add(o Euler) Euler {
	return Euler{Roll: e.Roll + o.Roll, Pitch: e.Pitch + o.Pitch, Yaw: e.Yaw + o.Yaw}
}

// Scale returns every component multiplied by f.
func (e Euler) Scale(f float64) Euler {
	return Euler{Roll: e.Roll * f, Pitch: e.Pitch * f, Yaw: e.Yaw * f}
}

// RigidTransform is a rotation followed by a translation: p' = R*p + T.
type RigidTransform struct {
	R Rotation
	T r3.Vec
}

// IdentityTransform returns the transform that leaves every point in place.
func IdentityTransform() RigidTransform {
	return RigidTransform{R: Identity()}
}

// NewTransform builds a transform from Euler angles and a translation.
func NewTransform(e Euler, t r3.Vec) RigidTransform {
	return RigidTransform{R: RotationFromEuler(e), T: t}
}

// Apply maps p through the transform.
func (a RigidTransform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(a.R.Apply(p), a.T)
}

// Compose returns the transform equivalent to applying a and then b:
// R = b.R*a.R, T = b.R*a.T + b.T. The rotation is renormalized when floating
// point drift exceeds OrthonormalTolerance.
func (a RigidTransform) Compose(b RigidTransform) RigidTransform {
	out := RigidTransform{
		R: b.R.Mul(a.R),
		T: r3.Add(b.R.Apply(a.T), b.T),
	}
	if out.R.OrthonormalityError() > OrthonormalTolerance {
		out.R = out.R.Orthonormalize()
	}
	return out
}

// Inverse returns the transform that undoes a.
func (a RigidTransform) Inverse() RigidTransform {
	rt := a.R.T()
	return RigidTransform{R: rt, T: r3.Scale(-1, rt.Apply(a.T))}
}

// Translate returns a copy of a with offset added to its translation.
func (a RigidTransform) Translate(offset r3.Vec) RigidTransform {
	a.T = r3.Add(a.T, offset)
	return a
}

// ToNED remaps a vision-axis vector (x right, y down, z forward) to NED.
func ToNED(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.Z, Y: v.X, Z: v.Y}
}

// FromNED is the inverse of ToNED.
func FromNED(n r3.Vec) r3.Vec {
	return r3.Vec{X: n.Y, Y: n.Z, Z: n.X}
}

// WrapAngle folds a into [-pi, pi].
func WrapAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}
