package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// OrthonormalTolerance is the largest |R*R^T - I| entry accepted before a
// composed rotation is projected back onto SO(3).
const OrthonormalTolerance = 1e-9

// Rotation is a 3x3 rotation matrix in row-major order.
type Rotation [9]float64

// Identity returns the identity rotation.
func Identity() Rotation {
	return Rotation{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

func (r Rotation) dense() *mat.Dense {
	data := r
	return mat.NewDense(3, 3, data[:])
}

func fromMatrix(m mat.Matrix) Rotation {
	var r Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = m.At(i, j)
		}
	}
	return r
}

// At returns the element at row i, column j.
func (r Rotation) At(i, j int) float64 {
	return r[i*3+j]
}

// Mul returns r*o, i.e. o applied first and r second.
func (r Rotation) Mul(o Rotation) Rotation {
	var out mat.Dense
	out.Mul(r.dense(), o.dense())
	return fromMatrix(&out)
}

// T returns the transpose, which for a rotation is its inverse.
func (r Rotation) T() Rotation {
	return Rotation{
		r[0], r[3], r[6],
		r[1], r[4], r[7],
		r[2], r[5], r[8],
	}
}

// Apply rotates v.
func (r Rotation) Apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
		Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
		Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
	}
}

// Det returns the determinant. A proper rotation has det = 1.
func (r Rotation) Det() float64 {
	return mat.Det(r.dense())
}

// OrthonormalityError returns the largest absolute entry of R*R^T - I.
func (r Rotation) OrthonormalityError() float64 {
	d := r.dense()
	var p mat.Dense
	p.Mul(d, d.T())
	worst := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if e := math.Abs(p.At(i, j) - want); e > worst {
				worst = e
			}
		}
	}
	return worst
}

// IsOrthonormal reports whether r is a proper rotation within tol.
func (r Rotation) IsOrthonormal(tol float64) bool {
	return r.OrthonormalityError() <= tol && math.Abs(r.Det()-1) <= tol
}

// Orthonormalize returns the rotation closest to r in the Frobenius sense,
// U*V^T from the SVD of r. If the factorization fails r is returned as is.
func (r Rotation) Orthonormalize() Rotation {
	var svd mat.SVD
	if ok := svd.Factorize(r.dense(), mat.SVDFull); !ok {
		return r
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var out mat.Dense
	out.Mul(&u, v.T())
	if mat.Det(&out) < 0 {
		// Reflection: flip the axis of the smallest singular value.
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		out.Mul(&u, v.T())
	}
	return fromMatrix(&out)
}

// RotationFromEuler builds R = Ry(yaw) * Rx(pitch) * Rz(roll) on vision axes.
func RotationFromEuler(e Euler) Rotation {
	sr, cr := math.Sincos(e.Roll)
	sp, cp := math.Sincos(e.Pitch)
	sy, cy := math.Sincos(e.Yaw)
	return Rotation{
		cy*cr + sy*sp*sr, -cy*sr + sy*sp*cr, sy * cp,
		cp * sr, cp * cr, -sp,
		-sy*cr + cy*sp*sr, sy*sr + cy*sp*cr, cy * cp,
	}
}

// Euler extracts roll, pitch and yaw using the same convention as
// RotationFromEuler. At gimbal lock roll is reported as zero and the whole
// rotation about the vertical is folded into yaw.
func (r Rotation) Euler() Euler {
	sp := math.Max(-1, math.Min(1, -r[5]))
	pitch := math.Asin(sp)
	if math.Abs(math.Cos(pitch)) < 1e-9 {
		if sp > 0 {
			return Euler{Pitch: pitch, Yaw: math.Atan2(r[1], r[0])}
		}
		return Euler{Pitch: pitch, Yaw: math.Atan2(-r[1], r[0])}
	}
	return Euler{
		Roll:  math.Atan2(r[3], r[4]),
		Pitch: pitch,
		Yaw:   math.Atan2(r[2], r[8]),
	}
}
