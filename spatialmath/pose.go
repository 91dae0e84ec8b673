// Package spatialmath defines the rigid transform math used by the calibration solvers.
package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// PoseDim is the dimension of a pose's tangent space: three translation
// components followed by three rotation components.
const PoseDim = 6

// Pose represents a rigid 6-DoF transform as a unit rotation quaternion plus a
// translation. The zero value is not a valid pose; use NewZeroPose for the
// identity transform.
type Pose struct {
	rot quat.Number
	t   r3.Vector
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{rot: quat.Number{Real: 1}}
}

// NewPose returns a pose with the given translation and rotation. The rotation
// quaternion is normalized; a zero quaternion is treated as the identity.
func NewPose(t r3.Vector, rot quat.Number) Pose {
	n := quatNorm(rot)
	if n < 1e-12 {
		rot = quat.Number{Real: 1}
	} else {
		rot = quat.Scale(1/n, rot)
	}
	return Pose{rot: rot, t: t}
}

// NewPoseFromRzRyRx returns a pose whose rotation is Rz(rz) * Ry(ry) * Rx(rx),
// the fixed-axis roll/pitch/yaw composition.
func NewPoseFromRzRyRx(t r3.Vector, rx, ry, rz float64) Pose {
	q := mgl64.AnglesToQuat(rz, ry, rx, mgl64.ZYX)
	return NewPose(t, quat.Number{Real: q.W, Imag: q.X(), Jmag: q.Y(), Kmag: q.Z()})
}

// Rotation returns the pose's unit rotation quaternion.
func (p Pose) Rotation() quat.Number {
	return p.rot
}

// Translation returns the pose's translation.
func (p Pose) Translation() r3.Vector {
	return p.t
}

// Compose returns the transform equivalent to applying o first and then p.
func (p Pose) Compose(o Pose) Pose {
	return Pose{
		rot: quat.Mul(p.rot, o.rot),
		t:   p.t.Add(rotateVector(p.rot, o.t)),
	}
}

// Invert returns the inverse transform.
func (p Pose) Invert() Pose {
	inv := quat.Conj(p.rot)
	return Pose{rot: inv, t: rotateVector(inv, p.t).Mul(-1)}
}

// TransformPoint maps a point from the pose's local frame into the parent frame.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return rotateVector(p.rot, pt).Add(p.t)
}

// TransformTo maps a parent-frame point into the pose's local frame. For a
// camera pose expressed in the target frame, this takes target points into the
// camera frame.
func (p Pose) TransformTo(pt r3.Vector) r3.Vector {
	return rotateVector(quat.Conj(p.rot), pt.Sub(p.t))
}

// Retract perturbs the pose by a small tangent-space delta: the first three
// components are added to the translation, the last three are applied as an R3
// axis angle rotation on the left. The delta must have length PoseDim.
func (p Pose) Retract(delta []float64) Pose {
	dq := R3AAToQuat(r3.Vector{X: delta[3], Y: delta[4], Z: delta[5]})
	return Pose{
		rot: normalize(quat.Mul(dq, p.rot)),
		t:   p.t.Add(r3.Vector{X: delta[0], Y: delta[1], Z: delta[2]}),
	}
}

// PoseDelta returns the tangent-space difference between two poses, translation
// components first, in the same ordering Retract consumes. Rotation distances
// are well-defined through the axis angle representation.
func PoseDelta(a, b Pose) []float64 {
	aa := QuatToR3AA(quat.Mul(b.rot, quat.Conj(a.rot)))
	return []float64{
		b.t.X - a.t.X,
		b.t.Y - a.t.Y,
		b.t.Z - a.t.Z,
		aa.X,
		aa.Y,
		aa.Z,
	}
}

// PoseAlmostEqual reports whether the combined translation and rotation
// difference between two poses is within tol.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	d := PoseDelta(a, b)
	var sum float64
	for _, v := range d {
		sum += v * v
	}
	return math.Sqrt(sum) <= tol
}

// R3AAToQuat converts an R3 axis angle to a rotation quaternion via the
// exponential map. Small angles fall back to the first order expansion to avoid
// division by a vanishing norm.
func R3AAToQuat(aa r3.Vector) quat.Number {
	theta := aa.Norm()
	if theta < 1e-12 {
		return normalize(quat.Number{Real: 1, Imag: aa.X / 2, Jmag: aa.Y / 2, Kmag: aa.Z / 2})
	}
	s := math.Sin(theta/2) / theta
	return quat.Number{Real: math.Cos(theta / 2), Imag: aa.X * s, Jmag: aa.Y * s, Kmag: aa.Z * s}
}

// QuatToR3AA converts a rotation quaternion to an R3 axis angle, following the
// Eigen convention of negating the angle when the real part is negative.
func QuatToR3AA(q quat.Number) r3.Vector {
	denom := quatNorm3(q)

	angle := 2 * math.Atan2(denom, math.Abs(q.Real))
	if q.Real < 0 {
		angle *= -1
	}

	if denom < 1e-12 {
		return r3.Vector{}
	}
	return r3.Vector{X: angle * q.Imag / denom, Y: angle * q.Jmag / denom, Z: angle * q.Kmag / denom}
}

// rotateVector rotates v by the unit quaternion q, computing q * v * q⁻¹.
func rotateVector(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// quatNorm3 is the norm of just the imaginary parts of q.
func quatNorm3(q quat.Number) float64 {
	return math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

func quatNorm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

func normalize(q quat.Number) quat.Number {
	return quat.Scale(1/quatNorm(q), q)
}
