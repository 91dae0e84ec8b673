// Package testutils generates synthetic calibration scenes for tests: cameras
// with known intrinsics, measurement synthesis with image-bounds filtering, and
// poses arranged around a target.
package testutils

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mfkiwl/gtcal"
	"github.com/mfkiwl/gtcal/camera"
	"github.com/mfkiwl/gtcal/spatialmath"
)

// Shared synthetic camera parameters. The focal lengths are short enough that
// the whole standard grid target stays inside the image from the fixture
// poses used by the solver tests.
const (
	ImageWidth  = 1280
	ImageHeight = 800
	Fx          = 350.0
	Fy          = 350.0
	Cx          = 640.0
	Cy          = 400.0
)

// NewTestPinhole returns a distortion-free pinhole camera with the shared test
// intrinsics at the given pose.
func NewTestPinhole(pose spatialmath.Pose) (*camera.Pinhole, error) {
	return camera.NewPinhole(camera.PinholeIntrinsics{
		Width:  ImageWidth,
		Height: ImageHeight,
		Fx:     Fx,
		Fy:     Fy,
		Ppx:    Cx,
		Ppy:    Cy,
	}, nil, pose)
}

// NewTestFisheye returns a fisheye camera with the shared test intrinsics and
// zero distortion coefficients at the given pose.
func NewTestFisheye(pose spatialmath.Pose) (*camera.Fisheye, error) {
	return camera.NewFisheye(camera.FisheyeIntrinsics{
		Width:  ImageWidth,
		Height: ImageHeight,
		Fx:     Fx,
		Fy:     Fy,
		Ppx:    Cx,
		Ppy:    Cy,
	}, pose)
}

// PixelInImage reports whether the pixel lies inside [0, width) x [0, height).
func PixelInImage(uv r2.Point, width, height int) bool {
	return uv.X >= 0 && uv.X < float64(width) && uv.Y >= 0 && uv.Y < float64(height)
}

// SynthesizeMeasurements projects every target point through the camera at its
// current pose and returns measurements for those landing inside the image
// bounds. A point projecting outside the bounds never produces a measurement.
func SynthesizeMeasurements(cam camera.Camera, targetPoints []r3.Vector, cameraID int) []gtcal.Measurement {
	measurements := make([]gtcal.Measurement, 0, len(targetPoints))
	for i, pt := range targetPoints {
		uv := cam.Project(pt)
		if PixelInImage(uv, cam.Width(), cam.Height()) {
			measurements = append(measurements, gtcal.NewMeasurement(uv, cameraID, i))
		}
	}
	return measurements
}

// PoseLookingAt returns the pose of a camera at eye oriented so its optical
// axis (+z) points at the given target point, keeping the camera x axis level
// with the target xz plane.
func PoseLookingAt(eye, at r3.Vector) spatialmath.Pose {
	z := at.Sub(eye).Normalize()
	x := r3.Vector{X: 0, Y: 1, Z: 0}.Cross(z)
	if x.Norm() < 1e-9 {
		// looking straight along y, fall back to the world x axis
		x = r3.Vector{X: 1}
	}
	x = x.Normalize()
	y := z.Cross(x)

	m := mgl64.Ident4()
	m.SetCol(0, mgl64.Vec4{x.X, x.Y, x.Z, 0})
	m.SetCol(1, mgl64.Vec4{y.X, y.Y, y.Z, 0})
	m.SetCol(2, mgl64.Vec4{z.X, z.Y, z.Z, 0})
	q := mgl64.Mat4ToQuat(m)
	return spatialmath.NewPose(eye, quat.Number{Real: q.W, Imag: q.X(), Jmag: q.Y(), Kmag: q.Z()})
}

// PosesAroundTarget returns n poses on a circle of the given radius around the
// axis through the target center, all at the given z offset and oriented to
// look at the center.
func PosesAroundTarget(center r3.Vector, radius, zOffset float64, n int) []spatialmath.Pose {
	poses := make([]spatialmath.Pose, 0, n)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n)
		eye := r3.Vector{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
			Z: center.Z + zOffset,
		}
		poses = append(poses, PoseLookingAt(eye, center))
	}
	return poses
}
