package testutils

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/mfkiwl/gtcal"
	"github.com/mfkiwl/gtcal/spatialmath"
)

func TestPixelInImage(t *testing.T) {
	test.That(t, PixelInImage(r2.Point{X: 0, Y: 0}, ImageWidth, ImageHeight), test.ShouldBeTrue)
	test.That(t, PixelInImage(r2.Point{X: 1279.9, Y: 799.9}, ImageWidth, ImageHeight), test.ShouldBeTrue)
	test.That(t, PixelInImage(r2.Point{X: -0.1, Y: 0}, ImageWidth, ImageHeight), test.ShouldBeFalse)
	test.That(t, PixelInImage(r2.Point{X: 1280, Y: 0}, ImageWidth, ImageHeight), test.ShouldBeFalse)
	test.That(t, PixelInImage(r2.Point{X: 0, Y: 800}, ImageWidth, ImageHeight), test.ShouldBeFalse)
}

// Points projecting outside the image never become measurements; those inside
// always do.
func TestSynthesizeMeasurementsBounds(t *testing.T) {
	pose := spatialmath.NewZeroPose()
	cam, err := NewTestPinhole(pose)
	test.That(t, err, test.ShouldBeNil)

	points := []r3.Vector{
		{X: 0, Y: 0, Z: 1},     // principal point
		{X: 0.5, Y: 0.2, Z: 1}, // still inside
		{X: 5, Y: 0, Z: 1},     // far off to the side
		{X: 0, Y: 0, Z: -1},    // behind the camera
	}
	measurements := SynthesizeMeasurements(cam, points, 3)
	test.That(t, len(measurements), test.ShouldEqual, 2)
	test.That(t, measurements[0].LandmarkID, test.ShouldEqual, 0)
	test.That(t, measurements[1].LandmarkID, test.ShouldEqual, 1)
	for _, m := range measurements {
		test.That(t, m.CameraID, test.ShouldEqual, 3)
		test.That(t, PixelInImage(m.UV, cam.Width(), cam.Height()), test.ShouldBeTrue)
	}
	test.That(t, measurements[0].UV.X, test.ShouldAlmostEqual, Cx)
	test.That(t, measurements[0].UV.Y, test.ShouldAlmostEqual, Cy)
}

// The shared intrinsics must keep the whole standard grid in view from the
// fixture poses in front of it, so full-grid assertions in the solver tests
// hold.
func TestSynthesizeMeasurementsFullGrid(t *testing.T) {
	target, err := gtcal.NewGridTarget(0.3, 10, 13)
	test.That(t, err, test.ShouldBeNil)
	center := target.Center()

	for _, z := range []float64{-0.85, -0.825} {
		pose := spatialmath.NewPose(r3.Vector{X: center.X, Y: center.Y, Z: z}, quat.Number{Real: 1})
		cam, err := NewTestFisheye(pose)
		test.That(t, err, test.ShouldBeNil)
		measurements := SynthesizeMeasurements(cam, target.Points(), 0)
		test.That(t, len(measurements), test.ShouldEqual, target.NumPoints())
	}
}

func TestPoseLookingAt(t *testing.T) {
	eye := r3.Vector{X: 1, Y: 2, Z: -3}
	at := r3.Vector{X: 1, Y: 2, Z: 0}
	pose := PoseLookingAt(eye, at)

	// the optical axis lands on the look-at point
	local := pose.TransformTo(at)
	test.That(t, local.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, local.Y, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, local.Z, test.ShouldAlmostEqual, 3, 1e-12)
}

func TestPosesAroundTarget(t *testing.T) {
	center := r3.Vector{X: 1.8, Y: 1.35, Z: 0}
	poses := PosesAroundTarget(center, 0.3, -3, 10)
	test.That(t, len(poses), test.ShouldEqual, 10)

	for _, pose := range poses {
		eye := pose.Translation()
		d := r2.Point{X: eye.X - center.X, Y: eye.Y - center.Y}
		test.That(t, math.Hypot(d.X, d.Y), test.ShouldAlmostEqual, 0.3, 1e-12)
		test.That(t, eye.Z, test.ShouldAlmostEqual, -3)

		// every pose looks straight at the target center
		local := pose.TransformTo(center)
		test.That(t, local.X, test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, local.Y, test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, local.Z, test.ShouldBeGreaterThan, 0)
	}
}
