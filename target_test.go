package gtcal

import (
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestNewGridTarget(t *testing.T) {
	target, err := NewGridTarget(0.3, 10, 13)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, target.NumPoints(), test.ShouldEqual, 130)

	// row major, x along columns
	pts := target.Points()
	test.That(t, pts[0].X, test.ShouldAlmostEqual, 0)
	test.That(t, pts[0].Y, test.ShouldAlmostEqual, 0)
	test.That(t, pts[1].X, test.ShouldAlmostEqual, 0.3)
	test.That(t, pts[1].Y, test.ShouldAlmostEqual, 0)
	test.That(t, pts[13].X, test.ShouldAlmostEqual, 0)
	test.That(t, pts[13].Y, test.ShouldAlmostEqual, 0.3)
	for _, pt := range pts {
		test.That(t, pt.Z, test.ShouldAlmostEqual, 0)
	}

	center := target.Center()
	test.That(t, center.X, test.ShouldAlmostEqual, 1.8)
	test.That(t, center.Y, test.ShouldAlmostEqual, 1.35)
	test.That(t, center.Z, test.ShouldAlmostEqual, 0)
}

func TestNewGridTargetValidation(t *testing.T) {
	_, err := NewGridTarget(0, 10, 13)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewGridTarget(-0.3, 10, 13)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewGridTarget(0.3, 0, 13)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewGridTarget(0.3, 10, -1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewMeasurement(t *testing.T) {
	m := NewMeasurement(r2.Point{X: 12.5, Y: 600.25}, 2, 41)
	test.That(t, m.UV.X, test.ShouldAlmostEqual, 12.5)
	test.That(t, m.UV.Y, test.ShouldAlmostEqual, 600.25)
	test.That(t, m.CameraID, test.ShouldEqual, 2)
	test.That(t, m.LandmarkID, test.ShouldEqual, 41)
}
