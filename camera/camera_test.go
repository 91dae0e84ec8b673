package camera

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/mfkiwl/gtcal/spatialmath"
)

func testPinholeIntrinsics() PinholeIntrinsics {
	return PinholeIntrinsics{
		Width:  1280,
		Height: 800,
		Fx:     500,
		Fy:     500,
		Ppx:    640,
		Ppy:    400,
	}
}

func testFisheyeIntrinsics() FisheyeIntrinsics {
	return FisheyeIntrinsics{
		Width:  1280,
		Height: 800,
		Fx:     500,
		Fy:     500,
		Ppx:    640,
		Ppy:    400,
	}
}

func TestPinholeProject(t *testing.T) {
	cam, err := NewPinhole(testPinholeIntrinsics(), nil, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)

	// a point on the optical axis lands on the principal point
	uv := cam.Project(r3.Vector{Z: 1})
	test.That(t, uv.X, test.ShouldAlmostEqual, 640, 1e-12)
	test.That(t, uv.Y, test.ShouldAlmostEqual, 400, 1e-12)

	// known lateral offset
	uv = cam.Project(r3.Vector{X: 0.1, Y: -0.2, Z: 2})
	test.That(t, uv.X, test.ShouldAlmostEqual, 640+500*0.05, 1e-12)
	test.That(t, uv.Y, test.ShouldAlmostEqual, 400-500*0.1, 1e-12)

	// a point behind the camera projects to negative coordinates
	uv = cam.Project(r3.Vector{Z: -1})
	test.That(t, uv.X, test.ShouldEqual, -1.0)
	test.That(t, uv.Y, test.ShouldEqual, -1.0)
}

func TestPinholeProjectWithPose(t *testing.T) {
	// camera sits 1 unit behind the target plane looking along +z
	pose := spatialmath.NewPoseFromRzRyRx(r3.Vector{X: 0.5, Y: 0.25, Z: -1}, 0, 0, 0)
	cam, err := NewPinhole(testPinholeIntrinsics(), nil, pose)
	test.That(t, err, test.ShouldBeNil)

	// the point directly in front of the camera lands on the principal point
	uv := cam.Project(r3.Vector{X: 0.5, Y: 0.25})
	test.That(t, uv.X, test.ShouldAlmostEqual, 640, 1e-12)
	test.That(t, uv.Y, test.ShouldAlmostEqual, 400, 1e-12)
}

func TestFisheyeProject(t *testing.T) {
	cam, err := NewFisheye(testFisheyeIntrinsics(), spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)

	// principal point is distortion-free
	uv := cam.Project(r3.Vector{Z: 1})
	test.That(t, uv.X, test.ShouldAlmostEqual, 640, 1e-12)
	test.That(t, uv.Y, test.ShouldAlmostEqual, 400, 1e-12)

	// with zero coefficients the equidistant model maps radius r to atan(r)
	uv = cam.Project(r3.Vector{X: 1, Z: 1})
	test.That(t, uv.X, test.ShouldAlmostEqual, 640+500*math.Atan(1), 1e-9)
	test.That(t, uv.Y, test.ShouldAlmostEqual, 400, 1e-9)

	// behind the camera
	uv = cam.Project(r3.Vector{X: 1, Z: -1})
	test.That(t, uv.X, test.ShouldEqual, -1.0)
}

func TestFisheyeNearAxisMatchesPinhole(t *testing.T) {
	fish, err := NewFisheye(testFisheyeIntrinsics(), spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)
	pin, err := NewPinhole(testPinholeIntrinsics(), nil, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)

	pt := r3.Vector{X: 1e-5, Y: -2e-5, Z: 1}
	uvF := fish.Project(pt)
	uvP := pin.Project(pt)
	test.That(t, uvF.X, test.ShouldAlmostEqual, uvP.X, 1e-9)
	test.That(t, uvF.Y, test.ShouldAlmostEqual, uvP.Y, 1e-9)
}

func TestIntrinsicsRoundTrip(t *testing.T) {
	cam, err := NewFisheye(testFisheyeIntrinsics(), spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)

	params := cam.Intrinsics()
	test.That(t, len(params), test.ShouldEqual, 9)
	params[0] = 510
	test.That(t, cam.SetIntrinsics(params), test.ShouldBeNil)
	test.That(t, cam.Intrinsics()[0], test.ShouldEqual, 510)

	test.That(t, cam.SetIntrinsics([]float64{1, 2}), test.ShouldNotBeNil)
}

func TestCloneIsIndependent(t *testing.T) {
	cam, err := NewPinhole(testPinholeIntrinsics(), nil, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldBeNil)

	clone := cam.Clone()
	clone.SetPose(spatialmath.NewPoseFromRzRyRx(r3.Vector{X: 1}, 0, 0, 0))
	test.That(t, clone.SetIntrinsics([]float64{600, 600, 0, 640, 400}), test.ShouldBeNil)

	test.That(t, cam.Pose().Translation().X, test.ShouldEqual, 0)
	test.That(t, cam.Intrinsics()[0], test.ShouldEqual, 500)
	test.That(t, clone.Intrinsics()[0], test.ShouldEqual, 600)
}

func TestCheckValid(t *testing.T) {
	bad := testPinholeIntrinsics()
	bad.Fx = 0
	_, err := NewPinhole(bad, nil, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldNotBeNil)

	badFish := testFisheyeIntrinsics()
	badFish.Width = 0
	badFish.Fy = -1
	_, err = NewFisheye(badFish, spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBrownConrady(t *testing.T) {
	// no parameters means the identity transform
	dist, err := NewBrownConrady(nil)
	test.That(t, err, test.ShouldBeNil)
	x, y := dist.Transform(0.25, -0.5)
	test.That(t, x, test.ShouldEqual, 0.25)
	test.That(t, y, test.ShouldEqual, -0.5)

	_, err = NewBrownConrady(make([]float64, 6))
	test.That(t, err, test.ShouldNotBeNil)

	// pure radial distortion pushes points outward along their own ray
	dist, err = NewBrownConrady([]float64{0.1})
	test.That(t, err, test.ShouldBeNil)
	x, y = dist.Transform(0.2, 0.4)
	r2 := 0.2*0.2 + 0.4*0.4
	test.That(t, x, test.ShouldAlmostEqual, 0.2*(1+0.1*r2), 1e-12)
	test.That(t, y, test.ShouldAlmostEqual, 0.4*(1+0.1*r2), 1e-12)
}

func TestPinholeIntrinsicsFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intrinsics.json")
	blob := `{"width_px": 1280, "height_px": 800, "fx": 500, "fy": 500, "ppx": 640, "ppy": 400}`
	test.That(t, os.WriteFile(path, []byte(blob), 0o600), test.ShouldBeNil)

	params, err := NewPinholeIntrinsicsFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Fx, test.ShouldEqual, 500)
	test.That(t, params.Width, test.ShouldEqual, 1280)

	_, err = NewPinholeIntrinsicsFromJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}
