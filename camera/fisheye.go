package camera

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/mfkiwl/gtcal/spatialmath"
)

// fisheyeIntrinsicsDim is the length of a Fisheye intrinsics vector.
const fisheyeIntrinsicsDim = 9

// FisheyeIntrinsics holds the parameters of a Kannala-Brandt fisheye projection:
// the pinhole parameters plus the four equidistant distortion coefficients.
type FisheyeIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Skew   float64 `json:"skew"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
	K1     float64 `json:"k1"`
	K2     float64 `json:"k2"`
	K3     float64 `json:"k3"`
	K4     float64 `json:"k4"`
}

// CheckValid checks if the fields for FisheyeIntrinsics have valid inputs.
func (params *FisheyeIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	var err error
	if params.Width <= 0 || params.Height <= 0 {
		err = multierr.Append(err, NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height)))
	}
	if params.Fx <= 0 {
		err = multierr.Append(err, NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx)))
	}
	if params.Fy <= 0 {
		err = multierr.Append(err, NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy)))
	}
	if params.Ppx < 0 {
		err = multierr.Append(err, NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx)))
	}
	if params.Ppy < 0 {
		err = multierr.Append(err, NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy)))
	}
	return err
}

// Fisheye is a wide-angle camera with Kannala-Brandt equidistant distortion.
type Fisheye struct {
	FisheyeIntrinsics
	pose spatialmath.Pose
}

// NewFisheye returns a fisheye camera with the given intrinsics and pose in the
// target frame.
func NewFisheye(intrinsics FisheyeIntrinsics, pose spatialmath.Pose) (*Fisheye, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return &Fisheye{FisheyeIntrinsics: intrinsics, pose: pose}, nil
}

// Project maps a target-frame point to pixel coordinates. The normalized radius
// is remapped through the equidistant model θ_d = θ(1 + k1θ² + k2θ⁴ + k3θ⁶ + k4θ⁸).
func (f *Fisheye) Project(pt r3.Vector) r2.Point {
	pc := f.pose.TransformTo(pt)
	if pc.Z <= 0 {
		// behind the image plane, return negative coordinates so bounds filtering drops it
		return r2.Point{X: -1.0, Y: -1.0}
	}
	x := pc.X / pc.Z
	y := pc.Y / pc.Z
	r := math.Hypot(x, y)
	scaling := 1.0
	if r > 1e-12 {
		theta := math.Atan(r)
		t2 := theta * theta
		thetaD := theta * (1 + t2*(f.K1+t2*(f.K2+t2*(f.K3+t2*f.K4))))
		scaling = thetaD / r
	}
	xd := scaling * x
	yd := scaling * y
	return r2.Point{
		X: f.Fx*xd + f.Skew*yd + f.Ppx,
		Y: f.Fy*yd + f.Ppy,
	}
}

// Width returns the image width in pixels.
func (f *Fisheye) Width() int { return f.FisheyeIntrinsics.Width }

// Height returns the image height in pixels.
func (f *Fisheye) Height() int { return f.FisheyeIntrinsics.Height }

// Pose returns the camera pose in the target frame.
func (f *Fisheye) Pose() spatialmath.Pose { return f.pose }

// SetPose updates the camera pose in the target frame.
func (f *Fisheye) SetPose(pose spatialmath.Pose) { f.pose = pose }

// Intrinsics returns the intrinsics vector [fx, fy, skew, ppx, ppy, k1, k2, k3, k4].
func (f *Fisheye) Intrinsics() []float64 {
	return []float64{f.Fx, f.Fy, f.Skew, f.Ppx, f.Ppy, f.K1, f.K2, f.K3, f.K4}
}

// SetIntrinsics updates the intrinsics from a [fx, fy, skew, ppx, ppy, k1, k2, k3, k4] vector.
func (f *Fisheye) SetIntrinsics(params []float64) error {
	if len(params) != fisheyeIntrinsicsDim {
		return errors.Errorf("expected %d fisheye intrinsic parameters, got %d", fisheyeIntrinsicsDim, len(params))
	}
	f.Fx, f.Fy, f.Skew, f.Ppx, f.Ppy = params[0], params[1], params[2], params[3], params[4]
	f.K1, f.K2, f.K3, f.K4 = params[5], params[6], params[7], params[8]
	return nil
}

// Clone returns an independent copy of the camera.
func (f *Fisheye) Clone() Camera {
	clone := *f
	return &clone
}
