package camera

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/mfkiwl/gtcal/spatialmath"
)

// pinholeIntrinsicsDim is the length of a Pinhole intrinsics vector.
const pinholeIntrinsicsDim = 5

// PinholeIntrinsics holds the parameters necessary to do a perspective projection
// of a 3D scene onto the 2D image plane.
type PinholeIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Skew   float64 `json:"skew"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeIntrinsics have valid inputs.
func (params *PinholeIntrinsics) CheckValid() error {
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

// NewPinholeIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeIntrinsics.
func NewPinholeIntrinsicsFromJSONFile(jsonPath string) (*PinholeIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer jsonFile.Close() //nolint:errcheck
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &PinholeIntrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// Pinhole is a distortion-free perspective camera, optionally composed with a
// distortion model applied to normalized image coordinates. The distortion
// parameters are not part of the intrinsics vector and are held fixed during
// refinement.
type Pinhole struct {
	PinholeIntrinsics
	distortion Distorter
	pose       spatialmath.Pose
}

// NewPinhole returns a pinhole camera with the given intrinsics and pose in the
// target frame. A nil distortion means an ideal perspective projection.
func NewPinhole(intrinsics PinholeIntrinsics, distortion Distorter, pose spatialmath.Pose) (*Pinhole, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	if distortion != nil {
		if err := distortion.CheckValid(); err != nil {
			return nil, err
		}
	}
	return &Pinhole{PinholeIntrinsics: intrinsics, distortion: distortion, pose: pose}, nil
}

// Project maps a target-frame point to pixel coordinates.
func (p *Pinhole) Project(pt r3.Vector) r2.Point {
	pc := p.pose.TransformTo(pt)
	if pc.Z <= 0 {
		// behind the image plane, return negative coordinates so bounds filtering drops it
		return r2.Point{X: -1.0, Y: -1.0}
	}
	x := pc.X / pc.Z
	y := pc.Y / pc.Z
	if p.distortion != nil {
		x, y = p.distortion.Transform(x, y)
	}
	return r2.Point{
		X: p.Fx*x + p.Skew*y + p.Ppx,
		Y: p.Fy*y + p.Ppy,
	}
}

// Width returns the image width in pixels.
func (p *Pinhole) Width() int { return p.PinholeIntrinsics.Width }

// Height returns the image height in pixels.
func (p *Pinhole) Height() int { return p.PinholeIntrinsics.Height }

// Pose returns the camera pose in the target frame.
func (p *Pinhole) Pose() spatialmath.Pose { return p.pose }

// SetPose updates the camera pose in the target frame.
func (p *Pinhole) SetPose(pose spatialmath.Pose) { p.pose = pose }

// Intrinsics returns the intrinsics vector [fx, fy, skew, ppx, ppy].
func (p *Pinhole) Intrinsics() []float64 {
	return []float64{p.Fx, p.Fy, p.Skew, p.Ppx, p.Ppy}
}

// SetIntrinsics updates the intrinsics from a [fx, fy, skew, ppx, ppy] vector.
func (p *Pinhole) SetIntrinsics(params []float64) error {
	if len(params) != pinholeIntrinsicsDim {
		return errors.Errorf("expected %d pinhole intrinsic parameters, got %d", pinholeIntrinsicsDim, len(params))
	}
	p.Fx, p.Fy, p.Skew, p.Ppx, p.Ppy = params[0], params[1], params[2], params[3], params[4]
	return nil
}

// Clone returns an independent copy of the camera. The distortion model is
// shared; it is read-only after construction.
func (p *Pinhole) Clone() Camera {
	clone := *p
	return &clone
}
