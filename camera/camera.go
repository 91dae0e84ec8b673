// Package camera models the intrinsic projection capability consumed by the
// calibration solvers. Intrinsic families (pinhole, fisheye) are selected at
// construction time; the solvers stay agnostic to which variant is active.
package camera

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mfkiwl/gtcal/spatialmath"
)

// ErrNoIntrinsics is when a camera does not have intrinsic parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, msg)
}

// Camera is the capability the solvers consume: an intrinsic projection model,
// image bounds, and a mutable pose of the camera expressed in the target frame.
type Camera interface {
	// Project maps a target-frame 3D point through the camera's current pose and
	// intrinsic model to pixel coordinates. Points at or behind the image plane
	// project to (-1, -1) so downstream bounds filtering drops them.
	Project(pt r3.Vector) r2.Point

	// Width and Height are the image bounds in pixels.
	Width() int
	Height() int

	// Pose is the camera pose in the target frame.
	Pose() spatialmath.Pose
	SetPose(pose spatialmath.Pose)

	// Intrinsics returns the intrinsic parameters as a flat vector in the
	// model's canonical ordering. SetIntrinsics is its inverse and rejects
	// vectors of the wrong length.
	Intrinsics() []float64
	SetIntrinsics(params []float64) error

	// Clone returns an independent copy of the camera.
	Clone() Camera
}
