package factorgraph

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mfkiwl/gtcal/camera"
	"github.com/mfkiwl/gtcal/spatialmath"
)

// Factor is a weighted residual term relating one or more variables to an
// observed or prior value. Residual returns the whitened error at the given
// estimate; its length is Dim.
type Factor interface {
	Keys() []Key
	Dim() int
	Residual(v *Values) ([]float64, error)
}

// PosePrior anchors a pose variable near a given transform. Priors on newly
// registered cameras remove the gauge freedom an otherwise unconstrained pose
// variable would have.
type PosePrior struct {
	key   Key
	mean  spatialmath.Pose
	noise *Diagonal
}

// NewPosePrior returns a prior factor on a pose-kind key.
func NewPosePrior(key Key, mean spatialmath.Pose, noise *Diagonal) (*PosePrior, error) {
	if key.Kind != PoseKind {
		return nil, errors.Errorf("pose prior needs a pose key, got %v", key)
	}
	if noise == nil || noise.Dim() != spatialmath.PoseDim {
		return nil, errors.Errorf("pose prior needs a %d dimensional noise model", spatialmath.PoseDim)
	}
	return &PosePrior{key: key, mean: mean, noise: noise}, nil
}

// Keys returns the single pose key the prior constrains.
func (f *PosePrior) Keys() []Key { return []Key{f.key} }

// Dim returns the residual dimension.
func (f *PosePrior) Dim() int { return spatialmath.PoseDim }

// Residual returns the whitened tangent-space difference from the prior mean.
func (f *PosePrior) Residual(v *Values) ([]float64, error) {
	cur, ok := v.Pose(f.key)
	if !ok {
		return nil, errors.Errorf("no estimate for %v", f.key)
	}
	return f.noise.Whiten(spatialmath.PoseDelta(f.mean, cur)), nil
}

// PointPrior anchors a 3D position variable near a given point. Landmark
// variables are anchored with near-zero uncertainty: the target geometry is
// known, the prior only gives reprojection factors a valid variable to
// reference.
type PointPrior struct {
	key   Key
	mean  r3.Vector
	noise *Diagonal
}

// NewPointPrior returns a prior factor on a point-kind key.
func NewPointPrior(key Key, mean r3.Vector, noise *Diagonal) (*PointPrior, error) {
	if key.Kind != PointKind {
		return nil, errors.Errorf("point prior needs a point key, got %v", key)
	}
	if noise == nil || noise.Dim() != 3 {
		return nil, errors.New("point prior needs a 3 dimensional noise model")
	}
	return &PointPrior{key: key, mean: mean, noise: noise}, nil
}

// Keys returns the single point key the prior constrains.
func (f *PointPrior) Keys() []Key { return []Key{f.key} }

// Dim returns the residual dimension.
func (f *PointPrior) Dim() int { return 3 }

// Residual returns the whitened difference from the prior mean.
func (f *PointPrior) Residual(v *Values) ([]float64, error) {
	cur, ok := v.Point(f.key)
	if !ok {
		return nil, errors.Errorf("no estimate for %v", f.key)
	}
	return f.noise.Whiten([]float64{cur.X - f.mean.X, cur.Y - f.mean.Y, cur.Z - f.mean.Z}), nil
}

// Projection relates a camera pose variable and a landmark variable to an
// observed pixel. The camera's intrinsic model is held fixed; only the pose
// variable moves the predicted pixel.
type Projection struct {
	poseKey  Key
	pointKey Key
	measured r2.Point
	cam      camera.Camera
	noise    *Diagonal
}

// NewProjection returns a reprojection factor for an observed pixel. The camera
// is cloned so factor evaluation never touches the caller's handle.
func NewProjection(poseKey, pointKey Key, measured r2.Point, cam camera.Camera, noise *Diagonal) (*Projection, error) {
	if poseKey.Kind != PoseKind || pointKey.Kind != PointKind {
		return nil, errors.Errorf("projection factor needs a pose key and a point key, got %v and %v", poseKey, pointKey)
	}
	if cam == nil {
		return nil, errors.New("projection factor needs a camera")
	}
	if noise == nil || noise.Dim() != 2 {
		return nil, errors.New("projection factor needs a 2 dimensional noise model")
	}
	return &Projection{poseKey: poseKey, pointKey: pointKey, measured: measured, cam: cam.Clone(), noise: noise}, nil
}

// Keys returns the pose and point keys the factor relates.
func (f *Projection) Keys() []Key { return []Key{f.poseKey, f.pointKey} }

// Dim returns the residual dimension.
func (f *Projection) Dim() int { return 2 }

// Residual returns the whitened difference between the predicted and observed pixel.
func (f *Projection) Residual(v *Values) ([]float64, error) {
	pose, ok := v.Pose(f.poseKey)
	if !ok {
		return nil, errors.Errorf("no estimate for %v", f.poseKey)
	}
	pt, ok := v.Point(f.pointKey)
	if !ok {
		return nil, errors.Errorf("no estimate for %v", f.pointKey)
	}
	f.cam.SetPose(pose)
	uv := f.cam.Project(pt)
	return f.noise.Whiten([]float64{uv.X - f.measured.X, uv.Y - f.measured.Y}), nil
}

// Resection relates a camera pose variable to an observed pixel of a known,
// fixed target point. With an intrinsics key it additionally treats the
// camera's intrinsics vector as a free variable, refining calibration and pose
// jointly.
type Resection struct {
	poseKey       Key
	intrinsicsKey *Key
	measured      r2.Point
	pt            r3.Vector
	cam           camera.Camera
	noise         *Diagonal
}

// NewResection returns a single-frame reprojection factor against a known
// target point. Pass a nil intrinsics key to hold the intrinsic model fixed.
func NewResection(
	poseKey Key,
	intrinsicsKey *Key,
	measured r2.Point,
	pt r3.Vector,
	cam camera.Camera,
	noise *Diagonal,
) (*Resection, error) {
	if poseKey.Kind != PoseKind {
		return nil, errors.Errorf("resection factor needs a pose key, got %v", poseKey)
	}
	if intrinsicsKey != nil && intrinsicsKey.Kind != IntrinsicsKind {
		return nil, errors.Errorf("resection factor needs an intrinsics key, got %v", *intrinsicsKey)
	}
	if cam == nil {
		return nil, errors.New("resection factor needs a camera")
	}
	if noise == nil || noise.Dim() != 2 {
		return nil, errors.New("resection factor needs a 2 dimensional noise model")
	}
	return &Resection{
		poseKey:       poseKey,
		intrinsicsKey: intrinsicsKey,
		measured:      measured,
		pt:            pt,
		cam:           cam.Clone(),
		noise:         noise,
	}, nil
}

// Keys returns the pose key and, when refining intrinsics, the intrinsics key.
func (f *Resection) Keys() []Key {
	if f.intrinsicsKey != nil {
		return []Key{f.poseKey, *f.intrinsicsKey}
	}
	return []Key{f.poseKey}
}

// Dim returns the residual dimension.
func (f *Resection) Dim() int { return 2 }

// Residual returns the whitened difference between the predicted and observed pixel.
func (f *Resection) Residual(v *Values) ([]float64, error) {
	pose, ok := v.Pose(f.poseKey)
	if !ok {
		return nil, errors.Errorf("no estimate for %v", f.poseKey)
	}
	f.cam.SetPose(pose)
	if f.intrinsicsKey != nil {
		params, ok := v.Vector(*f.intrinsicsKey)
		if !ok {
			return nil, errors.Errorf("no estimate for %v", *f.intrinsicsKey)
		}
		if err := f.cam.SetIntrinsics(params); err != nil {
			return nil, errors.Wrap(err, "resection factor")
		}
	}
	uv := f.cam.Project(f.pt)
	return f.noise.Whiten([]float64{uv.X - f.measured.X, uv.Y - f.measured.Y}), nil
}
