package gtcal

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mfkiwl/gtcal/camera"
	"github.com/mfkiwl/gtcal/factorgraph"
	"github.com/mfkiwl/gtcal/spatialmath"
)

// ErrUnderconstrained means the measurement set cannot determine the free
// parameters: too few distinct landmarks, or landmarks that are collinear.
var ErrUnderconstrained = errors.New("not enough independent measurements to constrain the solve")

// defaultPixelSigma is the isotropic pixel measurement standard deviation.
const defaultPixelSigma = 1.0

// minPoseCorrespondences is the smallest number of distinct non-collinear
// landmarks that determines a 6-DoF pose.
const minPoseCorrespondences = 3

// PoseSolver refines a single camera's pose from one frame of target
// observations. It is stateless per call: each Solve builds a one-shot
// least-squares problem with the pose (and, when enabled, the intrinsics) as
// the only free variables.
type PoseSolver struct {
	solveIntrinsics bool
	logger          golog.Logger
}

// NewPoseSolver returns a pose solver. When solveIntrinsics is set, each Solve
// also refines the camera's intrinsic parameters jointly with its pose and
// writes them back to the camera on success.
func NewPoseSolver(solveIntrinsics bool, logger golog.Logger) *PoseSolver {
	return &PoseSolver{solveIntrinsics: solveIntrinsics, logger: logger}
}

// Solve refines the pose guess in place from the given measurements of known
// target points. On error the pose guess must not be trusted: the solver may
// have partially written to it before detecting failure.
func (s *PoseSolver) Solve(
	measurements []Measurement,
	targetPoints []r3.Vector,
	cam camera.Camera,
	poseGuess *spatialmath.Pose,
) error {
	if cam == nil {
		return errors.New("pose solver needs a camera")
	}
	if poseGuess == nil {
		return errors.New("pose solver needs a pose guess")
	}
	distinct, err := distinctLandmarks(measurements, targetPoints)
	if err != nil {
		return err
	}
	if err := s.checkObservability(distinct, len(measurements), cam); err != nil {
		return err
	}

	pixelNoise, err := factorgraph.NewIsotropicNoise(2, defaultPixelSigma)
	if err != nil {
		return err
	}

	poseKey := factorgraph.PoseKey(0, 0)
	var intrinsicsKey *factorgraph.Key
	if s.solveIntrinsics {
		k := factorgraph.IntrinsicsKey(0)
		intrinsicsKey = &k
	}

	graph := factorgraph.NewGraph()
	for _, m := range measurements {
		f, err := factorgraph.NewResection(poseKey, intrinsicsKey, m.UV, targetPoints[m.LandmarkID], cam, pixelNoise)
		if err != nil {
			return err
		}
		graph.Add(f)
	}

	initial := factorgraph.NewValues()
	initial.SetPose(poseKey, *poseGuess)
	if intrinsicsKey != nil {
		initial.SetVector(*intrinsicsKey, cam.Intrinsics())
	}

	result, err := factorgraph.Optimize(graph, initial, s.logger)
	if err != nil {
		return errors.Wrap(err, "pose solve")
	}

	refined, ok := result.Pose(poseKey)
	if !ok {
		return errors.Errorf("no estimate for %v after solve", poseKey)
	}
	*poseGuess = refined
	if intrinsicsKey != nil {
		params, ok := result.Vector(*intrinsicsKey)
		if !ok {
			return errors.Errorf("no estimate for %v after solve", *intrinsicsKey)
		}
		if err := cam.SetIntrinsics(params); err != nil {
			return err
		}
	}
	s.logger.Debugw("pose solved", "measurements", len(measurements), "intrinsics", s.solveIntrinsics)
	return nil
}

// checkObservability rejects problems with fewer independent measurements than
// free parameters before handing them to the optimizer.
func (s *PoseSolver) checkObservability(distinct []r3.Vector, numMeasurements int, cam camera.Camera) error {
	minDistinct := minPoseCorrespondences
	freeDim := spatialmath.PoseDim
	if s.solveIntrinsics {
		minDistinct = minPoseCorrespondences + 1
		freeDim += len(cam.Intrinsics())
	}
	if len(distinct) < minDistinct {
		return errors.Wrapf(ErrUnderconstrained, "have %d distinct landmarks, need %d", len(distinct), minDistinct)
	}
	if 2*numMeasurements < freeDim {
		return errors.Wrapf(ErrUnderconstrained, "have %d measurements for %d free parameters", numMeasurements, freeDim)
	}
	if collinear(distinct) {
		return errors.Wrap(ErrUnderconstrained, "landmarks are collinear")
	}
	return nil
}

// distinctLandmarks validates landmark indices and returns the deduplicated 3D
// points the measurements reference.
func distinctLandmarks(measurements []Measurement, targetPoints []r3.Vector) ([]r3.Vector, error) {
	seen := map[int]bool{}
	distinct := make([]r3.Vector, 0, len(measurements))
	for _, m := range measurements {
		if m.LandmarkID < 0 || m.LandmarkID >= len(targetPoints) {
			return nil, errors.Errorf("landmark id %d out of range [0, %d)", m.LandmarkID, len(targetPoints))
		}
		if !seen[m.LandmarkID] {
			seen[m.LandmarkID] = true
			distinct = append(distinct, targetPoints[m.LandmarkID])
		}
	}
	return distinct, nil
}

// collinear reports whether all points lie on one line.
func collinear(pts []r3.Vector) bool {
	if len(pts) < 3 {
		return true
	}
	origin := pts[0]
	var dir r3.Vector
	for _, p := range pts[1:] {
		d := p.Sub(origin)
		if d.Norm() > 1e-12 {
			dir = d.Normalize()
			break
		}
	}
	if dir.Norm() == 0 {
		return true
	}
	for _, p := range pts[1:] {
		d := p.Sub(origin)
		if d.Cross(dir).Norm() > 1e-9*(1+d.Norm()) {
			return false
		}
	}
	return true
}
