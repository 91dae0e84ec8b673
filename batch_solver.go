package gtcal

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/mfkiwl/gtcal/camera"
	"github.com/mfkiwl/gtcal/factorgraph"
	"github.com/mfkiwl/gtcal/spatialmath"
)

// Default noise model standard deviations for the batch solver's factors.
const (
	defaultPosePriorSigma     = 0.1
	defaultLandmarkPriorSigma = 1e-8
)

// Options holds the uncertainty models the batch solver weighs its factors
// with. Nil fields are filled with defaults by NewBatchSolver.
type Options struct {
	// PosePriorNoise weighs the one-time prior anchoring a newly registered
	// camera's pose. Dimension 6.
	PosePriorNoise *factorgraph.Diagonal
	// LandmarkPriorNoise weighs the near-exact priors pinning target points to
	// their known geometry. Dimension 3.
	LandmarkPriorNoise *factorgraph.Diagonal
	// PixelNoise weighs every reprojection factor. Dimension 2.
	PixelNoise *factorgraph.Diagonal
}

// DefaultOptions returns the noise models NewBatchSolver fills in for nil
// fields: pose prior sigma 0.1 on all six dimensions, landmark prior sigma
// 1e-8, pixel sigma 1.
func DefaultOptions() Options {
	var opts Options
	// the sigmas are positive constants, construction cannot fail
	opts.PosePriorNoise, _ = factorgraph.NewIsotropicNoise(spatialmath.PoseDim, defaultPosePriorSigma)
	opts.LandmarkPriorNoise, _ = factorgraph.NewIsotropicNoise(3, defaultLandmarkPriorSigma)
	opts.PixelNoise, _ = factorgraph.NewIsotropicNoise(2, defaultPixelSigma)
	return opts
}

// State is the persistent side of an incremental calibration session. It owns
// the camera identity bookkeeping, the per-camera update counters and the
// optimizer holding the accumulated factor graph. It is constructed once per
// session with a fixed camera set and mutated only through BatchSolver.Solve.
type State struct {
	// cameraIndices maps camera identity to a dense solver index, assigned
	// first come first served by order of first appearance and stable for the
	// state's lifetime.
	cameraIndices map[int]int
	cameras       []camera.Camera
	// numCameraUpdates[i] counts the batches that touched dense index i; it
	// versions the camera's pose variable so each update cycle gets a fresh
	// key instead of overwriting history.
	numCameraUpdates []int

	anchoredLandmarks map[int]bool
	optimizer         *factorgraph.Optimizer
	currentEstimate   *factorgraph.Values
}

// NewState returns a calibration state tracking the given cameras. The camera
// count is fixed for the state's lifetime; a Measurement's CameraID addresses
// this slice.
func NewState(cameras []camera.Camera, logger golog.Logger) (*State, error) {
	if len(cameras) == 0 {
		return nil, errors.New("calibration state needs at least one camera")
	}
	for i, cam := range cameras {
		if cam == nil {
			return nil, errors.Errorf("camera %d is nil", i)
		}
	}
	return &State{
		cameraIndices:     map[int]int{},
		cameras:           append([]camera.Camera(nil), cameras...),
		numCameraUpdates:  make([]int, len(cameras)),
		anchoredLandmarks: map[int]bool{},
		optimizer:         factorgraph.NewOptimizer(logger),
		currentEstimate:   factorgraph.NewValues(),
	}, nil
}

// NumCameras returns the number of cameras the state tracks.
func (s *State) NumCameras() int {
	return len(s.cameras)
}

// CameraIndex returns the dense solver index assigned to a camera, if it has
// been observed yet.
func (s *State) CameraIndex(cameraID int) (int, bool) {
	idx, ok := s.cameraIndices[cameraID]
	return idx, ok
}

// NumCameraUpdates returns how many batches have touched the camera at the
// given dense index, and whether the index is in range.
func (s *State) NumCameraUpdates(index int) (int, bool) {
	if index < 0 || index >= len(s.numCameraUpdates) {
		return 0, false
	}
	return s.numCameraUpdates[index], true
}

// CurrentEstimate returns the current best estimate of every optimizer
// variable. Callers must treat it as read-only.
func (s *State) CurrentEstimate() *factorgraph.Values {
	return s.currentEstimate
}

// NumFactors returns the number of factors accumulated across all batches.
func (s *State) NumFactors() int {
	return s.optimizer.NumFactors()
}

// BatchSolver grows a State's optimization problem with each batch of
// measurements and triggers an incremental solve. It is a stateless policy
// object: the target geometry and uncertainty models are fixed at
// construction, all mutable state lives in the State it is handed.
type BatchSolver struct {
	targetPoints []r3.Vector
	opts         Options
	logger       golog.Logger
}

// NewBatchSolver returns a batch solver over the given target geometry. Nil
// noise models in opts are replaced with the defaults: pose prior σ=0.1 on all
// six dimensions, landmark prior σ=1e-8, pixel σ=1.0.
func NewBatchSolver(targetPoints []r3.Vector, opts Options, logger golog.Logger) (*BatchSolver, error) {
	if len(targetPoints) == 0 {
		return nil, errors.New("batch solver needs target geometry")
	}
	defaults := DefaultOptions()
	if opts.PosePriorNoise == nil {
		opts.PosePriorNoise = defaults.PosePriorNoise
	}
	if opts.LandmarkPriorNoise == nil {
		opts.LandmarkPriorNoise = defaults.LandmarkPriorNoise
	}
	if opts.PixelNoise == nil {
		opts.PixelNoise = defaults.PixelNoise
	}
	var err error
	if opts.PosePriorNoise.Dim() != spatialmath.PoseDim {
		err = multierr.Append(err, errors.Errorf("pose prior noise must have dimension %d", spatialmath.PoseDim))
	}
	if opts.LandmarkPriorNoise.Dim() != 3 {
		err = multierr.Append(err, errors.New("landmark prior noise must have dimension 3"))
	}
	if opts.PixelNoise.Dim() != 2 {
		err = multierr.Append(err, errors.New("pixel noise must have dimension 2"))
	}
	if err != nil {
		return nil, err
	}
	return &BatchSolver{targetPoints: targetPoints, opts: opts, logger: logger}, nil
}

// TargetPoints returns the target geometry the solver was constructed with.
func (b *BatchSolver) TargetPoints() []r3.Vector {
	return b.targetPoints
}

// Solve grows the state's optimization problem with factors for the batch and
// runs an incremental update. On error the state is left in whatever partially
// updated form the optimizer produced; callers must rebuild the state before
// feeding it further batches.
func (b *BatchSolver) Solve(measurements []Measurement, state *State) error {
	if state == nil {
		return errors.New("batch solver needs a state")
	}
	if len(measurements) == 0 {
		return errors.New("batch solver needs measurements")
	}
	for _, m := range measurements {
		if m.CameraID < 0 || m.CameraID >= state.NumCameras() {
			return errors.Errorf("camera id %d out of range [0, %d)", m.CameraID, state.NumCameras())
		}
		if m.LandmarkID < 0 || m.LandmarkID >= len(b.targetPoints) {
			return errors.Errorf("landmark id %d out of range [0, %d)", m.LandmarkID, len(b.targetPoints))
		}
	}

	// group measurements per camera, preserving order of first appearance
	var order []int
	grouped := map[int][]Measurement{}
	for _, m := range measurements {
		if _, ok := grouped[m.CameraID]; !ok {
			order = append(order, m.CameraID)
		}
		grouped[m.CameraID] = append(grouped[m.CameraID], m)
	}

	graph := factorgraph.NewGraph()
	values := factorgraph.NewValues()
	for _, cameraID := range order {
		batch := grouped[cameraID]
		cam := state.cameras[cameraID]

		index, known := state.cameraIndices[cameraID]
		if !known {
			index = len(state.cameraIndices)
			state.cameraIndices[cameraID] = index
			if err := b.addCalibrationPriors(index, cam, graph, values); err != nil {
				return err
			}
			b.logger.Debugw("registered camera", "camera", cameraID, "index", index)
		}

		generation := state.numCameraUpdates[index]
		poseKey := factorgraph.PoseKey(index, generation)
		if !values.Has(poseKey) {
			// later generations warm start from the previous version's estimate
			init := cam.Pose()
			if prev, ok := state.currentEstimate.Pose(factorgraph.PoseKey(index, generation-1)); ok {
				init = prev
			}
			values.SetPose(poseKey, init)
		}

		// priors must be in place before any factor referencing the same
		// variables is linearized
		if err := b.addLandmarkPriors(batch, graph, values, state); err != nil {
			return err
		}
		if err := b.addLandmarkFactors(index, cam, generation, batch, graph); err != nil {
			return err
		}
		state.numCameraUpdates[index]++
	}

	state.optimizer.AddFactors(graph)
	if err := state.optimizer.AddInitialEstimates(values); err != nil {
		return errors.Wrap(err, "batch solve")
	}
	err := state.optimizer.Update()
	state.currentEstimate = state.optimizer.CurrentEstimate()
	if err != nil {
		return errors.Wrap(err, "batch solve")
	}
	b.logger.Debugw("batch solved",
		"measurements", len(measurements),
		"factors", state.optimizer.NumFactors(),
		"variables", state.optimizer.NumVariables(),
	)
	return nil
}

// addCalibrationPriors anchors a newly registered camera: a one-time prior
// around its current pose plus the initial estimate for its first pose
// variable. Without it the first solve would have gauge freedom.
func (b *BatchSolver) addCalibrationPriors(
	cameraIndex int,
	cam camera.Camera,
	graph *factorgraph.Graph,
	values *factorgraph.Values,
) error {
	pose := cam.Pose()
	if err := b.addPosePrior(cameraIndex, pose, graph); err != nil {
		return err
	}
	values.SetPose(factorgraph.PoseKey(cameraIndex, 0), pose)
	return nil
}

// addPosePrior adds the 6-DoF prior for a camera's first pose variable.
func (b *BatchSolver) addPosePrior(cameraIndex int, poseTargetCam spatialmath.Pose, graph *factorgraph.Graph) error {
	prior, err := factorgraph.NewPosePrior(factorgraph.PoseKey(cameraIndex, 0), poseTargetCam, b.opts.PosePriorNoise)
	if err != nil {
		return err
	}
	graph.Add(prior)
	return nil
}

// addLandmarkPriors anchors every landmark the batch references that is not
// anchored yet. Anchoring happens at most once per landmark for the graph's
// lifetime; the tight prior pins the point to the known geometry rather than
// letting it be estimated.
func (b *BatchSolver) addLandmarkPriors(
	measurements []Measurement,
	graph *factorgraph.Graph,
	values *factorgraph.Values,
	state *State,
) error {
	for _, m := range measurements {
		if state.anchoredLandmarks[m.LandmarkID] {
			continue
		}
		pt := b.targetPoints[m.LandmarkID]
		key := factorgraph.PointKey(m.LandmarkID)
		prior, err := factorgraph.NewPointPrior(key, pt, b.opts.LandmarkPriorNoise)
		if err != nil {
			return err
		}
		graph.Add(prior)
		values.SetPoint(key, pt)
		state.anchoredLandmarks[m.LandmarkID] = true
	}
	return nil
}

// addLandmarkFactors adds one reprojection factor per measurement against the
// camera's current-generation pose variable.
func (b *BatchSolver) addLandmarkFactors(
	cameraIndex int,
	cam camera.Camera,
	numCameraUpdate int,
	measurements []Measurement,
	graph *factorgraph.Graph,
) error {
	poseKey := factorgraph.PoseKey(cameraIndex, numCameraUpdate)
	for _, m := range measurements {
		f, err := factorgraph.NewProjection(poseKey, factorgraph.PointKey(m.LandmarkID), m.UV, cam, b.opts.PixelNoise)
		if err != nil {
			return err
		}
		graph.Add(f)
	}
	return nil
}
