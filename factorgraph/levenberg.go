package factorgraph

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoConvergence means the iteration limit was reached before the
	// objective stabilized.
	ErrNoConvergence = errors.New("optimization did not converge within the iteration limit")
	// ErrIndeterminateSystem means the damped normal equations could not be
	// factorized: the problem is degenerate or under-constrained.
	ErrIndeterminateSystem = errors.New("normal equations are singular, the problem is under-constrained")
)

const (
	maxIterations = 100
	initialLambda = 1e-6
	maxLambda     = 1e10
	// central difference step for numeric Jacobians
	jacobianStep = 1e-6
	// accept convergence when the update falls below this
	deltaTolerance = 1e-10
	// or when the relative cost improvement does
	relativeTolerance = 1e-14
	absoluteTolerance = 1e-20
	// a stationary point: no step can improve on a vanishing gradient
	gradientTolerance = 1e-8
)

// Optimize runs Levenberg-Marquardt on the graph starting from the given
// estimate and returns the refined values. The initial estimate is not
// modified. Every variable referenced by a factor must have an estimate;
// estimates no factor references are carried through unchanged.
func Optimize(graph *Graph, initial *Values, logger golog.Logger) (*Values, error) {
	factors := graph.Factors()
	if len(factors) == 0 {
		return initial.Copy(), nil
	}

	// deterministic ordering over the variables the factors actually touch
	seen := map[Key]bool{}
	for _, f := range factors {
		for _, k := range f.Keys() {
			if !initial.Has(k) {
				return nil, errors.Errorf("factor references %v which has no initial estimate", k)
			}
			seen[k] = true
		}
	}
	order := make([]Key, 0, len(seen))
	for _, k := range initial.Keys() {
		if seen[k] {
			order = append(order, k)
		}
	}
	offsets := make(map[Key]int, len(order))
	n := 0
	for _, k := range order {
		offsets[k] = n
		n += initial.dim(k)
	}
	m := graph.Dim()

	current := initial.Copy()
	cost, err := totalCost(factors, current)
	if err != nil {
		return nil, err
	}

	lambda := initialLambda
	jac := mat.NewDense(m, n, nil)
	res := mat.NewVecDense(m, nil)

	for iter := 0; iter < maxIterations; iter++ {
		if err := linearize(factors, current, offsets, jac, res); err != nil {
			return nil, err
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var grad mat.VecDense
		grad.MulVec(jac.T(), res)

		// a vanishing gradient is a stationary point: no damping schedule can
		// find an improving step from here. The initial estimate may already
		// be the minimum, e.g. a warm start from a consistent previous solve.
		// A direction with no information at all is indeterminacy, not
		// convergence.
		if maxAbs(grad.RawVector().Data) < gradientTolerance {
			for i := 0; i < n; i++ {
				if jtj.At(i, i) == 0 {
					return current, ErrIndeterminateSystem
				}
			}
			logger.Debugw("converged", "iterations", iter, "cost", cost)
			return current, nil
		}

		// keep retrying with heavier damping until a step is accepted
		for {
			sys := mat.NewSymDense(n, nil)
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					v := jtj.At(i, j)
					if i == j {
						v += lambda * jtj.At(i, i)
					}
					sys.SetSym(i, j, v)
				}
			}

			var chol mat.Cholesky
			if !chol.Factorize(sys) {
				lambda *= 10
				if lambda > maxLambda {
					return current, ErrIndeterminateSystem
				}
				continue
			}
			var delta mat.VecDense
			if err := chol.SolveVecTo(&delta, &grad); err != nil {
				lambda *= 10
				if lambda > maxLambda {
					return current, ErrIndeterminateSystem
				}
				continue
			}
			delta.ScaleVec(-1, &delta)

			candidate := current.Copy()
			for _, k := range order {
				off := offsets[k]
				candidate.retract(k, delta.RawVector().Data[off:off+candidate.dim(k)])
			}
			candidateCost, err := totalCost(factors, candidate)
			if err != nil {
				return nil, err
			}

			if candidateCost < cost {
				improvement := cost - candidateCost
				current = candidate
				cost = candidateCost
				lambda = math.Max(lambda/10, 1e-12)
				if maxAbs(delta.RawVector().Data) < deltaTolerance ||
					improvement < relativeTolerance*cost ||
					cost < absoluteTolerance {
					logger.Debugw("converged", "iterations", iter+1, "cost", cost)
					return current, nil
				}
				break
			}
			lambda *= 10
			if lambda > maxLambda {
				// no descent direction left that improves the objective
				logger.Debugw("stalled", "iterations", iter+1, "cost", cost)
				return current, ErrNoConvergence
			}
		}
	}
	return current, ErrNoConvergence
}

// linearize fills the Jacobian and residual of the whole graph at the current
// estimate using central differences on each variable's tangent space.
func linearize(factors []Factor, v *Values, offsets map[Key]int, jac *mat.Dense, res *mat.VecDense) error {
	jac.Zero()
	row := 0
	for _, f := range factors {
		base, err := f.Residual(v)
		if err != nil {
			return err
		}
		for i, r := range base {
			res.SetVec(row+i, r)
		}

		for _, k := range f.Keys() {
			dim := v.dim(k)
			delta := make([]float64, dim)
			for d := 0; d < dim; d++ {
				delta[d] = jacobianStep
				restore := perturb(v, k, delta)
				plus, err := f.Residual(v)
				restore()
				if err != nil {
					return err
				}

				delta[d] = -jacobianStep
				restore = perturb(v, k, delta)
				minus, err := f.Residual(v)
				restore()
				if err != nil {
					return err
				}
				delta[d] = 0

				col := offsets[k] + d
				for i := range plus {
					jac.Set(row+i, col, (plus[i]-minus[i])/(2*jacobianStep))
				}
			}
		}
		row += f.Dim()
	}
	return nil
}

// perturb retracts a single variable in place and returns a func undoing it.
func perturb(v *Values, k Key, delta []float64) func() {
	switch k.Kind {
	case PoseKind:
		old := v.poses[k]
		v.poses[k] = old.Retract(delta)
		return func() { v.poses[k] = old }
	case PointKind:
		old := v.points[k]
		v.points[k] = old.Add(r3.Vector{X: delta[0], Y: delta[1], Z: delta[2]})
		return func() { v.points[k] = old }
	case IntrinsicsKind:
		old := v.vectors[k]
		perturbed := make([]float64, len(old))
		for i := range old {
			perturbed[i] = old[i] + delta[i]
		}
		v.vectors[k] = perturbed
		return func() { v.vectors[k] = old }
	default:
		return func() {}
	}
}

func totalCost(factors []Factor, v *Values) (float64, error) {
	var cost float64
	for _, f := range factors {
		r, err := f.Residual(v)
		if err != nil {
			return 0, err
		}
		for _, x := range r {
			cost += 0.5 * x * x
		}
	}
	return cost, nil
}

func maxAbs(xs []float64) float64 {
	var m float64
	for _, x := range xs {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
