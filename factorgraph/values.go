package factorgraph

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mfkiwl/gtcal/spatialmath"
)

// Values maps variable keys to their current estimates. Each key holds exactly
// one of the supported variable types, determined by its kind.
type Values struct {
	poses   map[Key]spatialmath.Pose
	points  map[Key]r3.Vector
	vectors map[Key][]float64
}

// NewValues returns an empty estimate container.
func NewValues() *Values {
	return &Values{
		poses:   map[Key]spatialmath.Pose{},
		points:  map[Key]r3.Vector{},
		vectors: map[Key][]float64{},
	}
}

// SetPose stores a pose estimate under a pose-kind key.
func (v *Values) SetPose(k Key, pose spatialmath.Pose) {
	v.poses[k] = pose
}

// Pose returns the pose estimate for the key, if present.
func (v *Values) Pose(k Key) (spatialmath.Pose, bool) {
	p, ok := v.poses[k]
	return p, ok
}

// SetPoint stores a 3D position estimate under a point-kind key.
func (v *Values) SetPoint(k Key, pt r3.Vector) {
	v.points[k] = pt
}

// Point returns the position estimate for the key, if present.
func (v *Values) Point(k Key) (r3.Vector, bool) {
	p, ok := v.points[k]
	return p, ok
}

// SetVector stores a flat vector estimate under an intrinsics-kind key. The
// slice is copied.
func (v *Values) SetVector(k Key, vec []float64) {
	v.vectors[k] = append([]float64(nil), vec...)
}

// Vector returns a copy of the vector estimate for the key, if present.
func (v *Values) Vector(k Key) ([]float64, bool) {
	vec, ok := v.vectors[k]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), vec...), true
}

// Has reports whether the key has an estimate.
func (v *Values) Has(k Key) bool {
	switch k.Kind {
	case PoseKind:
		_, ok := v.poses[k]
		return ok
	case PointKind:
		_, ok := v.points[k]
		return ok
	case IntrinsicsKind:
		_, ok := v.vectors[k]
		return ok
	default:
		return false
	}
}

// Len returns the number of variables held.
func (v *Values) Len() int {
	return len(v.poses) + len(v.points) + len(v.vectors)
}

// Keys returns all keys in a deterministic order.
func (v *Values) Keys() []Key {
	keys := make([]Key, 0, v.Len())
	for k := range v.poses {
		keys = append(keys, k)
	}
	for k := range v.points {
		keys = append(keys, k)
	}
	for k := range v.vectors {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
	return keys
}

// Copy returns a deep copy.
func (v *Values) Copy() *Values {
	out := NewValues()
	for k, p := range v.poses {
		out.poses[k] = p
	}
	for k, p := range v.points {
		out.points[k] = p
	}
	for k, vec := range v.vectors {
		out.vectors[k] = append([]float64(nil), vec...)
	}
	return out
}

// Insert merges the other container's estimates into this one. A key that
// already has an estimate is an error: variables are created once and then
// updated through optimization, never re-inserted.
func (v *Values) Insert(other *Values) error {
	for _, k := range other.Keys() {
		if v.Has(k) {
			return errors.Errorf("variable %v already has an estimate", k)
		}
		switch k.Kind {
		case PoseKind:
			v.poses[k] = other.poses[k]
		case PointKind:
			v.points[k] = other.points[k]
		case IntrinsicsKind:
			v.vectors[k] = append([]float64(nil), other.vectors[k]...)
		}
	}
	return nil
}

// dim returns the tangent dimension of the variable under the key, or 0 when
// the key has no estimate.
func (v *Values) dim(k Key) int {
	switch k.Kind {
	case PoseKind:
		if _, ok := v.poses[k]; ok {
			return spatialmath.PoseDim
		}
	case PointKind:
		if _, ok := v.points[k]; ok {
			return 3
		}
	case IntrinsicsKind:
		if vec, ok := v.vectors[k]; ok {
			return len(vec)
		}
	}
	return 0
}

// retract perturbs the variable under the key by a tangent-space delta, in place.
func (v *Values) retract(k Key, delta []float64) {
	switch k.Kind {
	case PoseKind:
		v.poses[k] = v.poses[k].Retract(delta)
	case PointKind:
		p := v.points[k]
		v.points[k] = r3.Vector{X: p.X + delta[0], Y: p.Y + delta[1], Z: p.Z + delta[2]}
	case IntrinsicsKind:
		vec := v.vectors[k]
		for i := range vec {
			vec[i] += delta[i]
		}
	}
}
