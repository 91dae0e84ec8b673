// Package factorgraph is the optimization collaborator behind the calibration
// solvers: a nonlinear factor graph over typed variables, a Levenberg-Marquardt
// core, and an incremental optimizer that grows its problem as factors arrive.
package factorgraph

import "fmt"

// VariableKind discriminates the variable families a Key can address.
type VariableKind uint8

const (
	// PoseKind is a 6-DoF rigid transform variable.
	PoseKind VariableKind = iota + 1
	// PointKind is a 3D position variable.
	PointKind
	// IntrinsicsKind is a flat camera intrinsics vector variable.
	IntrinsicsKind
)

// Key identifies an optimizer variable. Camera pose variables carry a
// generation so that successive update cycles for the same camera reference
// distinct versions instead of overwriting history in place.
type Key struct {
	Kind       VariableKind
	Index      int
	Generation int
}

// PoseKey returns the key for a camera's pose variable at a given update generation.
func PoseKey(index, generation int) Key {
	return Key{Kind: PoseKind, Index: index, Generation: generation}
}

// PointKey returns the key for a landmark position variable.
func PointKey(index int) Key {
	return Key{Kind: PointKind, Index: index}
}

// IntrinsicsKey returns the key for a camera's intrinsics vector variable.
func IntrinsicsKey(index int) Key {
	return Key{Kind: IntrinsicsKind, Index: index}
}

// String renders the key in a compact symbol form, e.g. "x2@5" for the pose of
// camera 2 at generation 5, "l17" for landmark 17, "k0" for intrinsics 0.
func (k Key) String() string {
	switch k.Kind {
	case PoseKind:
		return fmt.Sprintf("x%d@%d", k.Index, k.Generation)
	case PointKind:
		return fmt.Sprintf("l%d", k.Index)
	case IntrinsicsKind:
		return fmt.Sprintf("k%d", k.Index)
	default:
		return fmt.Sprintf("?%d/%d/%d", k.Kind, k.Index, k.Generation)
	}
}

// keyLess imposes a deterministic variable ordering for linearization.
func keyLess(a, b Key) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Generation < b.Generation
}
