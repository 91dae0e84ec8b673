package gtcal

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Target is a known calibration target: an ordered set of 3D points in the
// target frame, shared read-only across cameras and solver calls. Landmark
// identity is position in the sequence.
type Target struct {
	points  []r3.Vector
	rows    int
	cols    int
	spacing float64
}

// NewGridTarget returns a planar grid target with the given point spacing. The
// points lie in the z=0 plane of the target frame, ordered row major with x
// along the columns and y along the rows.
func NewGridTarget(spacing float64, rows, cols int) (*Target, error) {
	if spacing <= 0 {
		return nil, errors.Errorf("grid spacing must be positive, got %v", spacing)
	}
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("grid must have positive dimensions, got %dx%d", rows, cols)
	}
	points := make([]r3.Vector, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			points = append(points, r3.Vector{X: float64(c) * spacing, Y: float64(r) * spacing})
		}
	}
	return &Target{points: points, rows: rows, cols: cols, spacing: spacing}, nil
}

// Points returns the target points. The slice is shared; callers must not
// modify it.
func (t *Target) Points() []r3.Vector {
	return t.points
}

// NumPoints returns the number of target points.
func (t *Target) NumPoints() int {
	return len(t.points)
}

// Center returns the 3D center of the grid.
func (t *Target) Center() r3.Vector {
	return r3.Vector{
		X: float64(t.cols-1) * t.spacing / 2,
		Y: float64(t.rows-1) * t.spacing / 2,
	}
}
