// Package gtcal estimates camera poses and, across measurement batches,
// multi-camera calibration from 2D pixel observations of a known 3D target.
package gtcal

import "github.com/golang/geo/r2"

// Measurement is one observed pixel location of a target point, tied to the
// camera that saw it and the landmark it belongs to. Immutable once created.
type Measurement struct {
	// UV is the observed pixel location.
	UV r2.Point
	// CameraID identifies the observing camera by its position in the
	// calibration state's camera set.
	CameraID int
	// LandmarkID indexes the observed point in the target geometry.
	LandmarkID int
}

// NewMeasurement returns a measurement of a target point seen by a camera.
func NewMeasurement(uv r2.Point, cameraID, landmarkID int) Measurement {
	return Measurement{UV: uv, CameraID: cameraID, LandmarkID: landmarkID}
}
