package spatialmath

import (
	"fmt"
)

// CheiralityError is returned when a point to be projected lies on or behind the image plane.
type CheiralityError struct {
	// Depth is the z coordinate of the point in the camera frame.
	Depth float64
}

// NewCheiralityError returns a CheiralityError for a point at depth.
func NewCheiralityError(depth float64) *CheiralityError {
	return &CheiralityError{Depth: depth}
}

func (e *CheiralityError) Error() string {
	return fmt.Sprintf("point is behind the camera (depth %g)", e.Depth)
}
