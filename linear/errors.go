package linear

import (
	"fmt"

	"go.viam.com/factorgraph/inference"
)

// DegenerateSystemError is returned when a variable's local system is singular beyond the rank
// tolerance, so its conditional cannot be solved.
type DegenerateSystemError struct {
	Key   inference.Key
	Pivot float64
}

// NewDegenerateSystemError returns a DegenerateSystemError for key.
func NewDegenerateSystemError(key inference.Key, pivot float64) *DegenerateSystemError {
	return &DegenerateSystemError{Key: key, Pivot: pivot}
}

func (e *DegenerateSystemError) Error() string {
	return fmt.Sprintf("degenerate linear system eliminating %s: pivot %g", e.Key, e.Pivot)
}
