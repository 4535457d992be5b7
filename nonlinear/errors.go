package nonlinear

import (
	"fmt"

	"go.viam.com/factorgraph/inference"
)

// MissingVariableError is returned when a factor references a key that has no value.
type MissingVariableError struct {
	Key inference.Key
}

// NewMissingVariableError returns a MissingVariableError for key.
func NewMissingVariableError(key inference.Key) *MissingVariableError {
	return &MissingVariableError{Key: key}
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("no value for variable %s", e.Key)
}

// ValueTypeError is returned when a value is not of the type the caller expects.
type ValueTypeError struct {
	Key      inference.Key
	Expected string
	Actual   string
}

// NewValueTypeError returns a ValueTypeError for key, naming the expected type.
func NewValueTypeError(key inference.Key, expected string, actual interface{}) *ValueTypeError {
	return &ValueTypeError{Key: key, Expected: expected, Actual: fmt.Sprintf("%T", actual)}
}

func (e *ValueTypeError) Error() string {
	return fmt.Sprintf("variable %s: expected %s but got %s", e.Key, e.Expected, e.Actual)
}

// KeyExistsError is returned when inserting a key that already has a value.
type KeyExistsError struct {
	Key inference.Key
}

// NewKeyExistsError returns a KeyExistsError for key.
func NewKeyExistsError(key inference.Key) *KeyExistsError {
	return &KeyExistsError{Key: key}
}

func (e *KeyExistsError) Error() string {
	return fmt.Sprintf("variable %s already has a value", e.Key)
}

// DimensionMismatchError is returned when a vector or matrix does not have the dimension its
// variable or factor requires.
type DimensionMismatchError struct {
	Key      inference.Key
	What     string
	Expected int
	Actual   int
}

// NewDimensionMismatchError returns a DimensionMismatchError describing what for key.
func NewDimensionMismatchError(key inference.Key, what string, expected, actual int) *DimensionMismatchError {
	return &DimensionMismatchError{Key: key, What: what, Expected: expected, Actual: actual}
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s for %s: expected dimension %d, got %d", e.What, e.Key, e.Expected, e.Actual)
}

// InvalidConfigurationError holds every problem found in optimizer parameters.
type InvalidConfigurationError struct {
	Err error
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid optimizer configuration: %v", e.Err)
}

func (e *InvalidConfigurationError) Unwrap() error {
	return e.Err
}

// IterationError wraps a structural failure raised while iterating.
type IterationError struct {
	Iteration    int
	CurrentError float64
	Err          error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iteration %d (error %g): %v", e.Iteration, e.CurrentError, e.Err)
}

func (e *IterationError) Unwrap() error {
	return e.Err
}
