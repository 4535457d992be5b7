// Package slam implements the measurement factors of visual SLAM and structure from motion over
// the variables of spatialmath.
package slam

import (
	"reflect"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/noise"
	"go.viam.com/factorgraph/nonlinear"
)

// variable returns the i-th variable of a factor as a T.
func variable[T any](keys []inference.Key, x []nonlinear.Value, i int) (T, error) {
	typed, ok := x[i].(T)
	if !ok {
		return typed, nonlinear.NewValueTypeError(keys[i], reflect.TypeFor[T]().String(), x[i])
	}
	return typed, nil
}

// withNumericalJacobians evaluates residual and, if asked, its central difference Jacobians.
func withNumericalJacobians(
	residual func(x []nonlinear.Value) ([]float64, error),
	x []nonlinear.Value,
	wantJacobians bool,
) ([]float64, []*mat.Dense, error) {
	r, err := residual(x)
	if err != nil || !wantJacobians {
		return r, nil, err
	}
	jacobians, err := nonlinear.NumericalJacobians(residual, x)
	if err != nil {
		return nil, nil, err
	}
	return r, jacobians, nil
}

func checkModelDim(model noise.Model, dim int) error {
	if model == nil {
		return errors.New("factor needs a noise model")
	}
	if model.Dim() != dim {
		return errors.Errorf("noise model has dimension %d but the measurement has dimension %d", model.Dim(), dim)
	}
	return nil
}

// Lie is a variable with a group difference, such as a rotation or a pose.
type Lie[T any] interface {
	nonlinear.Value
	// Between returns this⁻¹·other.
	Between(other T) T
}

// PriorFactor softly anchors a variable at a prior value. Its residual is the local coordinates
// of the variable around the prior.
type PriorFactor[T nonlinear.Value] struct {
	*nonlinear.NoiseModelFactor
	prior T
}

// NewPriorFactor returns a prior on key.
func NewPriorFactor[T nonlinear.Value](key inference.Key, prior T, model noise.Model) (*PriorFactor[T], error) {
	if err := checkModelDim(model, prior.Dim()); err != nil {
		return nil, err
	}
	f := &PriorFactor[T]{prior: prior}
	base, err := nonlinear.NewNoiseModelFactor(model, f, key)
	if err != nil {
		return nil, err
	}
	f.NoiseModelFactor = base
	return f, nil
}

// Prior returns the prior value.
func (f *PriorFactor[T]) Prior() T {
	return f.prior
}

// EvaluateError implements nonlinear.Evaluator.
func (f *PriorFactor[T]) EvaluateError(x []nonlinear.Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	keys := f.Keys()
	return withNumericalJacobians(func(x []nonlinear.Value) ([]float64, error) {
		value, err := variable[T](keys, x, 0)
		if err != nil {
			return nil, err
		}
		return f.prior.LocalCoordinates(value)
	}, x, wantJacobians)
}

// Equal compares keys, noise models and priors.
func (f *PriorFactor[T]) Equal(other nonlinear.Factor, tol float64) bool {
	o, ok := other.(*PriorFactor[T])
	return ok && f.NoiseModelFactor.Equal(o, tol) && f.prior.Equal(o.prior, tol)
}

func (f *PriorFactor[T]) String() string {
	return "PriorFactor " + f.NoiseModelFactor.String() + " prior=" + f.prior.String()
}

// BetweenFactor measures the relative value of two variables.
type BetweenFactor[T Lie[T]] struct {
	*nonlinear.NoiseModelFactor
	measured T
}

// NewBetweenFactor returns a factor measuring key1⁻¹·key2.
func NewBetweenFactor[T Lie[T]](key1, key2 inference.Key, measured T, model noise.Model) (*BetweenFactor[T], error) {
	if err := checkModelDim(model, measured.Dim()); err != nil {
		return nil, err
	}
	f := &BetweenFactor[T]{measured: measured}
	base, err := nonlinear.NewNoiseModelFactor(model, f, key1, key2)
	if err != nil {
		return nil, err
	}
	f.NoiseModelFactor = base
	return f, nil
}

// Measured returns the measured relative value.
func (f *BetweenFactor[T]) Measured() T {
	return f.measured
}

// EvaluateError implements nonlinear.Evaluator.
func (f *BetweenFactor[T]) EvaluateError(x []nonlinear.Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	keys := f.Keys()
	return withNumericalJacobians(func(x []nonlinear.Value) ([]float64, error) {
		a, err := variable[T](keys, x, 0)
		if err != nil {
			return nil, err
		}
		b, err := variable[T](keys, x, 1)
		if err != nil {
			return nil, err
		}
		return f.measured.LocalCoordinates(a.Between(b))
	}, x, wantJacobians)
}

// Equal compares keys, noise models and measurements.
func (f *BetweenFactor[T]) Equal(other nonlinear.Factor, tol float64) bool {
	o, ok := other.(*BetweenFactor[T])
	return ok && f.NoiseModelFactor.Equal(o, tol) && f.measured.Equal(o.measured, tol)
}

func (f *BetweenFactor[T]) String() string {
	return "BetweenFactor " + f.NoiseModelFactor.String() + " measured=" + f.measured.String()
}

// NonlinearEquality pins a variable to a feasible value with a hard constraint.
type NonlinearEquality[T nonlinear.Value] struct {
	*nonlinear.NoiseModelFactor
	feasible T
}

// NewNonlinearEquality returns a hard constraint holding key at feasible.
func NewNonlinearEquality[T nonlinear.Value](key inference.Key, feasible T) (*NonlinearEquality[T], error) {
	model, err := noise.NewAllConstrained(feasible.Dim())
	if err != nil {
		return nil, err
	}
	f := &NonlinearEquality[T]{feasible: feasible}
	base, err := nonlinear.NewNoiseModelFactor(model, f, key)
	if err != nil {
		return nil, err
	}
	f.NoiseModelFactor = base
	return f, nil
}

// Feasible returns the constrained value.
func (f *NonlinearEquality[T]) Feasible() T {
	return f.feasible
}

// EvaluateError implements nonlinear.Evaluator.
func (f *NonlinearEquality[T]) EvaluateError(x []nonlinear.Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	keys := f.Keys()
	return withNumericalJacobians(func(x []nonlinear.Value) ([]float64, error) {
		value, err := variable[T](keys, x, 0)
		if err != nil {
			return nil, err
		}
		return f.feasible.LocalCoordinates(value)
	}, x, wantJacobians)
}

// Equal compares keys and feasible values.
func (f *NonlinearEquality[T]) Equal(other nonlinear.Factor, tol float64) bool {
	o, ok := other.(*NonlinearEquality[T])
	return ok && f.NoiseModelFactor.Equal(o, tol) && f.feasible.Equal(o.feasible, tol)
}

func (f *NonlinearEquality[T]) String() string {
	return "NonlinearEquality " + inference.KeysString(f.Keys()) + " feasible=" + f.feasible.String()
}
