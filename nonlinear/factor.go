package nonlinear

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/linear"
	"go.viam.com/factorgraph/noise"
)

// Factor is one measurement constraint over a fixed tuple of variables. Factors are immutable.
type Factor interface {
	// Keys are the variables the factor depends on, in a fixed order.
	Keys() []inference.Key
	// Dim is the residual dimension.
	Dim() int
	// UnwhitenedError is the raw residual h(x) − z.
	UnwhitenedError(values *Values) ([]float64, error)
	// Error is 0.5 times the squared whitened residual.
	Error(values *Values) (float64, error)
	// Linearize returns the whitened residual and Jacobians at values.
	Linearize(values *Values) (*linear.JacobianFactor, error)
	Equal(other Factor, tol float64) bool
	String() string
}

// Evaluator is the measurement function of a factor. Given the values of its keys, in key
// order, it returns the residual h(x) − z and, when wantJacobians is set, one Jacobian per key
// with respect to that variable's tangent space.
type Evaluator interface {
	EvaluateError(x []Value, wantJacobians bool) ([]float64, []*mat.Dense, error)
}

// NoiseModelFactor implements the whitening and bookkeeping shared by every factor with a
// Gaussian noise model. Concrete factors embed it and supply an Evaluator.
type NoiseModelFactor struct {
	keys  []inference.Key
	model noise.Model
	eval  Evaluator
}

// NewNoiseModelFactor returns the shared part of a factor over keys.
func NewNoiseModelFactor(model noise.Model, eval Evaluator, keys ...inference.Key) (*NoiseModelFactor, error) {
	if model == nil {
		return nil, errors.New("factor needs a noise model")
	}
	if eval == nil {
		return nil, errors.New("factor needs a measurement function")
	}
	if len(keys) == 0 {
		return nil, errors.New("factor needs at least one key")
	}
	seen := make(map[inference.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return nil, errors.Errorf("factor references %s twice", k)
		}
		seen[k] = struct{}{}
	}
	return &NoiseModelFactor{keys: append([]inference.Key(nil), keys...), model: model, eval: eval}, nil
}

// Keys returns the factor's keys.
func (f *NoiseModelFactor) Keys() []inference.Key {
	return append([]inference.Key(nil), f.keys...)
}

// Dim is the dimension of the noise model.
func (f *NoiseModelFactor) Dim() int {
	return f.model.Dim()
}

// NoiseModel returns the noise model.
func (f *NoiseModelFactor) NoiseModel() noise.Model {
	return f.model
}

func (f *NoiseModelFactor) base() *NoiseModelFactor {
	return f
}

func (f *NoiseModelFactor) variables(values *Values) ([]Value, error) {
	x := make([]Value, len(f.keys))
	for i, k := range f.keys {
		value, ok := values.Get(k)
		if !ok {
			return nil, NewMissingVariableError(k)
		}
		x[i] = value
	}
	return x, nil
}

func (f *NoiseModelFactor) evaluate(values *Values, wantJacobians bool) ([]float64, []*mat.Dense, []Value, error) {
	x, err := f.variables(values)
	if err != nil {
		return nil, nil, nil, err
	}
	residual, jacobians, err := f.eval.EvaluateError(x, wantJacobians)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(residual) != f.Dim() {
		return nil, nil, nil, NewDimensionMismatchError(f.keys[0], "residual", f.Dim(), len(residual))
	}
	return residual, jacobians, x, nil
}

// UnwhitenedError returns h(x) − z.
func (f *NoiseModelFactor) UnwhitenedError(values *Values) ([]float64, error) {
	residual, _, _, err := f.evaluate(values, false)
	return residual, err
}

// WhitenedError returns R·(h(x) − z).
func (f *NoiseModelFactor) WhitenedError(values *Values) ([]float64, error) {
	residual, err := f.UnwhitenedError(values)
	if err != nil {
		return nil, err
	}
	return f.model.Whiten(residual), nil
}

// Error returns 0.5‖R·(h(x) − z)‖².
func (f *NoiseModelFactor) Error(values *Values) (float64, error) {
	residual, err := f.UnwhitenedError(values)
	if err != nil {
		return 0, err
	}
	return 0.5 * f.model.Distance(residual), nil
}

// Linearize returns the JacobianFactor with blocks R·H_k and right hand side −R·(h(x) − z).
func (f *NoiseModelFactor) Linearize(values *Values) (*linear.JacobianFactor, error) {
	residual, jacobians, x, err := f.evaluate(values, true)
	if err != nil {
		return nil, err
	}
	if len(jacobians) != len(f.keys) {
		return nil, errors.Errorf("factor on %s returned %d jacobians", inference.KeysString(f.keys), len(jacobians))
	}
	blocks := make([]*mat.Dense, len(jacobians))
	for i, h := range jacobians {
		if h == nil {
			return nil, errors.Errorf("factor on %s returned no jacobian for %s", inference.KeysString(f.keys), f.keys[i])
		}
		rows, cols := h.Dims()
		if rows != f.Dim() {
			return nil, NewDimensionMismatchError(f.keys[i], "jacobian rows", f.Dim(), rows)
		}
		if cols != x[i].Dim() {
			return nil, NewDimensionMismatchError(f.keys[i], "jacobian columns", x[i].Dim(), cols)
		}
		blocks[i] = f.model.WhitenMatrix(h)
	}
	b := f.model.Whiten(residual)
	for i := range b {
		b[i] = -b[i]
	}
	return linear.NewJacobianFactor(f.keys, blocks, mat.NewVecDense(len(b), b))
}

type noiseModelFactorHolder interface {
	base() *NoiseModelFactor
}

// Equal compares keys and noise models. Concrete factors also compare their measurements.
func (f *NoiseModelFactor) Equal(other Factor, tol float64) bool {
	holder, ok := other.(noiseModelFactorHolder)
	if !ok {
		return false
	}
	o := holder.base()
	return slices.Equal(f.keys, o.keys) && f.model.Equal(o.model, tol)
}

func (f *NoiseModelFactor) String() string {
	return fmt.Sprintf("%s %s", inference.KeysString(f.keys), f.model)
}
