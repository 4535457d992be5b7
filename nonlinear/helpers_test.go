package nonlinear

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/noise"
)

var (
	x0 = inference.Symbol('x', 0)
	x1 = inference.Symbol('x', 1)
	x2 = inference.Symbol('x', 2)
)

// vectorValue is a Euclidean variable.
type vectorValue []float64

func (v vectorValue) Dim() int {
	return len(v)
}

func (v vectorValue) Retract(delta []float64) Value {
	out := make(vectorValue, len(v))
	floats.AddTo(out, v, delta)
	return out
}

func (v vectorValue) LocalCoordinates(other Value) ([]float64, error) {
	o, ok := other.(vectorValue)
	if !ok || len(o) != len(v) {
		return nil, errors.Errorf("cannot compare %v with %v", v, other)
	}
	out := make([]float64, len(v))
	floats.SubTo(out, o, v)
	return out, nil
}

func (v vectorValue) Equal(other Value, tol float64) bool {
	o, ok := other.(vectorValue)
	return ok && len(o) == len(v) && floats.EqualApprox(v, o, tol)
}

func (v vectorValue) String() string {
	return fmt.Sprintf("%v", []float64(v))
}

// otherValue is a second value type for type mismatch tests.
type otherValue struct{ vectorValue }

// testFactor evaluates residual with optional analytic jacobian; numerical otherwise.
type testFactor struct {
	*NoiseModelFactor
	name     string
	residual func(x []Value) ([]float64, error)
	jacobian func(x []Value) []*mat.Dense
}

func newTestFactor(
	t *testing.T,
	name string,
	model noise.Model,
	residual func(x []Value) ([]float64, error),
	jacobian func(x []Value) []*mat.Dense,
	keys ...inference.Key,
) *testFactor {
	t.Helper()
	f := &testFactor{name: name, residual: residual, jacobian: jacobian}
	base, err := NewNoiseModelFactor(model, f, keys...)
	test.That(t, err, test.ShouldBeNil)
	f.NoiseModelFactor = base
	return f
}

func (f *testFactor) EvaluateError(x []Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	r, err := f.residual(x)
	if err != nil || !wantJacobians {
		return r, nil, err
	}
	if f.jacobian != nil {
		return r, f.jacobian(x), nil
	}
	jacobians, err := NumericalJacobians(f.residual, x)
	return r, jacobians, err
}

func (f *testFactor) Equal(other Factor, tol float64) bool {
	o, ok := other.(*testFactor)
	return ok && o.name == f.name && f.NoiseModelFactor.Equal(other, tol)
}

func (f *testFactor) String() string {
	return f.name + " " + f.NoiseModelFactor.String()
}

func unitModel(t *testing.T, dim int) noise.Model {
	t.Helper()
	model, err := noise.NewUnit(dim)
	test.That(t, err, test.ShouldBeNil)
	return model
}

func isotropicModel(t *testing.T, dim int, sigma float64) noise.Model {
	t.Helper()
	model, err := noise.NewIsotropic(dim, sigma)
	test.That(t, err, test.ShouldBeNil)
	return model
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// newPriorFactor measures x − measured with an identity jacobian.
func newPriorFactor(t *testing.T, key inference.Key, measured vectorValue, model noise.Model) *testFactor {
	t.Helper()
	return newTestFactor(t, "prior", model, func(x []Value) ([]float64, error) {
		return measured.LocalCoordinates(x[0])
	}, func(x []Value) []*mat.Dense {
		return []*mat.Dense{identity(len(measured))}
	}, key)
}

// newDifferenceFactor measures x2 − x1 − measured.
func newDifferenceFactor(t *testing.T, k1, k2 inference.Key, measured vectorValue, model noise.Model) *testFactor {
	t.Helper()
	return newTestFactor(t, "difference", model, func(x []Value) ([]float64, error) {
		d, err := x[0].LocalCoordinates(x[1])
		if err != nil {
			return nil, err
		}
		floats.Sub(d, measured)
		return d, nil
	}, nil, k1, k2)
}

func mustInsert(t *testing.T, values *Values, key inference.Key, value Value) {
	t.Helper()
	test.That(t, values.Insert(key, value), test.ShouldBeNil)
}
