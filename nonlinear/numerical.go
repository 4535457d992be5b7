package nonlinear

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// NumericalStep is the central difference step used by NumericalJacobian.
const NumericalStep = 1e-5

// NumericalJacobian returns the Jacobian of h at x with respect to the tangent space of x, by
// central differences of h(x.Retract(ξ)) around ξ = 0.
func NumericalJacobian(h func(Value) ([]float64, error), x Value) (*mat.Dense, error) {
	y0, err := h(x)
	if err != nil {
		return nil, err
	}
	if len(y0) == 0 || x.Dim() == 0 {
		return nil, errors.New("cannot differentiate an empty function")
	}
	var evalErr error
	jac := mat.NewDense(len(y0), x.Dim(), nil)
	fd.Jacobian(jac, func(y, xi []float64) {
		if evalErr != nil {
			return
		}
		out, err := h(x.Retract(xi))
		if err != nil {
			evalErr = err
			return
		}
		if len(out) != len(y) {
			evalErr = errors.Errorf("function changed dimension from %d to %d", len(y), len(out))
			return
		}
		copy(y, out)
	}, make([]float64, x.Dim()), &fd.JacobianSettings{
		Formula:     fd.Central,
		Step:        NumericalStep,
		OriginValue: y0,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return jac, nil
}

// NumericalJacobians differentiates h with respect to each of x in turn, holding the others
// fixed.
func NumericalJacobians(h func([]Value) ([]float64, error), x []Value) ([]*mat.Dense, error) {
	jacobians := make([]*mat.Dense, len(x))
	for i := range x {
		perturbed := append([]Value(nil), x...)
		jac, err := NumericalJacobian(func(xi Value) ([]float64, error) {
			perturbed[i] = xi
			return h(perturbed)
		}, x[i])
		if err != nil {
			return nil, err
		}
		jacobians[i] = jac
	}
	return jacobians, nil
}
