package slam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/noise"
	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/spatialmath"
)

// RangeFactor measures the distance between the positions of two variables, which may be
// points, poses or cameras in any combination.
type RangeFactor struct {
	*nonlinear.NoiseModelFactor
	measured float64
}

// NewRangeFactor returns a factor measuring the distance between key1 and key2.
func NewRangeFactor(key1, key2 inference.Key, measured float64, model noise.Model) (*RangeFactor, error) {
	if err := checkModelDim(model, 1); err != nil {
		return nil, err
	}
	f := &RangeFactor{measured: measured}
	base, err := nonlinear.NewNoiseModelFactor(model, f, key1, key2)
	if err != nil {
		return nil, err
	}
	f.NoiseModelFactor = base
	return f, nil
}

// Measured returns the measured range.
func (f *RangeFactor) Measured() float64 {
	return f.measured
}

// EvaluateError implements nonlinear.Evaluator.
func (f *RangeFactor) EvaluateError(x []nonlinear.Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	keys := f.Keys()
	a, err := variable[spatialmath.Positioned](keys, x, 0)
	if err != nil {
		return nil, nil, err
	}
	b, err := variable[spatialmath.Positioned](keys, x, 1)
	if err != nil {
		return nil, nil, err
	}
	d := b.Position().Sub(a.Position())
	distance := d.Norm()
	residual := []float64{distance - f.measured}
	if !wantJacobians {
		return residual, nil, nil
	}

	// the direction is undefined at zero distance; the gradient is taken as zero there.
	var u []float64
	if distance > 0 {
		u = []float64{d.X / distance, d.Y / distance, d.Z / distance}
	} else {
		u = make([]float64, 3)
	}
	direction := mat.NewDense(1, 3, u)
	var ha, hb mat.Dense
	ha.Mul(direction, a.PositionJacobian())
	ha.Scale(-1, &ha)
	hb.Mul(direction, b.PositionJacobian())
	return residual, []*mat.Dense{&ha, &hb}, nil
}

// Equal compares keys, noise models and ranges.
func (f *RangeFactor) Equal(other nonlinear.Factor, tol float64) bool {
	o, ok := other.(*RangeFactor)
	return ok && f.NoiseModelFactor.Equal(o, tol) && math.Abs(f.measured-o.measured) <= tol
}

func (f *RangeFactor) String() string {
	return fmt.Sprintf("RangeFactor %s range=%g", f.NoiseModelFactor, f.measured)
}
