package spatialmath

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/utils"
)

// Cal3S2 is a five parameter pinhole calibration: focal lengths, skew and principal point.
// Its tangent space is [fx fy s u0 v0] with vector addition.
type Cal3S2 struct {
	Fx, Fy, S, U0, V0 float64
}

// DefaultCal3S2 is the unit calibration, which leaves intrinsic coordinates unchanged.
var DefaultCal3S2 = Cal3S2{Fx: 1, Fy: 1}

// NewCal3S2 returns the calibration with the given parameters.
func NewCal3S2(fx, fy, s, u0, v0 float64) Cal3S2 {
	return Cal3S2{Fx: fx, Fy: fy, S: s, U0: u0, V0: v0}
}

// Slice returns [fx fy s u0 v0].
func (k Cal3S2) Slice() []float64 {
	return []float64{k.Fx, k.Fy, k.S, k.U0, k.V0}
}

// Matrix returns K.
func (k Cal3S2) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		k.Fx, k.S, k.U0,
		0, k.Fy, k.V0,
		0, 0, 1,
	})
}

// Uncalibrate maps intrinsic coordinates to pixels.
func (k Cal3S2) Uncalibrate(p Point2) Point2 {
	return NewPoint2(k.Fx*p.X+k.S*p.Y+k.U0, k.Fy*p.Y+k.V0)
}

// UncalibrateWithJacobians is Uncalibrate with its 2×5 derivative with respect to the
// calibration and its 2×2 derivative with respect to p.
func (k Cal3S2) UncalibrateWithJacobians(p Point2) (Point2, *mat.Dense, *mat.Dense) {
	hCal := mat.NewDense(2, 5, []float64{
		p.X, 0, p.Y, 1, 0,
		0, p.Y, 0, 0, 1,
	})
	hPoint := mat.NewDense(2, 2, []float64{
		k.Fx, k.S,
		0, k.Fy,
	})
	return k.Uncalibrate(p), hCal, hPoint
}

// Calibrate maps pixels to intrinsic coordinates.
func (k Cal3S2) Calibrate(uv Point2) Point2 {
	y := (uv.Y - k.V0) / k.Fy
	return NewPoint2((uv.X-k.U0-k.S*y)/k.Fx, y)
}

// Dim is 5.
func (k Cal3S2) Dim() int {
	return 5
}

// Retract adds delta to the parameters.
func (k Cal3S2) Retract(delta []float64) nonlinear.Value {
	return k.retract(delta)
}

func (k Cal3S2) retract(delta []float64) Cal3S2 {
	return NewCal3S2(k.Fx+delta[0], k.Fy+delta[1], k.S+delta[2], k.U0+delta[3], k.V0+delta[4])
}

// LocalCoordinates returns the parameter difference.
func (k Cal3S2) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(Cal3S2)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[Cal3S2](other)
	}
	return k.localCoordinates(o), nil
}

func (k Cal3S2) localCoordinates(o Cal3S2) []float64 {
	out := o.Slice()
	floats.Sub(out, k.Slice())
	return out
}

// Equal compares parameters within tol.
func (k Cal3S2) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(Cal3S2)
	return ok && floats.EqualApprox(k.Slice(), o.Slice(), tol)
}

func (k Cal3S2) String() string {
	return fmt.Sprintf("Cal3S2{fx: %g, fy: %g, s: %g, u0: %g, v0: %g}", k.Fx, k.Fy, k.S, k.U0, k.V0)
}
