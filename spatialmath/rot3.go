package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/utils"
)

// Rot3 is a 3-D rotation stored as a unit quaternion with a non-negative real part. The zero
// value is the identity. The tangent space is the body-frame rotation vector, so
// R.Retract(ω) = R·Exp(ω).
type Rot3 struct {
	q quat.Number
}

// NewRot3 returns the rotation of q, which is normalized.
func NewRot3(q quat.Number) (Rot3, error) {
	n := quat.Abs(q)
	if n == 0 || !utils.IsFinite(n) {
		return Rot3{}, errors.Errorf("cannot build a rotation from quaternion %v", q)
	}
	return Rot3{q: canonical(quat.Scale(1/n, q))}, nil
}

// Rot3Exp returns the rotation by |w| radians about w.
func Rot3Exp(w r3.Vector) Rot3 {
	half := quat.Number{Imag: w.X / 2, Jmag: w.Y / 2, Kmag: w.Z / 2}
	return Rot3{q: canonical(quat.Exp(half))}
}

// Rot3FromAxisAngle returns the rotation by theta radians about axis.
func Rot3FromAxisAngle(axis r3.Vector, theta float64) Rot3 {
	return Rot3Exp(axis.Normalize().Mul(theta))
}

// canonical renormalizes q and flips it into the half space with a non-negative real part.
func canonical(q quat.Number) quat.Number {
	if n := quat.Abs(q); n != 1 && n != 0 {
		q = quat.Scale(1/n, q)
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// Quaternion returns the unit quaternion.
func (r Rot3) Quaternion() quat.Number {
	if r.q == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return r.q
}

// Log returns the rotation vector; its norm is the angle, in [0, π].
func (r Rot3) Log() r3.Vector {
	l := quat.Log(r.Quaternion())
	return r3.Vector{X: 2 * l.Imag, Y: 2 * l.Jmag, Z: 2 * l.Kmag}
}

// Compose returns r·other.
func (r Rot3) Compose(other Rot3) Rot3 {
	return Rot3{q: canonical(quat.Mul(r.Quaternion(), other.Quaternion()))}
}

// Inverse returns r⁻¹.
func (r Rot3) Inverse() Rot3 {
	return Rot3{q: canonical(quat.Conj(r.Quaternion()))}
}

// Between returns r⁻¹·other.
func (r Rot3) Between(other Rot3) Rot3 {
	return r.Inverse().Compose(other)
}

// Rotate returns R·p.
func (r Rot3) Rotate(p r3.Vector) r3.Vector {
	q := r.Quaternion()
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// Unrotate returns Rᵀ·p.
func (r Rot3) Unrotate(p r3.Vector) r3.Vector {
	return r.Inverse().Rotate(p)
}

// Matrix returns the 3×3 rotation matrix.
func (r Rot3) Matrix() *mat.Dense {
	q := r.Quaternion()
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// Dim is 3.
func (r Rot3) Dim() int {
	return 3
}

// Retract returns R·Exp(delta).
func (r Rot3) Retract(delta []float64) nonlinear.Value {
	return r.Compose(Rot3Exp(vec3(delta)))
}

// LocalCoordinates returns Log(R⁻¹·other).
func (r Rot3) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(Rot3)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[Rot3](other)
	}
	w := r.Between(o).Log()
	return []float64{w.X, w.Y, w.Z}, nil
}

// Equal reports whether the quaternions agree within tol, up to sign, or the angle between
// the rotations is at most tol.
func (r Rot3) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(Rot3)
	if !ok {
		return false
	}
	if quatAlmostEqual(r.q, o.q, tol) || quatAlmostEqual(r.q, quat.Scale(-1, o.q), tol) {
		return true
	}
	return r.Between(o).Log().Norm() <= tol
}

func quatAlmostEqual(a, b quat.Number, tol float64) bool {
	return utils.Float64AlmostEqual(a.Real, b.Real, tol) &&
		utils.Float64AlmostEqual(a.Imag, b.Imag, tol) &&
		utils.Float64AlmostEqual(a.Jmag, b.Jmag, tol) &&
		utils.Float64AlmostEqual(a.Kmag, b.Kmag, tol)
}

func (r Rot3) String() string {
	w := r.Log()
	angle := w.Norm()
	if angle == 0 {
		return "Rot3(identity)"
	}
	axis := w.Mul(1 / angle)
	return fmt.Sprintf("Rot3(%.6g° about (%.4g, %.4g, %.4g))", angle*180/math.Pi, axis.X, axis.Y, axis.Z)
}
