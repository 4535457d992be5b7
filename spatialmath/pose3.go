package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/utils"
)

// Pose3 is a rigid transform taking body coordinates to world coordinates. The zero value is
// the identity. The tangent space is [ω v] with ω a body-frame rotation vector and v a
// body-frame translation: P.Retract([ω v]) = (R·Exp(ω), t + R·v).
type Pose3 struct {
	rot Rot3
	t   r3.Vector
}

// NewPose3 returns the pose with rotation rot and translation t.
func NewPose3(rot Rot3, t r3.Vector) Pose3 {
	return Pose3{rot: rot, t: t}
}

// Rotation returns R.
func (p Pose3) Rotation() Rot3 {
	return p.rot
}

// Translation returns t.
func (p Pose3) Translation() r3.Vector {
	return p.t
}

// Compose returns p·other.
func (p Pose3) Compose(other Pose3) Pose3 {
	return Pose3{rot: p.rot.Compose(other.rot), t: p.TransformFrom(other.t)}
}

// Inverse returns p⁻¹.
func (p Pose3) Inverse() Pose3 {
	inv := p.rot.Inverse()
	return Pose3{rot: inv, t: inv.Rotate(p.t.Mul(-1))}
}

// Between returns p⁻¹·other.
func (p Pose3) Between(other Pose3) Pose3 {
	return p.Inverse().Compose(other)
}

// TransformFrom maps a body-frame point to the world frame.
func (p Pose3) TransformFrom(point r3.Vector) r3.Vector {
	return p.rot.Rotate(point).Add(p.t)
}

// TransformTo maps a world-frame point to the body frame.
func (p Pose3) TransformTo(point r3.Vector) r3.Vector {
	return p.rot.Unrotate(point.Sub(p.t))
}

// TransformToWithJacobians is TransformTo with its 3×6 derivative with respect to the pose
// and its 3×3 derivative with respect to the point.
func (p Pose3) TransformToWithJacobians(point r3.Vector) (r3.Vector, *mat.Dense, *mat.Dense) {
	q := p.TransformTo(point)
	minusI := eye(3)
	minusI.Scale(-1, minusI)
	hPose := hstack(skew(q), minusI)
	hPoint := mat.DenseCopyOf(p.rot.Matrix().T())
	return q, hPose, hPoint
}

// Dim is 6.
func (p Pose3) Dim() int {
	return 6
}

// Retract applies [ω v] in the body frame.
func (p Pose3) Retract(delta []float64) nonlinear.Value {
	return p.retract(delta)
}

func (p Pose3) retract(delta []float64) Pose3 {
	return Pose3{
		rot: p.rot.Compose(Rot3Exp(vec3(delta[:3]))),
		t:   p.t.Add(p.rot.Rotate(vec3(delta[3:6]))),
	}
}

// LocalCoordinates inverts Retract exactly.
func (p Pose3) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(Pose3)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[Pose3](other)
	}
	return p.localCoordinates(o), nil
}

func (p Pose3) localCoordinates(o Pose3) []float64 {
	w := p.rot.Between(o.rot).Log()
	v := p.rot.Unrotate(o.t.Sub(p.t))
	return []float64{w.X, w.Y, w.Z, v.X, v.Y, v.Z}
}

// Equal compares rotations and translations within tol.
func (p Pose3) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(Pose3)
	return ok && p.equal(o, tol)
}

func (p Pose3) equal(o Pose3, tol float64) bool {
	return p.rot.Equal(o.rot, tol) && vectorAlmostEqual(p.t, o.t, tol)
}

// Position is the translation.
func (p Pose3) Position() r3.Vector {
	return p.t
}

// PositionJacobian is [0 R].
func (p Pose3) PositionJacobian() *mat.Dense {
	return hstack(mat.NewDense(3, 3, nil), p.rot.Matrix())
}

func (p Pose3) String() string {
	return fmt.Sprintf("Pose3{%s, t: (%g, %g, %g)}", p.rot, p.t.X, p.t.Y, p.t.Z)
}
