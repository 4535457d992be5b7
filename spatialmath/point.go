package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/utils"
)

// Positioned is a variable with a location in space, such as a point, a pose or a camera.
type Positioned interface {
	nonlinear.Value
	// Position is the location in the world frame.
	Position() r3.Vector
	// PositionJacobian is the 3×Dim derivative of Position with respect to the tangent space.
	PositionJacobian() *mat.Dense
}

// Point2 is a point in the image plane.
type Point2 struct {
	r2.Point
}

// NewPoint2 returns the point (x, y).
func NewPoint2(x, y float64) Point2 {
	return Point2{r2.Point{X: x, Y: y}}
}

// Slice returns [x y].
func (p Point2) Slice() []float64 {
	return []float64{p.X, p.Y}
}

// Dim is 2.
func (p Point2) Dim() int {
	return 2
}

// Retract adds delta.
func (p Point2) Retract(delta []float64) nonlinear.Value {
	return NewPoint2(p.X+delta[0], p.Y+delta[1])
}

// LocalCoordinates returns other − p.
func (p Point2) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(Point2)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[Point2](other)
	}
	return []float64{o.X - p.X, o.Y - p.Y}, nil
}

// Equal compares coordinates within tol.
func (p Point2) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(Point2)
	return ok && utils.Float64AlmostEqual(p.X, o.X, tol) && utils.Float64AlmostEqual(p.Y, o.Y, tol)
}

func (p Point2) String() string {
	return fmt.Sprintf("Point2(%g, %g)", p.X, p.Y)
}

// Point3 is a point in space.
type Point3 struct {
	r3.Vector
}

// NewPoint3 returns the point (x, y, z).
func NewPoint3(x, y, z float64) Point3 {
	return Point3{r3.Vector{X: x, Y: y, Z: z}}
}

// Slice returns [x y z].
func (p Point3) Slice() []float64 {
	return []float64{p.X, p.Y, p.Z}
}

// Dim is 3.
func (p Point3) Dim() int {
	return 3
}

// Retract adds delta.
func (p Point3) Retract(delta []float64) nonlinear.Value {
	return Point3{p.Add(vec3(delta))}
}

// LocalCoordinates returns other − p.
func (p Point3) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(Point3)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[Point3](other)
	}
	return Point3{o.Sub(p.Vector)}.Slice(), nil
}

// Equal compares coordinates within tol.
func (p Point3) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(Point3)
	return ok && vectorAlmostEqual(p.Vector, o.Vector, tol)
}

// Position is the point itself.
func (p Point3) Position() r3.Vector {
	return p.Vector
}

// PositionJacobian is the identity.
func (p Point3) PositionJacobian() *mat.Dense {
	return eye(3)
}

func (p Point3) String() string {
	return fmt.Sprintf("Point3(%g, %g, %g)", p.X, p.Y, p.Z)
}

func vectorAlmostEqual(a, b r3.Vector, tol float64) bool {
	return utils.Float64AlmostEqual(a.X, b.X, tol) &&
		utils.Float64AlmostEqual(a.Y, b.Y, tol) &&
		utils.Float64AlmostEqual(a.Z, b.Z, tol)
}
