package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/utils"
)

// Camera is a variable that projects world points to the image plane. Cameras look down
// their +z axis.
type Camera interface {
	Positioned
	// Pose is the camera to world transform.
	Pose() Pose3
	// Project returns the image of point, or a CheiralityError if it is not in front of the
	// camera.
	Project(point Point3) (Point2, error)
	// ProjectWithJacobians is Project with its 2×Dim derivative with respect to the camera and
	// its 2×3 derivative with respect to the point.
	ProjectWithJacobians(point Point3) (Point2, *mat.Dense, *mat.Dense, error)
}

// projectToIntrinsic divides through by depth, with the 2×3 derivative of that division.
func projectToIntrinsic(q r3.Vector) (Point2, *mat.Dense, error) {
	if q.Z <= 0 {
		return Point2{}, nil, NewCheiralityError(q.Z)
	}
	d := 1 / q.Z
	u, v := q.X*d, q.Y*d
	h := mat.NewDense(2, 3, []float64{
		d, 0, -u * d,
		0, d, -v * d,
	})
	return NewPoint2(u, v), h, nil
}

// calibratedProjection projects point through pose with unit calibration.
func calibratedProjection(pose Pose3, point Point3) (Point2, *mat.Dense, *mat.Dense, error) {
	q, hqPose, hqPoint := pose.TransformToWithJacobians(point.Vector)
	uv, hProject, err := projectToIntrinsic(q)
	if err != nil {
		return Point2{}, nil, nil, err
	}
	return uv, mul(hProject, hqPose), mul(hProject, hqPoint), nil
}

// CalibratedCamera is a camera with unit calibration. Its tangent space is that of its pose.
type CalibratedCamera struct {
	pose Pose3
}

// NewCalibratedCamera returns a camera at pose.
func NewCalibratedCamera(pose Pose3) CalibratedCamera {
	return CalibratedCamera{pose: pose}
}

// Pose returns the camera pose.
func (c CalibratedCamera) Pose() Pose3 {
	return c.pose
}

// Project returns the intrinsic coordinates of point.
func (c CalibratedCamera) Project(point Point3) (Point2, error) {
	uv, _, err := projectToIntrinsic(c.pose.TransformTo(point.Vector))
	return uv, err
}

// ProjectWithJacobians implements Camera.
func (c CalibratedCamera) ProjectWithJacobians(point Point3) (Point2, *mat.Dense, *mat.Dense, error) {
	return calibratedProjection(c.pose, point)
}

// Dim is 6.
func (c CalibratedCamera) Dim() int {
	return 6
}

// Retract retracts the pose.
func (c CalibratedCamera) Retract(delta []float64) nonlinear.Value {
	return CalibratedCamera{pose: c.pose.retract(delta)}
}

// LocalCoordinates returns the local coordinates of the poses.
func (c CalibratedCamera) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(CalibratedCamera)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[CalibratedCamera](other)
	}
	return c.pose.localCoordinates(o.pose), nil
}

// Equal compares poses within tol.
func (c CalibratedCamera) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(CalibratedCamera)
	return ok && c.pose.equal(o.pose, tol)
}

// Position is the camera center.
func (c CalibratedCamera) Position() r3.Vector {
	return c.pose.t
}

// PositionJacobian is that of the pose.
func (c CalibratedCamera) PositionJacobian() *mat.Dense {
	return c.pose.PositionJacobian()
}

func (c CalibratedCamera) String() string {
	return fmt.Sprintf("CalibratedCamera{%s}", c.pose)
}

// PinholeCamera is a camera whose calibration is estimated along with its pose. Its tangent
// space is [pose calibration], 11 dimensional.
type PinholeCamera struct {
	pose Pose3
	k    Cal3S2
}

// NewPinholeCamera returns a camera at pose with calibration k.
func NewPinholeCamera(pose Pose3, k Cal3S2) PinholeCamera {
	return PinholeCamera{pose: pose, k: k}
}

// NewDefaultPinholeCamera returns a camera at pose with DefaultCal3S2.
func NewDefaultPinholeCamera(pose Pose3) PinholeCamera {
	return NewPinholeCamera(pose, DefaultCal3S2)
}

// Pose returns the camera pose.
func (c PinholeCamera) Pose() Pose3 {
	return c.pose
}

// Calibration returns K.
func (c PinholeCamera) Calibration() Cal3S2 {
	return c.k
}

// Project returns the pixel coordinates of point.
func (c PinholeCamera) Project(point Point3) (Point2, error) {
	uv, _, err := projectToIntrinsic(c.pose.TransformTo(point.Vector))
	if err != nil {
		return Point2{}, err
	}
	return c.k.Uncalibrate(uv), nil
}

// ProjectWithJacobians implements Camera.
func (c PinholeCamera) ProjectWithJacobians(point Point3) (Point2, *mat.Dense, *mat.Dense, error) {
	uv, hPose, hPoint, err := calibratedProjection(c.pose, point)
	if err != nil {
		return Point2{}, nil, nil, err
	}
	pixel, hCal, hIntrinsic := c.k.UncalibrateWithJacobians(uv)
	return pixel, hstack(mul(hIntrinsic, hPose), hCal), mul(hIntrinsic, hPoint), nil
}

// Dim is 11.
func (c PinholeCamera) Dim() int {
	return 11
}

// Retract retracts the pose by delta[:6] and the calibration by delta[6:].
func (c PinholeCamera) Retract(delta []float64) nonlinear.Value {
	return PinholeCamera{pose: c.pose.retract(delta[:6]), k: c.k.retract(delta[6:11])}
}

// LocalCoordinates stacks the pose and calibration local coordinates.
func (c PinholeCamera) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(PinholeCamera)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[PinholeCamera](other)
	}
	return append(c.pose.localCoordinates(o.pose), c.k.localCoordinates(o.k)...), nil
}

// Equal compares poses and calibrations within tol.
func (c PinholeCamera) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(PinholeCamera)
	return ok && c.pose.equal(o.pose, tol) && c.k.Equal(o.k, tol)
}

// Position is the camera center.
func (c PinholeCamera) Position() r3.Vector {
	return c.pose.t
}

// PositionJacobian is that of the pose, with zero columns for the calibration.
func (c PinholeCamera) PositionJacobian() *mat.Dense {
	return hstack(c.pose.PositionJacobian(), mat.NewDense(3, 5, nil))
}

func (c PinholeCamera) String() string {
	return fmt.Sprintf("PinholeCamera{%s, %s}", c.pose, c.k)
}
