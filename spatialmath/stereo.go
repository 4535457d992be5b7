package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/utils"
)

// StereoPoint2 is a rectified stereo measurement: the column in the left and right images and the
// shared row.
type StereoPoint2 struct {
	UL, UR, V float64
}

// NewStereoPoint2 returns the measurement (uL, uR, v).
func NewStereoPoint2(uL, uR, v float64) StereoPoint2 {
	return StereoPoint2{UL: uL, UR: uR, V: v}
}

// Slice returns [uL uR v].
func (s StereoPoint2) Slice() []float64 {
	return []float64{s.UL, s.UR, s.V}
}

// Dim is 3.
func (s StereoPoint2) Dim() int {
	return 3
}

// Retract adds delta.
func (s StereoPoint2) Retract(delta []float64) nonlinear.Value {
	return NewStereoPoint2(s.UL+delta[0], s.UR+delta[1], s.V+delta[2])
}

// LocalCoordinates returns other − s.
func (s StereoPoint2) LocalCoordinates(other nonlinear.Value) ([]float64, error) {
	o, ok := other.(StereoPoint2)
	if !ok {
		return nil, utils.NewUnexpectedTypeError[StereoPoint2](other)
	}
	out := o.Slice()
	floats.Sub(out, s.Slice())
	return out, nil
}

// Equal compares coordinates within tol.
func (s StereoPoint2) Equal(other nonlinear.Value, tol float64) bool {
	o, ok := other.(StereoPoint2)
	return ok && floats.EqualApprox(s.Slice(), o.Slice(), tol)
}

func (s StereoPoint2) String() string {
	return fmt.Sprintf("StereoPoint2(uL: %g, uR: %g, v: %g)", s.UL, s.UR, s.V)
}

// StereoCamera is a rectified stereo rig: the left camera at pose and the right camera baseline
// along its +x axis, both with calibration k.
type StereoCamera struct {
	pose     Pose3
	k        Cal3S2
	baseline float64
}

// NewStereoCamera returns a stereo rig. The baseline must be positive.
func NewStereoCamera(pose Pose3, k Cal3S2, baseline float64) (StereoCamera, error) {
	if !(baseline > 0) || !utils.IsFinite(baseline) {
		return StereoCamera{}, errors.Errorf("stereo baseline must be positive, got %v", baseline)
	}
	if k.Fx == 0 || k.Fy == 0 {
		return StereoCamera{}, errors.Errorf("stereo calibration needs non-zero focal lengths, got %s", k)
	}
	return StereoCamera{pose: pose, k: k, baseline: baseline}, nil
}

// Pose returns the left camera pose.
func (sc StereoCamera) Pose() Pose3 {
	return sc.pose
}

// Calibration returns K.
func (sc StereoCamera) Calibration() Cal3S2 {
	return sc.k
}

// Baseline returns the distance between the cameras.
func (sc StereoCamera) Baseline() float64 {
	return sc.baseline
}

// Project returns the stereo image of point.
func (sc StereoCamera) Project(point Point3) (StereoPoint2, error) {
	s, _, _, err := sc.project(point, false)
	return s, err
}

// ProjectWithJacobians is Project with its 3×6 derivative with respect to the rig pose and its
// 3×3 derivative with respect to the point.
func (sc StereoCamera) ProjectWithJacobians(point Point3) (StereoPoint2, *mat.Dense, *mat.Dense, error) {
	return sc.project(point, true)
}

func (sc StereoCamera) project(point Point3, wantJacobians bool) (StereoPoint2, *mat.Dense, *mat.Dense, error) {
	q, hqPose, hqPoint := sc.pose.TransformToWithJacobians(point.Vector)
	left, hLeft, err := projectToIntrinsic(q)
	if err != nil {
		return StereoPoint2{}, nil, nil, err
	}
	right, hRight, err := projectToIntrinsic(q.Sub(r3.Vector{X: sc.baseline}))
	if err != nil {
		return StereoPoint2{}, nil, nil, err
	}
	uvLeft, _, kLeft := sc.k.UncalibrateWithJacobians(left)
	uvRight := sc.k.Uncalibrate(right)
	measured := NewStereoPoint2(uvLeft.X, uvRight.X, uvLeft.Y)
	if !wantJacobians {
		return measured, nil, nil, nil
	}

	dLeft := mul(kLeft, hLeft)
	dRight := mul(kLeft, hRight)
	hq := mat.NewDense(3, 3, nil)
	hq.SetRow(0, mat.Row(nil, 0, dLeft))
	hq.SetRow(1, mat.Row(nil, 0, dRight))
	hq.SetRow(2, mat.Row(nil, 1, dLeft))
	return measured, mul(hq, hqPose), mul(hq, hqPoint), nil
}

func (sc StereoCamera) String() string {
	return fmt.Sprintf("StereoCamera{%s, %s, baseline: %g}", sc.pose, sc.k, sc.baseline)
}
