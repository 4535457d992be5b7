package slam

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/noise"
	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/spatialmath"
)

// StereoFactor measures a landmark with a rectified stereo rig whose left camera is at the pose
// variable.
type StereoFactor struct {
	*nonlinear.NoiseModelFactor
	measured spatialmath.StereoPoint2
	k        spatialmath.Cal3S2
	baseline float64
}

// NewStereoFactor returns a factor measuring landmark from the rig at pose. The calibration
// must have non-zero focal lengths and the baseline must be positive.
func NewStereoFactor(
	measured spatialmath.StereoPoint2,
	model noise.Model,
	pose, landmark inference.Key,
	k spatialmath.Cal3S2,
	baseline float64,
) (*StereoFactor, error) {
	if err := checkModelDim(model, 3); err != nil {
		return nil, err
	}
	if _, err := spatialmath.NewStereoCamera(spatialmath.Pose3{}, k, baseline); err != nil {
		return nil, errors.Wrap(err, "invalid stereo factor")
	}
	f := &StereoFactor{measured: measured, k: k, baseline: baseline}
	base, err := nonlinear.NewNoiseModelFactor(model, f, pose, landmark)
	if err != nil {
		return nil, err
	}
	f.NoiseModelFactor = base
	return f, nil
}

// Measured returns the measured stereo point.
func (f *StereoFactor) Measured() spatialmath.StereoPoint2 {
	return f.measured
}

// EvaluateError implements nonlinear.Evaluator.
func (f *StereoFactor) EvaluateError(x []nonlinear.Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	keys := f.Keys()
	pose, err := variable[spatialmath.Pose3](keys, x, 0)
	if err != nil {
		return nil, nil, err
	}
	landmark, err := variable[spatialmath.Point3](keys, x, 1)
	if err != nil {
		return nil, nil, err
	}
	rig, err := spatialmath.NewStereoCamera(pose, f.k, f.baseline)
	if err != nil {
		return nil, nil, err
	}
	var predicted spatialmath.StereoPoint2
	var jacobians []*mat.Dense
	if wantJacobians {
		var hPose, hLandmark *mat.Dense
		predicted, hPose, hLandmark, err = rig.ProjectWithJacobians(landmark)
		jacobians = []*mat.Dense{hPose, hLandmark}
	} else {
		predicted, err = rig.Project(landmark)
	}
	if err != nil {
		return nil, nil, err
	}
	residual := predicted.Slice()
	floats.Sub(residual, f.measured.Slice())
	return residual, jacobians, nil
}

// Equal compares keys, noise models, measurements and the rig.
func (f *StereoFactor) Equal(other nonlinear.Factor, tol float64) bool {
	o, ok := other.(*StereoFactor)
	return ok && f.NoiseModelFactor.Equal(o, tol) && f.measured.Equal(o.measured, tol) &&
		f.k.Equal(o.k, tol) && math.Abs(f.baseline-o.baseline) <= tol
}

func (f *StereoFactor) String() string {
	return fmt.Sprintf("StereoFactor %s z=%s K=%s baseline=%g", f.NoiseModelFactor, f.measured, f.k, f.baseline)
}
