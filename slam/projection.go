package slam

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/noise"
	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/spatialmath"
)

// GeneralSFMFactor measures the image of a landmark in a camera whose parameters, calibration
// included when C is a PinholeCamera, are all estimated.
type GeneralSFMFactor[C spatialmath.Camera] struct {
	*nonlinear.NoiseModelFactor
	measured spatialmath.Point2
}

// NewGeneralSFMFactor returns a factor measuring landmark in camera at measured.
func NewGeneralSFMFactor[C spatialmath.Camera](
	measured spatialmath.Point2,
	model noise.Model,
	camera, landmark inference.Key,
) (*GeneralSFMFactor[C], error) {
	if err := checkModelDim(model, 2); err != nil {
		return nil, err
	}
	f := &GeneralSFMFactor[C]{measured: measured}
	base, err := nonlinear.NewNoiseModelFactor(model, f, camera, landmark)
	if err != nil {
		return nil, err
	}
	f.NoiseModelFactor = base
	return f, nil
}

// Measured returns the measured image point.
func (f *GeneralSFMFactor[C]) Measured() spatialmath.Point2 {
	return f.measured
}

// EvaluateError implements nonlinear.Evaluator. A landmark behind the camera yields a
// spatialmath.CheiralityError.
func (f *GeneralSFMFactor[C]) EvaluateError(x []nonlinear.Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	keys := f.Keys()
	camera, err := variable[C](keys, x, 0)
	if err != nil {
		return nil, nil, err
	}
	landmark, err := variable[spatialmath.Point3](keys, x, 1)
	if err != nil {
		return nil, nil, err
	}
	if !wantJacobians {
		uv, err := camera.Project(landmark)
		if err != nil {
			return nil, nil, err
		}
		return imageResidual(uv, f.measured), nil, nil
	}
	uv, hCamera, hLandmark, err := camera.ProjectWithJacobians(landmark)
	if err != nil {
		return nil, nil, err
	}
	return imageResidual(uv, f.measured), []*mat.Dense{hCamera, hLandmark}, nil
}

// Equal compares keys, noise models and measurements.
func (f *GeneralSFMFactor[C]) Equal(other nonlinear.Factor, tol float64) bool {
	o, ok := other.(*GeneralSFMFactor[C])
	return ok && f.NoiseModelFactor.Equal(o, tol) && f.measured.Equal(o.measured, tol)
}

func (f *GeneralSFMFactor[C]) String() string {
	return fmt.Sprintf("GeneralSFMFactor %s z=%s", f.NoiseModelFactor, f.measured)
}

// ProjectionFactor measures the image of a landmark in a camera of known calibration; only the
// camera pose is estimated.
type ProjectionFactor struct {
	*nonlinear.NoiseModelFactor
	measured spatialmath.Point2
	k        spatialmath.Cal3S2
}

// NewProjectionFactor returns a factor measuring landmark from the camera at pose with
// calibration k.
func NewProjectionFactor(
	measured spatialmath.Point2,
	model noise.Model,
	pose, landmark inference.Key,
	k spatialmath.Cal3S2,
) (*ProjectionFactor, error) {
	if err := checkModelDim(model, 2); err != nil {
		return nil, err
	}
	f := &ProjectionFactor{measured: measured, k: k}
	base, err := nonlinear.NewNoiseModelFactor(model, f, pose, landmark)
	if err != nil {
		return nil, err
	}
	f.NoiseModelFactor = base
	return f, nil
}

// Measured returns the measured image point.
func (f *ProjectionFactor) Measured() spatialmath.Point2 {
	return f.measured
}

// Calibration returns the fixed calibration.
func (f *ProjectionFactor) Calibration() spatialmath.Cal3S2 {
	return f.k
}

// EvaluateError implements nonlinear.Evaluator.
func (f *ProjectionFactor) EvaluateError(x []nonlinear.Value, wantJacobians bool) ([]float64, []*mat.Dense, error) {
	keys := f.Keys()
	pose, err := variable[spatialmath.Pose3](keys, x, 0)
	if err != nil {
		return nil, nil, err
	}
	landmark, err := variable[spatialmath.Point3](keys, x, 1)
	if err != nil {
		return nil, nil, err
	}
	camera := spatialmath.NewPinholeCamera(pose, f.k)
	if !wantJacobians {
		uv, err := camera.Project(landmark)
		if err != nil {
			return nil, nil, err
		}
		return imageResidual(uv, f.measured), nil, nil
	}
	uv, hCamera, hLandmark, err := camera.ProjectWithJacobians(landmark)
	if err != nil {
		return nil, nil, err
	}
	// the pose block of the camera Jacobian; the calibration columns are dropped.
	hPose := mat.DenseCopyOf(hCamera.Slice(0, 2, 0, 6))
	return imageResidual(uv, f.measured), []*mat.Dense{hPose, hLandmark}, nil
}

// Equal compares keys, noise models, measurements and calibrations.
func (f *ProjectionFactor) Equal(other nonlinear.Factor, tol float64) bool {
	o, ok := other.(*ProjectionFactor)
	return ok && f.NoiseModelFactor.Equal(o, tol) && f.measured.Equal(o.measured, tol) && f.k.Equal(o.k, tol)
}

func (f *ProjectionFactor) String() string {
	return fmt.Sprintf("ProjectionFactor %s z=%s K=%s", f.NoiseModelFactor, f.measured, f.k)
}

func imageResidual(predicted, measured spatialmath.Point2) []float64 {
	return []float64{predicted.X - measured.X, predicted.Y - measured.Y}
}
