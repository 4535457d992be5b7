// Package scenarios builds synthetic structure from motion and range problems with known
// ground truth.
package scenarios

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/logging"
	"go.viam.com/factorgraph/noise"
	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/slam"
	"go.viam.com/factorgraph/spatialmath"
)

// Baseline is the distance between the two cameras of the synthetic scenes.
const Baseline = 5.0

// StereoBaseline is the distance between the cameras of one synthetic stereo rig.
const StereoBaseline = 0.5

// VariableCalibration is the calibration of the synthetic cameras with non-unit intrinsics.
var VariableCalibration = spatialmath.NewCal3S2(640, 480, 0.01, 320, 240)

// CameraModel selects the variables and factors of a synthetic scene.
type CameraModel string

const (
	// GeneralCamera estimates PinholeCamera variables, calibration included.
	GeneralCamera CameraModel = "general"
	// CalibratedCamera estimates CalibratedCamera variables observing intrinsic coordinates.
	CalibratedCamera CameraModel = "calibrated"
	// ProjectionCamera estimates Pose3 variables of cameras with a known calibration.
	ProjectionCamera CameraModel = "projection"
	// StereoRig estimates Pose3 variables of stereo rigs with a known calibration.
	StereoRig CameraModel = "stereo"
)

// CameraModels lists every CameraModel.
var CameraModels = []CameraModel{GeneralCamera, CalibratedCamera, ProjectionCamera, StereoRig}

// ParseCameraModel returns the CameraModel named s.
func ParseCameraModel(s string) (CameraModel, error) {
	for _, m := range CameraModels {
		if string(m) == s {
			return m, nil
		}
	}
	return "", errors.Errorf("unknown camera model %q", s)
}

// CameraKey is the key of camera i.
func CameraKey(i int) inference.Key {
	return inference.Symbol('x', uint64(i))
}

// LandmarkKey is the key of landmark j.
func LandmarkKey(j int) inference.Key {
	return inference.Symbol('l', uint64(j))
}

// GenPoint3s returns twelve landmarks on three squares at depths 5, 7.5 and 10.
func GenPoint3s() []spatialmath.Point3 {
	const z = 5.0
	var points []spatialmath.Point3
	for _, level := range []struct{ half, depth float64 }{{1, z}, {1.5, 1.5 * z}, {2, 2 * z}} {
		h := level.half
		points = append(points,
			spatialmath.NewPoint3(-h, -h, level.depth),
			spatialmath.NewPoint3(-h, h, level.depth),
			spatialmath.NewPoint3(h, h, level.depth),
			spatialmath.NewPoint3(h, -h, level.depth),
		)
	}
	return points
}

// GenPoses returns the poses of two cameras looking down +z, Baseline apart on the x axis.
func GenPoses() []spatialmath.Pose3 {
	return []spatialmath.Pose3{
		spatialmath.NewPose3(spatialmath.Rot3{}, r3.Vector{X: -Baseline / 2}),
		spatialmath.NewPose3(spatialmath.Rot3{}, r3.Vector{X: Baseline / 2}),
	}
}

// Ordering eliminates the landmarks first and then the cameras.
func Ordering(numCameras, numLandmarks int) inference.Ordering {
	ordering := make(inference.Ordering, 0, numCameras+numLandmarks)
	for j := 0; j < numLandmarks; j++ {
		ordering = append(ordering, LandmarkKey(j))
	}
	for i := 0; i < numCameras; i++ {
		ordering = append(ordering, CameraKey(i))
	}
	return ordering
}

// Problem is a graph with its initial estimate, elimination ordering and ground truth.
type Problem struct {
	Graph    *nonlinear.FactorGraph
	Initial  *nonlinear.Values
	Ordering inference.Ordering
	Truth    *nonlinear.Values
}

// Optimize runs Levenberg-Marquardt on the problem.
func (p *Problem) Optimize(params *nonlinear.LevenbergMarquardtParams, logger logging.Logger) (*nonlinear.Result, error) {
	return nonlinear.Optimize(p.Graph, p.Initial, p.Ordering, params, logger)
}

// SFMScenario describes a synthetic structure from motion problem in which every camera
// observes every landmark without measurement noise; only the initial estimate is perturbed.
type SFMScenario struct {
	Model CameraModel
	// Calibration of the cameras. It is ignored by CalibratedCamera.
	Calibration spatialmath.Cal3S2
	Poses       []spatialmath.Pose3
	Landmarks   []spatialmath.Point3

	// LandmarkNoise is the standard deviation of the perturbation of the initial landmarks.
	LandmarkNoise float64
	// PerturbFirstOnly perturbs only the first landmark.
	PerturbFirstOnly bool
	Seed             uint64
	// CameraDelta, if set, retracts the initial estimate of every camera but the first.
	CameraDelta []float64

	// The first camera is always held by a hard constraint.
	FixCameras   bool
	FixLandmarks bool
	// Range, if positive, adds a soft range of sigma RangeSigma between the first two cameras.
	Range      float64
	RangeSigma float64
}

// NewSFMScenario returns the two camera scene with initial landmarks perturbed by a tenth of
// the baseline.
func NewSFMScenario(model CameraModel, k spatialmath.Cal3S2) *SFMScenario {
	return &SFMScenario{
		Model:         model,
		Calibration:   k,
		Poses:         GenPoses(),
		Landmarks:     GenPoint3s(),
		LandmarkNoise: 0.1 * Baseline,
		Seed:          1,
	}
}

// NumMeasurements is the number of image measurements of the scene.
func (s *SFMScenario) NumMeasurements() int {
	return len(s.Poses) * len(s.Landmarks)
}

// Build returns the problem described by the scenario.
func (s *SFMScenario) Build() (*Problem, error) {
	if len(s.Poses) == 0 {
		return nil, errors.New("scenario needs at least one camera")
	}
	if s.Range > 0 && len(s.Poses) < 2 {
		return nil, errors.New("a range needs two cameras")
	}
	switch s.Model {
	case GeneralCamera:
		cameras := make([]spatialmath.PinholeCamera, 0, len(s.Poses))
		for _, pose := range s.Poses {
			cameras = append(cameras, spatialmath.NewPinholeCamera(pose, s.Calibration))
		}
		return buildSFM(s, cameras, cameraMeasurements[spatialmath.PinholeCamera])
	case CalibratedCamera:
		cameras := make([]spatialmath.CalibratedCamera, 0, len(s.Poses))
		for _, pose := range s.Poses {
			cameras = append(cameras, spatialmath.NewCalibratedCamera(pose))
		}
		return buildSFM(s, cameras, cameraMeasurements[spatialmath.CalibratedCamera])
	case ProjectionCamera:
		return buildSFM(s, s.Poses, s.projectionMeasurements)
	case StereoRig:
		return buildSFM(s, s.Poses, s.stereoMeasurements)
	default:
		return nil, errors.Errorf("unknown camera model %q", s.Model)
	}
}

// measureFunc returns the factors observing every landmark from camera i with the ground truth
// camera.
type measureFunc[C nonlinear.Value] func(i int, camera C, landmarks []spatialmath.Point3) ([]nonlinear.Factor, error)

func cameraMeasurements[C spatialmath.Camera](i int, camera C, landmarks []spatialmath.Point3) ([]nonlinear.Factor, error) {
	model, err := noise.NewUnit(2)
	if err != nil {
		return nil, err
	}
	factors := make([]nonlinear.Factor, 0, len(landmarks))
	for j, landmark := range landmarks {
		uv, err := camera.Project(landmark)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d cannot see landmark %d", i, j)
		}
		f, err := slam.NewGeneralSFMFactor[C](uv, model, CameraKey(i), LandmarkKey(j))
		if err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}
	return factors, nil
}

func (s *SFMScenario) projectionMeasurements(i int, pose spatialmath.Pose3, landmarks []spatialmath.Point3) ([]nonlinear.Factor, error) {
	model, err := noise.NewUnit(2)
	if err != nil {
		return nil, err
	}
	camera := spatialmath.NewPinholeCamera(pose, s.Calibration)
	factors := make([]nonlinear.Factor, 0, len(landmarks))
	for j, landmark := range landmarks {
		uv, err := camera.Project(landmark)
		if err != nil {
			return nil, errors.Wrapf(err, "camera %d cannot see landmark %d", i, j)
		}
		f, err := slam.NewProjectionFactor(uv, model, CameraKey(i), LandmarkKey(j), s.Calibration)
		if err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}
	return factors, nil
}

func (s *SFMScenario) stereoMeasurements(i int, pose spatialmath.Pose3, landmarks []spatialmath.Point3) ([]nonlinear.Factor, error) {
	model, err := noise.NewUnit(3)
	if err != nil {
		return nil, err
	}
	rig, err := spatialmath.NewStereoCamera(pose, s.Calibration, StereoBaseline)
	if err != nil {
		return nil, err
	}
	factors := make([]nonlinear.Factor, 0, len(landmarks))
	for j, landmark := range landmarks {
		z, err := rig.Project(landmark)
		if err != nil {
			return nil, errors.Wrapf(err, "rig %d cannot see landmark %d", i, j)
		}
		f, err := slam.NewStereoFactor(z, model, CameraKey(i), LandmarkKey(j), s.Calibration, StereoBaseline)
		if err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}
	return factors, nil
}

func buildSFM[C spatialmath.Positioned](s *SFMScenario, cameras []C, measure measureFunc[C]) (*Problem, error) {
	graph := nonlinear.NewFactorGraph()
	initial := nonlinear.NewValues()
	truth := nonlinear.NewValues()
	perturb := NewPerturber(s.Seed, s.LandmarkNoise)

	for i, camera := range cameras {
		factors, err := measure(i, camera, s.Landmarks)
		if err != nil {
			return nil, err
		}
		graph.Add(factors...)

		guess := camera
		if i > 0 && s.CameraDelta != nil {
			if len(s.CameraDelta) != camera.Dim() {
				return nil, errors.Errorf("camera delta has dimension %d but cameras have dimension %d", len(s.CameraDelta), camera.Dim())
			}
			retracted := camera.Retract(s.CameraDelta)
			typed, ok := retracted.(C)
			if !ok {
				return nil, nonlinear.NewValueTypeError(CameraKey(i), camera.String(), retracted)
			}
			guess = typed
		}
		if err := initial.Insert(CameraKey(i), guess); err != nil {
			return nil, err
		}
		if err := truth.Insert(CameraKey(i), camera); err != nil {
			return nil, err
		}
	}

	for j, landmark := range s.Landmarks {
		guess := landmark
		if !s.PerturbFirstOnly || j == 0 {
			guess = perturb.Point3(landmark)
		}
		if err := initial.Insert(LandmarkKey(j), guess); err != nil {
			return nil, err
		}
		if err := truth.Insert(LandmarkKey(j), landmark); err != nil {
			return nil, err
		}
	}

	for i, camera := range cameras {
		if i > 0 && !s.FixCameras {
			break
		}
		f, err := slam.NewNonlinearEquality(CameraKey(i), camera)
		if err != nil {
			return nil, err
		}
		graph.Add(f)
	}
	if s.FixLandmarks {
		for j, landmark := range s.Landmarks {
			f, err := slam.NewNonlinearEquality(LandmarkKey(j), landmark)
			if err != nil {
				return nil, err
			}
			graph.Add(f)
		}
	}
	if s.Range > 0 {
		model, err := noise.NewIsotropic(1, s.RangeSigma)
		if err != nil {
			return nil, err
		}
		f, err := slam.NewRangeFactor(CameraKey(0), CameraKey(1), s.Range, model)
		if err != nil {
			return nil, err
		}
		graph.Add(f)
	}

	return &Problem{
		Graph:    graph,
		Initial:  initial,
		Ordering: Ordering(len(cameras), len(s.Landmarks)),
		Truth:    truth,
	}, nil
}

// RangeProblem builds a camera at the origin, a pose at (1, 1, 1) initially, a 2 m range
// between them and a unit prior holding the pose at (1, 0, 0). A general camera is pinned by
// a hard constraint and the pose settles at 1.5 m. A calibrated camera only has a unit prior,
// so the camera settles at -1/3 m and the pose at 4/3 m. The ordering is left nil.
func RangeProblem(model CameraModel) (*Problem, error) {
	origin := spatialmath.Pose3{}
	graph := nonlinear.NewFactorGraph()
	initial := nonlinear.NewValues()
	truth := nonlinear.NewValues()
	x0, x1 := CameraKey(0), CameraKey(1)

	poseTruth := 1.5
	switch model {
	case GeneralCamera:
		camera := spatialmath.NewDefaultPinholeCamera(origin)
		f, err := slam.NewNonlinearEquality(x0, camera)
		if err != nil {
			return nil, err
		}
		graph.Add(f)
		if err := initial.Insert(x0, camera); err != nil {
			return nil, err
		}
		if err := truth.Insert(x0, camera); err != nil {
			return nil, err
		}
	case CalibratedCamera:
		camera := spatialmath.NewCalibratedCamera(origin)
		unit, err := noise.NewIsotropic(6, 1)
		if err != nil {
			return nil, err
		}
		f, err := slam.NewPriorFactor(x0, camera, unit)
		if err != nil {
			return nil, err
		}
		graph.Add(f)
		if err := initial.Insert(x0, camera); err != nil {
			return nil, err
		}
		settled := spatialmath.NewCalibratedCamera(spatialmath.NewPose3(spatialmath.Rot3{}, r3.Vector{X: -1.0 / 3}))
		if err := truth.Insert(x0, settled); err != nil {
			return nil, err
		}
		poseTruth = 4.0 / 3
	default:
		return nil, errors.Errorf("range problem has no %q camera", model)
	}

	rangeModel, err := noise.NewIsotropic(1, 1)
	if err != nil {
		return nil, err
	}
	r, err := slam.NewRangeFactor(x0, x1, 2.0, rangeModel)
	if err != nil {
		return nil, err
	}
	priorModel, err := noise.NewIsotropic(6, 1)
	if err != nil {
		return nil, err
	}
	prior, err := slam.NewPriorFactor(x1, spatialmath.NewPose3(spatialmath.Rot3{}, r3.Vector{X: 1}), priorModel)
	if err != nil {
		return nil, err
	}
	graph.Add(r, prior)

	if err := initial.Insert(x1, spatialmath.NewPose3(spatialmath.Rot3{}, r3.Vector{X: 1, Y: 1, Z: 1})); err != nil {
		return nil, err
	}
	if err := truth.Insert(x1, spatialmath.NewPose3(spatialmath.Rot3{}, r3.Vector{X: poseTruth})); err != nil {
		return nil, err
	}
	return &Problem{Graph: graph, Initial: initial, Truth: truth}, nil
}
