package scenarios_test

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/factorgraph/scenarios"
	"go.viam.com/factorgraph/spatialmath"
)

func TestScenarioBuildErrors(t *testing.T) {
	scenario := scenarios.NewSFMScenario(scenarios.GeneralCamera, scenarios.VariableCalibration)
	scenario.CameraDelta = []float64{1, 2, 3}
	_, err := scenario.Build()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "camera delta has dimension 3")

	scenario = scenarios.NewSFMScenario("fisheye", scenarios.VariableCalibration)
	_, err = scenario.Build()
	test.That(t, err, test.ShouldNotBeNil)

	scenario = scenarios.NewSFMScenario(scenarios.ProjectionCamera, scenarios.VariableCalibration)
	scenario.Poses = scenario.Poses[:1]
	scenario.Range = 2
	_, err = scenario.Build()
	test.That(t, err, test.ShouldNotBeNil)

	// a landmark behind a camera cannot be measured.
	scenario = scenarios.NewSFMScenario(scenarios.CalibratedCamera, spatialmath.DefaultCal3S2)
	scenario.Landmarks = append(scenario.Landmarks, spatialmath.NewPoint3(0, 0, -1))
	_, err = scenario.Build()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot see landmark 12")

	_, err = scenarios.RangeProblem(scenarios.StereoRig)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = scenarios.ParseCameraModel("fisheye")
	test.That(t, err, test.ShouldNotBeNil)
	model, err := scenarios.ParseCameraModel("stereo")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model, test.ShouldEqual, scenarios.StereoRig)
}

func TestScenarioOrdering(t *testing.T) {
	scenario := scenarios.NewSFMScenario(scenarios.GeneralCamera, scenarios.VariableCalibration)
	problem, err := scenario.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, problem.Graph.Len(), test.ShouldEqual, scenario.NumMeasurements()+1)
	test.That(t, len(problem.Ordering), test.ShouldEqual, 14)
	test.That(t, problem.Ordering[0], test.ShouldEqual, scenarios.LandmarkKey(0))
	test.That(t, problem.Ordering[13], test.ShouldEqual, scenarios.CameraKey(1))
	test.That(t, problem.Ordering.Validate(problem.Graph.Keys()), test.ShouldBeNil)

	// the truth has zero error and the same seed gives the same initial estimate.
	e, err := problem.Graph.Error(problem.Truth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e, test.ShouldAlmostEqual, 0, 1e-12)
	again, err := scenario.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Initial.Equal(problem.Initial, 1e-12), test.ShouldBeTrue)
	scenario.Seed = 2
	other, err := scenario.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, other.Initial.Equal(problem.Initial, 1e-3), test.ShouldBeFalse)
}

func TestPerturber(t *testing.T) {
	a := scenarios.NewPerturber(3, 0.5)
	b := scenarios.NewPerturber(3, 0.5)
	point := spatialmath.NewPoint3(1, 2, 3)
	pa, pb := a.Point3(point), b.Point3(point)
	test.That(t, pa.Equal(pb, 0), test.ShouldBeTrue)
	test.That(t, pa.Equal(point, 1e-9), test.ShouldBeFalse)

	still := scenarios.NewPerturber(3, 0)
	test.That(t, still.Point2(spatialmath.NewPoint2(4, 5)).Equal(spatialmath.NewPoint2(4, 5), 0), test.ShouldBeTrue)
}
