package spatialmath

import (
	"errors"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/nonlinear"
)

var (
	testRot  = Rot3Exp(r3.Vector{X: 0.1, Y: -0.3, Z: 0.2})
	testPose = NewPose3(testRot, r3.Vector{X: 0.5, Y: -1, Z: -4})
	testK    = NewCal3S2(640, 480, 0.01, 320, 240)
)

func numerical(t *testing.T, h func(nonlinear.Value) ([]float64, error), x nonlinear.Value) *mat.Dense {
	t.Helper()
	jac, err := nonlinear.NumericalJacobian(h, x)
	test.That(t, err, test.ShouldBeNil)
	return jac
}

func TestRot3(t *testing.T) {
	var identity Rot3
	test.That(t, identity.Quaternion(), test.ShouldResemble, quat.Number{Real: 1})
	test.That(t, identity.Log(), test.ShouldResemble, r3.Vector{})
	test.That(t, identity.String(), test.ShouldEqual, "Rot3(identity)")

	w := r3.Vector{X: 0.4, Y: -0.2, Z: 1.1}
	log := Rot3Exp(w).Log()
	test.That(t, vectorAlmostEqual(log, w, 1e-12), test.ShouldBeTrue)

	quarter := Rot3FromAxisAngle(r3.Vector{Z: 2}, math.Pi/2)
	rotated := quarter.Rotate(r3.Vector{X: 1})
	test.That(t, vectorAlmostEqual(rotated, r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)
	test.That(t, vectorAlmostEqual(quarter.Unrotate(rotated), r3.Vector{X: 1}, 1e-12), test.ShouldBeTrue)

	// Rotate agrees with the matrix.
	p := r3.Vector{X: 1, Y: 2, Z: 3}
	var mv mat.VecDense
	mv.MulVec(testRot.Matrix(), mat.NewVecDense(3, []float64{p.X, p.Y, p.Z}))
	test.That(t, vectorAlmostEqual(testRot.Rotate(p), vec3(mv.RawVector().Data), 1e-12), test.ShouldBeTrue)

	test.That(t, testRot.Compose(testRot.Inverse()).Equal(identity, 1e-12), test.ShouldBeTrue)
	test.That(t, testRot.Compose(testRot.Between(quarter)).Equal(quarter, 1e-12), test.ShouldBeTrue)
	test.That(t, testRot.Equal(quarter, 1e-3), test.ShouldBeFalse)
	test.That(t, testRot.Equal(NewPoint3(0, 0, 0), 1), test.ShouldBeFalse)

	// q and −q are the same rotation.
	negated, err := NewRot3(quat.Scale(-3, testRot.Quaternion()))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, negated.Equal(testRot, 1e-12), test.ShouldBeTrue)
	test.That(t, negated.Quaternion().Real, test.ShouldBeGreaterThanOrEqualTo, 0)

	_, err = NewRot3(quat.Number{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRot3Manifold(t *testing.T) {
	delta := []float64{0.01, 0.2, -0.3}
	moved := testRot.Retract(delta)
	local, err := testRot.LocalCoordinates(moved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, local, test.ShouldHaveLength, 3)
	for i := range delta {
		test.That(t, local[i], test.ShouldAlmostEqual, delta[i], 1e-12)
	}

	_, err = testRot.LocalCoordinates(testPose)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "expected spatialmath.Rot3 but got spatialmath.Pose3")
}

func TestRot3EqualReflexive(t *testing.T) {
	r := Rot3Exp(r3.Vector{X: 0.1, Y: -0.2, Z: 0.3})
	test.That(t, r.Equal(r, 0), test.ShouldBeTrue)
	test.That(t, testPose.Equal(testPose, 0), test.ShouldBeTrue)
	test.That(t, NewCalibratedCamera(testPose).Equal(NewCalibratedCamera(testPose), 0), test.ShouldBeTrue)
	test.That(t, NewPinholeCamera(testPose, testK).Equal(NewPinholeCamera(testPose, testK), 0), test.ShouldBeTrue)

	// q and -q are the same rotation.
	flipped := Rot3{q: quat.Scale(-1, r.q)}
	test.That(t, r.Equal(flipped, 0), test.ShouldBeTrue)

	other := Rot3Exp(r3.Vector{X: 0.1, Y: -0.2, Z: 0.3 + 1e-6})
	test.That(t, r.Equal(other, 0), test.ShouldBeFalse)
	test.That(t, r.Equal(other, 1e-5), test.ShouldBeTrue)

	values := nonlinear.NewValues()
	test.That(t, values.Insert(inference.Symbol('x', 0), testPose), test.ShouldBeNil)
	test.That(t, values.Equal(values.Clone(), 0), test.ShouldBeTrue)
}

func TestPose3(t *testing.T) {
	p := r3.Vector{X: 1, Y: 2, Z: 3}
	test.That(t, vectorAlmostEqual(testPose.TransformTo(testPose.TransformFrom(p)), p, 1e-12), test.ShouldBeTrue)

	other := NewPose3(Rot3Exp(r3.Vector{Z: 0.5}), r3.Vector{X: 2})
	composed := testPose.Compose(other)
	test.That(t, vectorAlmostEqual(composed.TransformFrom(p), testPose.TransformFrom(other.TransformFrom(p)), 1e-12),
		test.ShouldBeTrue)
	test.That(t, testPose.Compose(testPose.Between(other)).Equal(other, 1e-12), test.ShouldBeTrue)
	test.That(t, testPose.Compose(testPose.Inverse()).Equal(Pose3{}, 1e-12), test.ShouldBeTrue)

	delta := []float64{0.1, -0.2, 0.05, 1, 2, -3}
	moved := testPose.Retract(delta)
	local, err := testPose.LocalCoordinates(moved)
	test.That(t, err, test.ShouldBeNil)
	for i := range delta {
		test.That(t, local[i], test.ShouldAlmostEqual, delta[i], 1e-12)
	}
	back, err := moved.LocalCoordinates(testPose)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, moved.Retract(back).Equal(testPose, 1e-12), test.ShouldBeTrue)

	// the translation moves in the body frame.
	shifted := testPose.Retract([]float64{0, 0, 0, 1, 0, 0}).(Pose3)
	test.That(t, vectorAlmostEqual(shifted.Translation(), testPose.TransformFrom(r3.Vector{X: 1}), 1e-12),
		test.ShouldBeTrue)
	test.That(t, testPose.String(), test.ShouldContainSubstring, "t: (0.5, -1, -4)")
}

func TestPose3TransformToJacobians(t *testing.T) {
	point := NewPoint3(1, 2, 3)
	q, hPose, hPoint := testPose.TransformToWithJacobians(point.Vector)
	test.That(t, vectorAlmostEqual(q, testPose.TransformTo(point.Vector), 0), test.ShouldBeTrue)

	numericalPose := numerical(t, func(x nonlinear.Value) ([]float64, error) {
		return Point3{x.(Pose3).TransformTo(point.Vector)}.Slice(), nil
	}, testPose)
	test.That(t, mat.EqualApprox(hPose, numericalPose, 1e-7), test.ShouldBeTrue)

	numericalPoint := numerical(t, func(x nonlinear.Value) ([]float64, error) {
		return Point3{testPose.TransformTo(x.(Point3).Vector)}.Slice(), nil
	}, point)
	test.That(t, mat.EqualApprox(hPoint, numericalPoint, 1e-7), test.ShouldBeTrue)
}

func TestPositionJacobians(t *testing.T) {
	position := func(x nonlinear.Value) ([]float64, error) {
		return Point3{x.(Positioned).Position()}.Slice(), nil
	}
	for _, value := range []Positioned{
		NewPoint3(1, 2, 3),
		testPose,
		NewCalibratedCamera(testPose),
		NewPinholeCamera(testPose, testK),
	} {
		rows, cols := value.PositionJacobian().Dims()
		test.That(t, rows, test.ShouldEqual, 3)
		test.That(t, cols, test.ShouldEqual, value.Dim())
		test.That(t, mat.EqualApprox(value.PositionJacobian(), numerical(t, position, value), 1e-7), test.ShouldBeTrue)
	}
}

func TestCal3S2(t *testing.T) {
	p := NewPoint2(0.1, -0.2)
	uv := testK.Uncalibrate(p)
	test.That(t, uv.X, test.ShouldAlmostEqual, 640*0.1+0.01*-0.2+320)
	test.That(t, uv.Y, test.ShouldAlmostEqual, 480*-0.2+240)
	test.That(t, testK.Calibrate(uv).Equal(p, 1e-12), test.ShouldBeTrue)

	var homogeneous mat.VecDense
	homogeneous.MulVec(testK.Matrix(), mat.NewVecDense(3, []float64{p.X, p.Y, 1}))
	test.That(t, homogeneous.AtVec(0), test.ShouldAlmostEqual, uv.X)
	test.That(t, homogeneous.AtVec(1), test.ShouldAlmostEqual, uv.Y)

	_, hCal, hPoint := testK.UncalibrateWithJacobians(p)
	test.That(t, mat.EqualApprox(hCal, numerical(t, func(x nonlinear.Value) ([]float64, error) {
		return x.(Cal3S2).Uncalibrate(p).Slice(), nil
	}, testK), 1e-6), test.ShouldBeTrue)
	test.That(t, mat.EqualApprox(hPoint, numerical(t, func(x nonlinear.Value) ([]float64, error) {
		return testK.Uncalibrate(x.(Point2)).Slice(), nil
	}, p), 1e-6), test.ShouldBeTrue)

	moved := testK.Retract([]float64{1, 2, 0, 4, 5})
	test.That(t, moved, test.ShouldResemble, NewCal3S2(641, 482, 0.01, 324, 245))
	local, err := testK.LocalCoordinates(moved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, local[4], test.ShouldAlmostEqual, 5)
}

func TestCalibratedCameraProject(t *testing.T) {
	camera := NewCalibratedCamera(NewPose3(Rot3{}, r3.Vector{Z: -6}))
	uv, err := camera.Project(NewPoint3(0, 0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, uv, test.ShouldResemble, NewPoint2(0, 0))

	uv, err = camera.Project(NewPoint3(3, -1.5, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, uv.Equal(NewPoint2(0.5, -0.25), 1e-12), test.ShouldBeTrue)

	_, err = camera.Project(NewPoint3(0, 0, -7))
	var cheirality *CheiralityError
	test.That(t, errors.As(err, &cheirality), test.ShouldBeTrue)
	test.That(t, cheirality.Depth, test.ShouldAlmostEqual, -1)
	_, _, _, err = camera.ProjectWithJacobians(NewPoint3(0, 0, -6))
	test.That(t, errors.As(err, &cheirality), test.ShouldBeTrue)
}

func TestCameraProjectionJacobians(t *testing.T) {
	point := NewPoint3(0.3, -0.4, 2)
	for _, camera := range []Camera{
		NewCalibratedCamera(testPose),
		NewPinholeCamera(testPose, testK),
		NewDefaultPinholeCamera(testPose),
	} {
		uv, hCamera, hPoint, err := camera.ProjectWithJacobians(point)
		test.That(t, err, test.ShouldBeNil)
		plain, err := camera.Project(point)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, uv.Equal(plain, 1e-12), test.ShouldBeTrue)

		_, cols := hCamera.Dims()
		test.That(t, cols, test.ShouldEqual, camera.Dim())
		numericalCamera := numerical(t, func(x nonlinear.Value) ([]float64, error) {
			p, err := x.(Camera).Project(point)
			return p.Slice(), err
		}, camera)
		test.That(t, mat.EqualApprox(hCamera, numericalCamera, 1e-4), test.ShouldBeTrue)

		numericalPoint := numerical(t, func(x nonlinear.Value) ([]float64, error) {
			p, err := camera.Project(x.(Point3))
			return p.Slice(), err
		}, point)
		test.That(t, mat.EqualApprox(hPoint, numericalPoint, 1e-4), test.ShouldBeTrue)
	}
}

func TestPinholeCameraManifold(t *testing.T) {
	camera := NewPinholeCamera(testPose, testK)
	delta := []float64{1e-5, 1e-5, 1e-5, 1e-3, 1e-3, 1e-3, 1, 1, 1e-5, 1e-3, 1e-3}
	moved := camera.Retract(delta)
	local, err := camera.LocalCoordinates(moved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, local, test.ShouldHaveLength, 11)
	for i := range delta {
		test.That(t, local[i], test.ShouldAlmostEqual, delta[i], 1e-9)
	}
	test.That(t, moved.(PinholeCamera).Calibration().Fx, test.ShouldAlmostEqual, 641)
	test.That(t, camera.Equal(moved, 1e-6), test.ShouldBeFalse)
	test.That(t, camera.Equal(NewCalibratedCamera(testPose), 1), test.ShouldBeFalse)
}

func TestStereoCamera(t *testing.T) {
	_, err := NewStereoCamera(testPose, testK, 0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewStereoCamera(testPose, Cal3S2{}, 0.5)
	test.That(t, err, test.ShouldNotBeNil)

	k := NewCal3S2(625, 625, 0, 320, 240)
	rig, err := NewStereoCamera(Pose3{}, k, 0.5)
	test.That(t, err, test.ShouldBeNil)
	measured, err := rig.Project(NewPoint3(0, 0, 5))
	test.That(t, err, test.ShouldBeNil)
	// disparity is fx·b/z.
	test.That(t, measured.Equal(NewStereoPoint2(320, 320-62.5, 240), 1e-9), test.ShouldBeTrue)

	_, err = rig.Project(NewPoint3(0, 0, -1))
	var cheirality *CheiralityError
	test.That(t, errors.As(err, &cheirality), test.ShouldBeTrue)

	rig, err = NewStereoCamera(testPose, testK, 0.2)
	test.That(t, err, test.ShouldBeNil)
	point := NewPoint3(0.3, -0.4, 2)
	_, hPose, hPoint, err := rig.ProjectWithJacobians(point)
	test.That(t, err, test.ShouldBeNil)
	numericalPose := numerical(t, func(x nonlinear.Value) ([]float64, error) {
		moved, err := NewStereoCamera(x.(Pose3), testK, 0.2)
		if err != nil {
			return nil, err
		}
		s, err := moved.Project(point)
		return s.Slice(), err
	}, testPose)
	test.That(t, mat.EqualApprox(hPose, numericalPose, 1e-4), test.ShouldBeTrue)
	numericalPoint := numerical(t, func(x nonlinear.Value) ([]float64, error) {
		s, err := rig.Project(x.(Point3))
		return s.Slice(), err
	}, point)
	test.That(t, mat.EqualApprox(hPoint, numericalPoint, 1e-4), test.ShouldBeTrue)
}

func TestPointValues(t *testing.T) {
	p := NewPoint3(1, 2, 3)
	moved := p.Retract([]float64{1, 1, 1})
	test.That(t, moved, test.ShouldResemble, NewPoint3(2, 3, 4))
	local, err := p.LocalCoordinates(moved)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, local, test.ShouldResemble, []float64{1, 1, 1})
	_, err = p.LocalCoordinates(NewPoint2(0, 0))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, p.String(), test.ShouldEqual, "Point3(1, 2, 3)")

	s := NewStereoPoint2(1, 2, 3)
	test.That(t, s.Retract([]float64{1, 0, -1}), test.ShouldResemble, NewStereoPoint2(2, 2, 2))
	test.That(t, NewPoint2(1, 2).Equal(NewPoint2(1, 2.5), 0.1), test.ShouldBeFalse)
}
