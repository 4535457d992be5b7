package nonlinear

import (
	"errors"
	"testing"

	"go.viam.com/test"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/linear"
)

func TestValuesInsertAndAt(t *testing.T) {
	values := NewValues()
	mustInsert(t, values, x1, vectorValue{1, 2})
	mustInsert(t, values, x0, otherValue{vectorValue{3}})

	err := values.Insert(x1, vectorValue{0, 0})
	var exists *KeyExistsError
	test.That(t, errors.As(err, &exists), test.ShouldBeTrue)
	test.That(t, exists.Key, test.ShouldEqual, x1)

	v, err := At[vectorValue](values, x1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldResemble, vectorValue{1, 2})

	_, err = At[vectorValue](values, x0)
	var typeErr *ValueTypeError
	test.That(t, errors.As(err, &typeErr), test.ShouldBeTrue)
	test.That(t, typeErr.Key, test.ShouldEqual, x0)
	test.That(t, typeErr.Expected, test.ShouldEqual, "nonlinear.vectorValue")
	test.That(t, typeErr.Actual, test.ShouldEqual, "nonlinear.otherValue")

	_, err = At[vectorValue](values, x2)
	var missing *MissingVariableError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Key, test.ShouldEqual, x2)

	// interface types can be requested too.
	asValue, err := At[Value](values, x0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, asValue.Dim(), test.ShouldEqual, 1)

	test.That(t, values.Len(), test.ShouldEqual, 2)
	test.That(t, values.Keys(), test.ShouldResemble, []inference.Key{x0, x1})
	test.That(t, values.Dims(), test.ShouldResemble, map[inference.Key]int{x0: 1, x1: 2})
}

func TestValuesUpdate(t *testing.T) {
	values := NewValues()
	mustInsert(t, values, x1, vectorValue{1, 2})
	test.That(t, values.Update(x1, vectorValue{5, 6}), test.ShouldBeNil)
	v, ok := values.Get(x1)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldResemble, vectorValue{5, 6})

	var missing *MissingVariableError
	test.That(t, errors.As(values.Update(x2, vectorValue{1}), &missing), test.ShouldBeTrue)
	var dimension *DimensionMismatchError
	test.That(t, errors.As(values.Update(x1, vectorValue{1}), &dimension), test.ShouldBeTrue)
}

func TestValuesRetract(t *testing.T) {
	values := NewValues()
	mustInsert(t, values, x0, vectorValue{1, 1})
	mustInsert(t, values, x1, vectorValue{2})

	delta, err := values.ZeroDelta(inference.Ordering{x1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, delta.Set(x1, []float64{0.5}), test.ShouldBeNil)

	retracted, err := values.Retract(delta)
	test.That(t, err, test.ShouldBeNil)
	// the original is untouched and x0, having no segment, is carried over.
	test.That(t, values.Equal(retracted, 1e-9), test.ShouldBeFalse)
	v, _ := values.Get(x1)
	test.That(t, v, test.ShouldResemble, vectorValue{2})
	v, _ = retracted.Get(x1)
	test.That(t, v, test.ShouldResemble, vectorValue{2.5})
	v, _ = retracted.Get(x0)
	test.That(t, v, test.ShouldResemble, vectorValue{1, 1})

	// retracting by the negated delta recovers the original.
	back, err := retracted.Retract(delta.Scale(-1))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Equal(values, 1e-12), test.ShouldBeTrue)

	// a delta over every key moves every variable.
	full, err := values.ZeroDelta(inference.Ordering{x0, x1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, full.Len(), test.ShouldEqual, 3)
	test.That(t, full.Set(x0, []float64{1, -1}), test.ShouldBeNil)
	test.That(t, full.Set(x1, []float64{-2}), test.ShouldBeNil)
	moved, err := values.Retract(full)
	test.That(t, err, test.ShouldBeNil)
	v, _ = moved.Get(x0)
	test.That(t, v, test.ShouldResemble, vectorValue{2, 0})
	v, _ = moved.Get(x1)
	test.That(t, v, test.ShouldResemble, vectorValue{0})

	wrongDim, err := linear.NewVectorValues(inference.Ordering{x1}, map[inference.Key]int{x1: 2})
	test.That(t, err, test.ShouldBeNil)
	_, err = values.Retract(wrongDim)
	var dimension *DimensionMismatchError
	test.That(t, errors.As(err, &dimension), test.ShouldBeTrue)
	test.That(t, dimension.Key, test.ShouldEqual, x1)
	test.That(t, dimension.Expected, test.ShouldEqual, 1)
	test.That(t, dimension.Actual, test.ShouldEqual, 2)

	unknown, err := linear.NewVectorValues(inference.Ordering{x2}, map[inference.Key]int{x2: 1})
	test.That(t, err, test.ShouldBeNil)
	_, err = values.Retract(unknown)
	test.That(t, errors.As(err, &dimension), test.ShouldBeTrue)
	test.That(t, dimension.Key, test.ShouldEqual, x2)

	_, err = values.ZeroDelta(inference.Ordering{x2})
	var missing *MissingVariableError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
}

func TestValuesLocalCoordinates(t *testing.T) {
	a := NewValues()
	mustInsert(t, a, x0, vectorValue{1, 1})
	mustInsert(t, a, x1, vectorValue{2})
	b := NewValues()
	mustInsert(t, b, x0, vectorValue{0, 3})
	mustInsert(t, b, x1, vectorValue{-1})

	delta, err := a.LocalCoordinates(b, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, delta.Keys(), test.ShouldResemble, []inference.Key{x0, x1})
	test.That(t, delta.Data(), test.ShouldResemble, []float64{-1, 2, -3})

	retracted, err := a.Retract(delta)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, retracted.Equal(b, 1e-12), test.ShouldBeTrue)

	c := NewValues()
	mustInsert(t, c, x0, vectorValue{0, 3})
	_, err = a.LocalCoordinates(c, nil)
	var missing *MissingVariableError
	test.That(t, errors.As(err, &missing), test.ShouldBeTrue)
	test.That(t, missing.Key, test.ShouldEqual, x1)
}

func TestValuesEqualAndString(t *testing.T) {
	a := NewValues()
	mustInsert(t, a, x1, vectorValue{2})
	mustInsert(t, a, x0, vectorValue{1, 1})
	b := a.Clone()
	test.That(t, a.Equal(b, 0), test.ShouldBeTrue)
	test.That(t, b.Update(x1, vectorValue{2.001}), test.ShouldBeNil)
	test.That(t, a.Equal(b, 1e-2), test.ShouldBeTrue)
	test.That(t, a.Equal(b, 1e-4), test.ShouldBeFalse)
	test.That(t, a.Equal(NewValues(), 1), test.ShouldBeFalse)

	test.That(t, a.String(), test.ShouldEqual, "Values with 2 variables\n  x0: [1 1]\n  x1: [2]")
}
