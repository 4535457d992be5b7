package nonlinear

import (
	"fmt"
	"reflect"
	"strings"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/linear"
)

// Value is a variable living on a manifold. Implementations are immutable.
type Value interface {
	// Dim is the dimension of the tangent space.
	Dim() int
	// Retract moves the value along a tangent vector of length Dim.
	Retract(delta []float64) Value
	// LocalCoordinates returns the tangent vector taking this value to other, so that
	// v.Retract(v.LocalCoordinates(other)) equals other.
	LocalCoordinates(other Value) ([]float64, error)
	Equal(other Value, tol float64) bool
	String() string
}

// Values is an assignment of values to keys. Updates during optimization produce new Values;
// the values themselves are shared.
type Values struct {
	values map[inference.Key]Value
}

// NewValues returns an empty assignment.
func NewValues() *Values {
	return &Values{values: make(map[inference.Key]Value)}
}

// Insert adds a value for a new key.
func (v *Values) Insert(key inference.Key, value Value) error {
	if _, ok := v.values[key]; ok {
		return NewKeyExistsError(key)
	}
	v.values[key] = value
	return nil
}

// Update replaces the value of an existing key with one of the same dimension.
func (v *Values) Update(key inference.Key, value Value) error {
	old, ok := v.values[key]
	if !ok {
		return NewMissingVariableError(key)
	}
	if old.Dim() != value.Dim() {
		return NewDimensionMismatchError(key, "updated value", old.Dim(), value.Dim())
	}
	v.values[key] = value
	return nil
}

// Get returns the value of key.
func (v *Values) Get(key inference.Key) (Value, bool) {
	value, ok := v.values[key]
	return value, ok
}

// Has reports whether key has a value.
func (v *Values) Has(key inference.Key) bool {
	_, ok := v.values[key]
	return ok
}

// At returns the value of key as a T.
func At[T Value](values *Values, key inference.Key) (T, error) {
	var zero T
	value, ok := values.values[key]
	if !ok {
		return zero, NewMissingVariableError(key)
	}
	typed, ok := value.(T)
	if !ok {
		return zero, NewValueTypeError(key, reflect.TypeFor[T]().String(), value)
	}
	return typed, nil
}

// Len is the number of variables.
func (v *Values) Len() int {
	return len(v.values)
}

// Keys returns the keys in ascending order.
func (v *Values) Keys() []inference.Key {
	keys := make([]inference.Key, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	inference.SortKeys(keys)
	return keys
}

// Dims returns the tangent dimension of every variable.
func (v *Values) Dims() map[inference.Key]int {
	dims := make(map[inference.Key]int, len(v.values))
	for k, value := range v.values {
		dims[k] = value.Dim()
	}
	return dims
}

// Clone returns a new Values sharing the same value instances.
func (v *Values) Clone() *Values {
	out := &Values{values: make(map[inference.Key]Value, len(v.values))}
	for k, value := range v.values {
		out.values[k] = value
	}
	return out
}

// ZeroDelta returns a zero tangent vector laid out in ordering.
func (v *Values) ZeroDelta(ordering inference.Ordering) (*linear.VectorValues, error) {
	for _, k := range ordering {
		if !v.Has(k) {
			return nil, NewMissingVariableError(k)
		}
	}
	return linear.NewVectorValues(ordering, v.Dims())
}

// Retract returns new Values where every variable with a segment in delta is retracted by it.
// Variables without a segment are carried over unchanged. Every segment must belong to a
// variable and match its dimension.
func (v *Values) Retract(delta *linear.VectorValues) (*Values, error) {
	out := v.Clone()
	for _, k := range delta.Keys() {
		seg, _ := delta.At(k)
		value, ok := v.values[k]
		if !ok {
			return nil, NewDimensionMismatchError(k, "delta segment without a variable", 0, len(seg))
		}
		if value.Dim() != len(seg) {
			return nil, NewDimensionMismatchError(k, "delta segment", value.Dim(), len(seg))
		}
		out.values[k] = value.Retract(seg)
	}
	return out, nil
}

// LocalCoordinates returns the delta taking v to other, laid out in ordering. A nil ordering
// uses the sorted keys of v. Both must hold the keys of the ordering.
func (v *Values) LocalCoordinates(other *Values, ordering inference.Ordering) (*linear.VectorValues, error) {
	if ordering == nil {
		ordering = v.Keys()
	}
	delta, err := v.ZeroDelta(ordering)
	if err != nil {
		return nil, err
	}
	for _, k := range ordering {
		target, ok := other.values[k]
		if !ok {
			return nil, NewMissingVariableError(k)
		}
		local, err := v.values[k].LocalCoordinates(target)
		if err != nil {
			return nil, err
		}
		if err := delta.Set(k, local); err != nil {
			return nil, NewDimensionMismatchError(k, "local coordinates", v.values[k].Dim(), len(local))
		}
	}
	return delta, nil
}

// Equal compares variable by variable.
func (v *Values) Equal(other *Values, tol float64) bool {
	if len(v.values) != len(other.values) {
		return false
	}
	for k, value := range v.values {
		o, ok := other.values[k]
		if !ok || !value.Equal(o, tol) {
			return false
		}
	}
	return true
}

func (v *Values) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Values with %d variables", len(v.values))
	for _, k := range v.Keys() {
		fmt.Fprintf(&sb, "\n  %s: %s", k, v.values[k])
	}
	return sb.String()
}
