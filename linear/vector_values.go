package linear

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
)

// VectorValues is a tangent-space vector stored contiguously with one segment per key. Segments
// are laid out in the order the keys were given.
type VectorValues struct {
	keys    []inference.Key
	offsets map[inference.Key]int
	dims    map[inference.Key]int
	data    []float64
}

// NewVectorValues returns a zero vector with one segment per key of ordering. Every key of
// ordering must have a dimension in dims.
func NewVectorValues(ordering inference.Ordering, dims map[inference.Key]int) (*VectorValues, error) {
	vv := &VectorValues{
		keys:    append([]inference.Key(nil), ordering...),
		offsets: make(map[inference.Key]int, len(ordering)),
		dims:    make(map[inference.Key]int, len(ordering)),
	}
	total := 0
	for _, k := range ordering {
		d, ok := dims[k]
		if !ok {
			return nil, errors.Errorf("no dimension known for key %s", k)
		}
		if _, dup := vv.offsets[k]; dup {
			return nil, errors.Errorf("key %s appears twice", k)
		}
		vv.offsets[k] = total
		vv.dims[k] = d
		total += d
	}
	vv.data = make([]float64, total)
	return vv, nil
}

// Keys returns the keys in layout order.
func (vv *VectorValues) Keys() []inference.Key {
	return append([]inference.Key(nil), vv.keys...)
}

// Has reports whether key has a segment.
func (vv *VectorValues) Has(key inference.Key) bool {
	_, ok := vv.offsets[key]
	return ok
}

// Dim returns the segment length of key.
func (vv *VectorValues) Dim(key inference.Key) (int, bool) {
	d, ok := vv.dims[key]
	return d, ok
}

// Len is the total number of scalars.
func (vv *VectorValues) Len() int {
	return len(vv.data)
}

// At returns the segment of key. The slice aliases the vector storage.
func (vv *VectorValues) At(key inference.Key) ([]float64, bool) {
	off, ok := vv.offsets[key]
	if !ok {
		return nil, false
	}
	return vv.data[off : off+vv.dims[key]], true
}

// Set copies v into the segment of key.
func (vv *VectorValues) Set(key inference.Key, v []float64) error {
	seg, ok := vv.At(key)
	if !ok {
		return errors.Errorf("key %s has no segment", key)
	}
	if len(v) != len(seg) {
		return errors.Errorf("segment %s has dimension %d, got %d values", key, len(seg), len(v))
	}
	copy(seg, v)
	return nil
}

// Data returns the contiguous storage.
func (vv *VectorValues) Data() []float64 {
	return vv.data
}

// Vector returns a copy of the storage as a column vector.
func (vv *VectorValues) Vector() *mat.VecDense {
	if len(vv.data) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(vv.data), append([]float64(nil), vv.data...))
}

// Norm is the Euclidean norm of the whole vector.
func (vv *VectorValues) Norm() float64 {
	return floats.Norm(vv.data, 2)
}

// Scale returns alpha times vv in a new VectorValues with the same layout.
func (vv *VectorValues) Scale(alpha float64) *VectorValues {
	out := vv.Clone()
	floats.Scale(alpha, out.data)
	return out
}

// Clone returns a deep copy.
func (vv *VectorValues) Clone() *VectorValues {
	out := &VectorValues{
		keys:    append([]inference.Key(nil), vv.keys...),
		offsets: make(map[inference.Key]int, len(vv.keys)),
		dims:    make(map[inference.Key]int, len(vv.keys)),
		data:    append([]float64(nil), vv.data...),
	}
	for k, off := range vv.offsets {
		out.offsets[k] = off
		out.dims[k] = vv.dims[k]
	}
	return out
}

// Equal compares segments key by key, independent of layout.
func (vv *VectorValues) Equal(other *VectorValues, tol float64) bool {
	if len(vv.keys) != len(other.keys) {
		return false
	}
	for _, k := range vv.keys {
		a, _ := vv.At(k)
		b, ok := other.At(k)
		if !ok || len(a) != len(b) || !floats.EqualApprox(a, b, tol) {
			return false
		}
	}
	return true
}

func (vv *VectorValues) String() string {
	var sb strings.Builder
	sb.WriteString("VectorValues:")
	for _, k := range vv.keys {
		seg, _ := vv.At(k)
		fmt.Fprintf(&sb, " %s=%v", k, seg)
	}
	return sb.String()
}
