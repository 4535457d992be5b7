package linear

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
)

// JacobianFactor is the linear least-squares term ‖Σ_k A_k δ_k − b‖² with one block per key.
type JacobianFactor struct {
	keys   []inference.Key
	blocks []*mat.Dense
	b      *mat.VecDense
}

// NewJacobianFactor checks that every block has len(b) rows and that keys are unique.
// The blocks and b are referenced, not copied.
func NewJacobianFactor(keys []inference.Key, blocks []*mat.Dense, b *mat.VecDense) (*JacobianFactor, error) {
	if len(keys) != len(blocks) {
		return nil, errors.Errorf("jacobian factor has %d keys but %d blocks", len(keys), len(blocks))
	}
	if len(keys) == 0 {
		return nil, errors.New("jacobian factor needs at least one key")
	}
	rows := b.Len()
	seen := make(map[inference.Key]struct{}, len(keys))
	for i, block := range blocks {
		if _, dup := seen[keys[i]]; dup {
			return nil, errors.Errorf("jacobian factor references key %s twice", keys[i])
		}
		seen[keys[i]] = struct{}{}
		if r, _ := block.Dims(); r != rows {
			return nil, errors.Errorf("block for key %s has %d rows, expected %d", keys[i], r, rows)
		}
	}
	return &JacobianFactor{keys: append([]inference.Key(nil), keys...), blocks: blocks, b: b}, nil
}

// Keys returns the keys in block order.
func (jf *JacobianFactor) Keys() []inference.Key {
	return append([]inference.Key(nil), jf.keys...)
}

// Rows is the number of residual rows.
func (jf *JacobianFactor) Rows() int {
	return jf.b.Len()
}

// Block returns the i-th block.
func (jf *JacobianFactor) Block(i int) *mat.Dense {
	return jf.blocks[i]
}

// BlockFor returns the block of key.
func (jf *JacobianFactor) BlockFor(key inference.Key) (*mat.Dense, bool) {
	for i, k := range jf.keys {
		if k == key {
			return jf.blocks[i], true
		}
	}
	return nil, false
}

// B is the right hand side.
func (jf *JacobianFactor) B() *mat.VecDense {
	return jf.b
}

// Residual returns Σ_k A_k δ_k − b. Keys absent from delta contribute zero.
func (jf *JacobianFactor) Residual(delta *VectorValues) []float64 {
	res := make([]float64, jf.Rows())
	for i, k := range jf.keys {
		seg, ok := delta.At(k)
		if !ok {
			continue
		}
		var ax mat.VecDense
		ax.MulVec(jf.blocks[i], mat.NewVecDense(len(seg), seg))
		floats.Add(res, ax.RawVector().Data)
	}
	floats.Sub(res, jf.b.RawVector().Data)
	return res
}

// Error is 0.5 ‖Σ_k A_k δ_k − b‖².
func (jf *JacobianFactor) Error(delta *VectorValues) float64 {
	res := jf.Residual(delta)
	return 0.5 * floats.Dot(res, res)
}

func (jf *JacobianFactor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "JacobianFactor %s rows=%d\n", inference.KeysString(jf.keys), jf.Rows())
	for i, k := range jf.keys {
		fmt.Fprintf(&sb, "  A[%s] = %v\n", k, mat.Formatted(jf.blocks[i], mat.Prefix("         "), mat.Squeeze()))
	}
	fmt.Fprintf(&sb, "  b = %v", mat.Formatted(jf.b.T(), mat.Squeeze()))
	return sb.String()
}
