package linear

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
)

// GaussianConditional is the density of one frontal variable given its separator, stored as the
// upper triangular system R·x_j + Σ S_k·x_k = d.
type GaussianConditional struct {
	frontal   inference.Key
	separator []inference.Key
	r         *mat.TriDense
	s         []*mat.Dense
	d         *mat.VecDense
}

func newGaussianConditional(
	frontal inference.Key,
	separator []inference.Key,
	r *mat.TriDense,
	s []*mat.Dense,
	d *mat.VecDense,
) *GaussianConditional {
	return &GaussianConditional{frontal: frontal, separator: separator, r: r, s: s, d: d}
}

// Frontal is the variable this conditional solves for.
func (c *GaussianConditional) Frontal() inference.Key {
	return c.frontal
}

// Separator is the set of variables the frontal depends on, in elimination order.
func (c *GaussianConditional) Separator() []inference.Key {
	return append([]inference.Key(nil), c.separator...)
}

// R is the upper triangular frontal block.
func (c *GaussianConditional) R() *mat.TriDense {
	return c.r
}

// S returns the block of the i-th separator variable.
func (c *GaussianConditional) S(i int) *mat.Dense {
	return c.s[i]
}

// D is the right hand side.
func (c *GaussianConditional) D() *mat.VecDense {
	return c.d
}

// Solve returns x_j = R⁻¹(d − Σ S_k·x_k) given a solution holding every separator variable.
func (c *GaussianConditional) Solve(solution *VectorValues) ([]float64, error) {
	rhs := append([]float64(nil), c.d.RawVector().Data...)
	for i, k := range c.separator {
		xk, ok := solution.At(k)
		if !ok {
			return nil, errors.Errorf("separator %s of %s missing from solution", k, c.frontal)
		}
		var sx mat.VecDense
		sx.MulVec(c.s[i], mat.NewVecDense(len(xk), xk))
		floats.Sub(rhs, sx.RawVector().Data)
	}
	blas64.Trsv(blas.NoTrans, c.r.RawTriangular(), blas64.Vector{N: len(rhs), Inc: 1, Data: rhs})
	for _, v := range rhs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, NewDegenerateSystemError(c.frontal, math.NaN())
		}
	}
	return rhs, nil
}

func (c *GaussianConditional) String() string {
	return fmt.Sprintf("p(%s | %s)", c.frontal, strings.Trim(inference.KeysString(c.separator), "{}"))
}

// BayesNet is the result of eliminating a linear graph: one conditional per variable, in
// elimination order.
type BayesNet struct {
	conditionals []*GaussianConditional
	ordering     inference.Ordering
	dims         map[inference.Key]int
}

// Len is the number of conditionals.
func (bn *BayesNet) Len() int {
	return len(bn.conditionals)
}

// At returns the i-th conditional in elimination order.
func (bn *BayesNet) At(i int) *GaussianConditional {
	return bn.conditionals[i]
}

// Solve back-substitutes the conditionals in reverse elimination order. The solution is laid
// out in elimination order.
func (bn *BayesNet) Solve() (*VectorValues, error) {
	solution, err := NewVectorValues(bn.ordering, bn.dims)
	if err != nil {
		return nil, err
	}
	for i := len(bn.conditionals) - 1; i >= 0; i-- {
		c := bn.conditionals[i]
		x, err := c.Solve(solution)
		if err != nil {
			return nil, err
		}
		if err := solution.Set(c.frontal, x); err != nil {
			return nil, err
		}
	}
	return solution, nil
}
