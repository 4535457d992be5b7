package linear

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/factorgraph/inference"
)

// minDiagonalDamping keeps Marquardt damping positive for variables with an empty Hessian
// diagonal.
const minDiagonalDamping = 1e-6

// GaussianFactorGraph is an ordered collection of linear factors.
type GaussianFactorGraph struct {
	factors []*JacobianFactor
}

// NewGaussianFactorGraph returns a graph holding factors.
func NewGaussianFactorGraph(factors ...*JacobianFactor) *GaussianFactorGraph {
	return &GaussianFactorGraph{factors: append([]*JacobianFactor(nil), factors...)}
}

// Add appends factors.
func (g *GaussianFactorGraph) Add(factors ...*JacobianFactor) {
	g.factors = append(g.factors, factors...)
}

// Len is the number of factors.
func (g *GaussianFactorGraph) Len() int {
	return len(g.factors)
}

// At returns the i-th factor.
func (g *GaussianFactorGraph) At(i int) *JacobianFactor {
	return g.factors[i]
}

// Factors returns the factors in order.
func (g *GaussianFactorGraph) Factors() []*JacobianFactor {
	return append([]*JacobianFactor(nil), g.factors...)
}

// Keys returns the sorted set of keys referenced by any factor.
func (g *GaussianFactorGraph) Keys() []inference.Key {
	var keys []inference.Key
	for _, f := range g.factors {
		keys = append(keys, f.keys...)
	}
	return inference.NaturalOrdering(keys)
}

// Dims returns the column count of every key. Factors must agree on it.
func (g *GaussianFactorGraph) Dims() (map[inference.Key]int, error) {
	dims := make(map[inference.Key]int)
	for fi, f := range g.factors {
		for i, k := range f.keys {
			_, d := f.blocks[i].Dims()
			if known, ok := dims[k]; ok && known != d {
				return nil, errors.Errorf("factor %d gives key %s dimension %d, earlier factors gave %d", fi, k, d, known)
			}
			dims[k] = d
		}
	}
	return dims, nil
}

// Error is the sum of factor errors at delta.
func (g *GaussianFactorGraph) Error(delta *VectorValues) float64 {
	total := 0.
	for _, f := range g.factors {
		total += f.Error(delta)
	}
	return total
}

// Damped returns a graph with one extra prior per key pulling its delta towards zero. The prior on
// key k has block √λ·I, or √(λ·diag(AᵀA)) restricted to k when diagonal is set.
func (g *GaussianFactorGraph) Damped(lambda float64, diagonal bool) (*GaussianFactorGraph, error) {
	dims, err := g.Dims()
	if err != nil {
		return nil, err
	}
	damped := &GaussianFactorGraph{factors: make([]*JacobianFactor, 0, len(g.factors)+len(dims))}
	damped.factors = append(damped.factors, g.factors...)
	if lambda <= 0 {
		return damped, nil
	}

	var hessianDiag map[inference.Key][]float64
	if diagonal {
		hessianDiag = g.hessianDiagonal(dims)
	}
	for _, k := range g.Keys() {
		d := dims[k]
		block := mat.NewDense(d, d, nil)
		for i := 0; i < d; i++ {
			scale := 1.
			if diagonal {
				scale = math.Max(hessianDiag[k][i], minDiagonalDamping)
			}
			block.Set(i, i, math.Sqrt(lambda*scale))
		}
		prior, err := NewJacobianFactor([]inference.Key{k}, []*mat.Dense{block}, mat.NewVecDense(d, nil))
		if err != nil {
			return nil, err
		}
		damped.factors = append(damped.factors, prior)
	}
	return damped, nil
}

func (g *GaussianFactorGraph) hessianDiagonal(dims map[inference.Key]int) map[inference.Key][]float64 {
	diag := make(map[inference.Key][]float64, len(dims))
	for k, d := range dims {
		diag[k] = make([]float64, d)
	}
	for _, f := range g.factors {
		for i, k := range f.keys {
			block := f.blocks[i]
			rows, cols := block.Dims()
			for c := 0; c < cols; c++ {
				for r := 0; r < rows; r++ {
					v := block.At(r, c)
					diag[k][c] += v * v
				}
			}
		}
	}
	return diag
}

// Dense stacks the graph into one matrix A and vector b with columns laid out in ordering.
func (g *GaussianFactorGraph) Dense(ordering inference.Ordering) (*mat.Dense, *mat.VecDense, error) {
	if err := ordering.Validate(g.Keys()); err != nil {
		return nil, nil, err
	}
	dims, err := g.Dims()
	if err != nil {
		return nil, nil, err
	}
	offsets := make(map[inference.Key]int, len(ordering))
	cols := 0
	for _, k := range ordering {
		offsets[k] = cols
		cols += dims[k]
	}
	rows := 0
	for _, f := range g.factors {
		rows += f.Rows()
	}
	if rows == 0 || cols == 0 {
		return nil, nil, errors.New("cannot densify an empty system")
	}
	a := mat.NewDense(rows, cols, nil)
	b := mat.NewVecDense(rows, nil)
	row := 0
	for _, f := range g.factors {
		for i, k := range f.keys {
			r, c := f.blocks[i].Dims()
			a.Slice(row, row+r, offsets[k], offsets[k]+c).(*mat.Dense).Copy(f.blocks[i])
		}
		for i := 0; i < f.Rows(); i++ {
			b.SetVec(row+i, f.b.AtVec(i))
		}
		row += f.Rows()
	}
	return a, b, nil
}
