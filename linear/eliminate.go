package linear

import (
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/factorgraph/inference"
)

// EliminationMethod selects how each variable is factored out.
type EliminationMethod string

const (
	// QR eliminates with a Householder QR of the stacked Jacobian.
	QR EliminationMethod = "qr"
	// Cholesky eliminates in information form with a Schur complement.
	Cholesky EliminationMethod = "cholesky"
)

// ParseEliminationMethod accepts "qr" or "cholesky", case-insensitively. The empty string is QR.
func ParseEliminationMethod(s string) (EliminationMethod, error) {
	switch EliminationMethod(strings.ToLower(s)) {
	case QR, "":
		return QR, nil
	case Cholesky:
		return Cholesky, nil
	}
	return "", errors.Errorf("unknown elimination method %q, expected %q or %q", s, QR, Cholesky)
}

type keyed interface {
	Keys() []inference.Key
}

// eliminateFunc factors frontal out of factors, whose other keys are exactly separator. It
// returns the conditional and, when any information about the separator remains, a reduced
// factor on it.
type eliminateFunc[F keyed] func(
	frontal inference.Key,
	separator []inference.Key,
	factors []F,
	dims map[inference.Key]int,
) (*GaussianConditional, F, bool, error)

// Eliminate validates ordering against the keys of graph and eliminates the variables in that
// order. A nil ordering is never valid for a non-empty graph.
func Eliminate(
	graph *GaussianFactorGraph,
	ordering inference.Ordering,
	method EliminationMethod,
	rankTol float64,
) (*BayesNet, error) {
	if err := ordering.Validate(graph.Keys()); err != nil {
		return nil, err
	}
	dims, err := graph.Dims()
	if err != nil {
		return nil, err
	}
	switch method {
	case QR, "":
		return eliminateSequential(graph.factors, ordering, dims, eliminateQR(rankTol))
	case Cholesky:
		hessians := make([]*hessianFactor, 0, len(graph.factors))
		for _, f := range graph.factors {
			hessians = append(hessians, newHessianFactor(f))
		}
		return eliminateSequential(hessians, ordering, dims, eliminateCholesky(rankTol))
	}
	return nil, errors.Errorf("unknown elimination method %q", method)
}

// Solve eliminates graph in ordering and back-substitutes.
func Solve(
	graph *GaussianFactorGraph,
	ordering inference.Ordering,
	method EliminationMethod,
	rankTol float64,
) (*VectorValues, error) {
	bn, err := Eliminate(graph, ordering, method, rankTol)
	if err != nil {
		return nil, err
	}
	return bn.Solve()
}

func eliminateSequential[F keyed](
	factors []F,
	ordering inference.Ordering,
	dims map[inference.Key]int,
	eliminate eliminateFunc[F],
) (*BayesNet, error) {
	pool := append([]F(nil), factors...)
	used := make([]bool, len(pool))
	index := make(map[inference.Key][]int)
	for i, f := range pool {
		for _, k := range f.Keys() {
			index[k] = append(index[k], i)
		}
	}
	positions := ordering.Positions()

	bn := &BayesNet{
		conditionals: make([]*GaussianConditional, 0, len(ordering)),
		ordering:     append(inference.Ordering(nil), ordering...),
		dims:         dims,
	}
	for _, frontal := range ordering {
		var gathered []F
		separatorSet := make(map[inference.Key]struct{})
		for _, fi := range index[frontal] {
			if used[fi] {
				continue
			}
			used[fi] = true
			gathered = append(gathered, pool[fi])
			for _, k := range pool[fi].Keys() {
				if k != frontal {
					separatorSet[k] = struct{}{}
				}
			}
		}
		delete(index, frontal)
		if len(gathered) == 0 {
			// everything touching frontal was absorbed by earlier variables.
			return nil, NewDegenerateSystemError(frontal, 0)
		}

		separator := make([]inference.Key, 0, len(separatorSet))
		for k := range separatorSet {
			separator = append(separator, k)
		}
		slices.SortFunc(separator, func(a, b inference.Key) int {
			return positions[a] - positions[b]
		})

		conditional, reduced, ok, err := eliminate(frontal, separator, gathered, dims)
		if err != nil {
			return nil, err
		}
		bn.conditionals = append(bn.conditionals, conditional)
		if ok {
			pool = append(pool, reduced)
			used = append(used, false)
			for _, k := range separator {
				index[k] = append(index[k], len(pool)-1)
			}
		}
	}
	return bn, nil
}

// degeneratePivot reports whether a triangular pivot is too small to divide by.
func degeneratePivot(pivot, rankTol float64) bool {
	abs := math.Abs(pivot)
	return math.IsNaN(pivot) || abs == 0 || abs < rankTol
}

// blockLayout assigns column offsets to frontal followed by separator.
func blockLayout(frontal inference.Key, separator []inference.Key, dims map[inference.Key]int) (map[inference.Key]int, int) {
	offsets := make(map[inference.Key]int, len(separator)+1)
	offsets[frontal] = 0
	n := dims[frontal]
	for _, k := range separator {
		offsets[k] = n
		n += dims[k]
	}
	return offsets, n
}
