package nonlinear

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/linear"
	"go.viam.com/factorgraph/utils"
)

// FactorGraph is an ordered collection of factors whose summed error is the objective. Factors
// are immutable, so graphs may share them.
type FactorGraph struct {
	factors []Factor
}

// NewFactorGraph returns a graph holding factors.
func NewFactorGraph(factors ...Factor) *FactorGraph {
	return &FactorGraph{factors: append([]Factor(nil), factors...)}
}

// Add appends factors.
func (g *FactorGraph) Add(factors ...Factor) {
	g.factors = append(g.factors, factors...)
}

// Len is the number of factors.
func (g *FactorGraph) Len() int {
	return len(g.factors)
}

// At returns the i-th factor.
func (g *FactorGraph) At(i int) Factor {
	return g.factors[i]
}

// Factors returns the factors in order.
func (g *FactorGraph) Factors() []Factor {
	return append([]Factor(nil), g.factors...)
}

// Keys returns the sorted set of keys referenced by the factors.
func (g *FactorGraph) Keys() []inference.Key {
	var keys []inference.Key
	for _, f := range g.factors {
		keys = append(keys, f.Keys()...)
	}
	return inference.NaturalOrdering(keys)
}

// Error sums factor errors in factor order.
func (g *FactorGraph) Error(values *Values) (float64, error) {
	total := 0.
	for i, f := range g.factors {
		e, err := f.Error(values)
		if err != nil {
			return math.NaN(), errors.Wrapf(err, "factor %d", i)
		}
		total += e
	}
	return total, nil
}

// Linearize linearizes every factor at values, one goroutine group per available worker.
func (g *FactorGraph) Linearize(values *Values) (*linear.GaussianFactorGraph, error) {
	return g.LinearizeParallel(context.Background(), values, 0)
}

// LinearizeParallel linearizes every factor at values across at most workers goroutine groups;
// zero workers means utils.ParallelFactor. Results are placed in factor order and the error of
// the first failing factor is returned, so the output does not depend on scheduling.
func (g *FactorGraph) LinearizeParallel(ctx context.Context, values *Values, workers int) (*linear.GaussianFactorGraph, error) {
	jacobians := make([]*linear.JacobianFactor, len(g.factors))
	errs := make([]error, len(g.factors))
	groupErr := utils.GroupWorkParallelN(ctx, workers, len(g.factors), nil,
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			return func(memberNum, workNum int) {
				jacobians[workNum], errs[workNum] = g.factors[workNum].Linearize(values)
			}, nil
		})
	for i := range g.factors {
		if errs[i] != nil {
			return nil, errors.Wrapf(errs[i], "linearizing factor %d", i)
		}
		if jacobians[i] == nil {
			// a panic or cancellation left this slot empty.
			if groupErr == nil {
				groupErr = errors.New("no result")
			}
			return nil, errors.Wrapf(groupErr, "linearizing factor %d", i)
		}
	}
	return linear.NewGaussianFactorGraph(jacobians...), nil
}

// Equal compares factor by factor, in order.
func (g *FactorGraph) Equal(other *FactorGraph, tol float64) bool {
	return slices.EqualFunc(g.factors, other.factors, func(a, b Factor) bool {
		return a.Equal(b, tol)
	})
}

// String renders one table row per factor.
func (g *FactorGraph) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("FactorGraph with %d factors", len(g.factors)))
	t.AppendHeader(table.Row{"#", "Type", "Keys", "Dim"})
	for i, f := range g.factors {
		t.AppendRow(table.Row{i, fmt.Sprintf("%T", f), inference.KeysString(f.Keys()), f.Dim()})
	}
	return t.Render()
}

// ErrorSummary describes the distribution of factor errors at one assignment.
type ErrorSummary struct {
	Count  int
	Total  float64
	Mean   float64
	Median float64
	Max    float64
	StdDev float64
	// Worst is the index of the factor with the largest error.
	Worst int
}

// Summary computes per-factor error statistics at values.
func (g *FactorGraph) Summary(values *Values) (*ErrorSummary, error) {
	summary := &ErrorSummary{Count: len(g.factors), Worst: -1}
	if len(g.factors) == 0 {
		return summary, nil
	}
	perFactor := make(stats.Float64Data, len(g.factors))
	for i, f := range g.factors {
		e, err := f.Error(values)
		if err != nil {
			return nil, errors.Wrapf(err, "factor %d", i)
		}
		perFactor[i] = e
		if summary.Worst < 0 || e > perFactor[summary.Worst] {
			summary.Worst = i
		}
	}
	var err error
	if summary.Total, err = stats.Sum(perFactor); err != nil {
		return nil, err
	}
	if summary.Mean, err = stats.Mean(perFactor); err != nil {
		return nil, err
	}
	if summary.Median, err = stats.Median(perFactor); err != nil {
		return nil, err
	}
	if summary.Max, err = stats.Max(perFactor); err != nil {
		return nil, err
	}
	if summary.StdDev, err = stats.StandardDeviation(perFactor); err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *ErrorSummary) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Factors", "Total", "Mean", "Median", "Max", "StdDev", "Worst"})
	t.AppendRow(table.Row{s.Count, s.Total, s.Mean, s.Median, s.Max, s.StdDev, s.Worst})
	return t.Render()
}
