package nonlinear

import (
	"context"
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"go.viam.com/factorgraph/inference"
	"go.viam.com/factorgraph/linear"
	"go.viam.com/factorgraph/logging"
	"go.viam.com/factorgraph/utils"
)

// State is the phase of an optimizer run.
type State int

const (
	// Initialized means no iteration has run yet.
	Initialized State = iota
	// Iterating means at least one iteration has started and none of the stopping rules hold.
	Iterating
	// Converged means a convergence rule stopped the run.
	Converged
	// Failed means the run stopped without converging.
	Failed
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TerminationReason says which rule ended a run.
type TerminationReason int

const (
	// NotTerminated is the reason of a run still in progress.
	NotTerminated TerminationReason = iota
	// EmptyProblem means there was nothing to optimize.
	EmptyProblem
	// ErrorBelowTolerance means the error reached error_tol.
	ErrorBelowTolerance
	// AbsoluteDecrease means the last accepted step decreased the error by at most absolute_error_tol.
	AbsoluteDecrease
	// RelativeDecrease means the last accepted step decreased the error by at most relative_error_tol.
	RelativeDecrease
	// Stagnated means a rejected step changed the error by at most absolute_error_tol.
	Stagnated
	// MaxIterations means max_iterations accepted steps ran without converging.
	MaxIterations
	// DampingExhausted means λ exceeded lambda_upper_bound before a step was accepted.
	DampingExhausted
	// Aborted means a structural error stopped the run.
	Aborted
)

func (r TerminationReason) String() string {
	switch r {
	case NotTerminated:
		return "not terminated"
	case EmptyProblem:
		return "empty problem"
	case ErrorBelowTolerance:
		return "error below tolerance"
	case AbsoluteDecrease:
		return "absolute decrease below tolerance"
	case RelativeDecrease:
		return "relative decrease below tolerance"
	case Stagnated:
		return "stagnated"
	case MaxIterations:
		return "maximum iterations reached"
	case DampingExhausted:
		return "damping exhausted"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("TerminationReason(%d)", int(r))
}

// LevenbergMarquardtOptimizer minimizes the error of a factor graph with damped Gauss-Newton
// steps. Each Iterate linearizes once and retries the damped solve with growing λ until a step
// lowers the error or a stopping rule holds.
type LevenbergMarquardtOptimizer struct {
	graph    *FactorGraph
	ordering inference.Ordering
	params   LevenbergMarquardtParams
	method   linear.EliminationMethod
	logger   logging.Logger

	values       *Values
	currentError float64
	initialError float64
	lambda       float64
	iterations   int
	state        State
	reason       TerminationReason
	// lastRejection is why the latest attempt was rejected, if it was.
	lastRejection error
	history       []float64
}

// NewLevenbergMarquardtOptimizer validates its inputs and evaluates the initial error. A nil
// ordering eliminates in key order, nil params uses the defaults and a nil logger uses the
// global logger.
func NewLevenbergMarquardtOptimizer(
	graph *FactorGraph,
	initial *Values,
	ordering inference.Ordering,
	params *LevenbergMarquardtParams,
	logger logging.Logger,
) (*LevenbergMarquardtOptimizer, error) {
	if params == nil {
		params = NewLevenbergMarquardtParams()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	method, err := linear.ParseEliminationMethod(string(params.Elimination))
	if err != nil {
		return nil, &InvalidConfigurationError{Err: err}
	}
	if logger == nil {
		logger = logging.Global().Sublogger("lm")
	}
	if ordering == nil {
		ordering = inference.NaturalOrdering(graph.Keys())
	}
	if err := ordering.Validate(graph.Keys()); err != nil {
		return nil, err
	}
	for _, k := range ordering {
		if !initial.Has(k) {
			return nil, NewMissingVariableError(k)
		}
	}

	o := &LevenbergMarquardtOptimizer{
		graph:    graph,
		ordering: append(inference.Ordering(nil), ordering...),
		params:   *params,
		method:   method,
		logger:   logger,
		values:   initial,
		lambda:   params.LambdaInitial,
		state:    Initialized,
	}
	o.currentError, err = graph.Error(initial)
	if err != nil {
		return nil, &IterationError{Iteration: 0, CurrentError: math.NaN(), Err: err}
	}
	o.initialError = o.currentError

	dim := 0
	for _, k := range ordering {
		value, _ := initial.Get(k)
		dim += value.Dim()
	}
	switch {
	case graph.Len() == 0 || dim == 0:
		o.finish(Converged, EmptyProblem)
	case o.currentError <= o.params.ErrorTol:
		o.finish(Converged, ErrorBelowTolerance)
	}
	return o, nil
}

// Iterate runs one outer iteration. It returns an error only for structural failures, which
// also end the run. Calling Iterate after the run ended does nothing.
func (o *LevenbergMarquardtOptimizer) Iterate() error {
	if o.Done() {
		return nil
	}
	o.state = Iterating

	linearized, err := o.graph.LinearizeParallel(context.Background(), o.values, o.params.LinearizationWorkers)
	if err != nil {
		return o.abort(err)
	}
	previousError := o.currentError
	for {
		accepted, err := o.step(linearized)
		if err != nil {
			return o.abort(err)
		}
		if accepted {
			break
		}
		if o.Done() {
			return nil
		}
	}

	o.iterations++
	o.history = append(o.history, o.currentError)
	decrease := previousError - o.currentError
	switch {
	case o.currentError <= o.params.ErrorTol:
		o.finish(Converged, ErrorBelowTolerance)
	case decrease <= o.params.AbsoluteErrorTol:
		o.finish(Converged, AbsoluteDecrease)
	case previousError > 0 && decrease/previousError <= o.params.RelativeErrorTol:
		o.finish(Converged, RelativeDecrease)
	case o.iterations >= o.params.MaxIterations:
		o.finish(Failed, MaxIterations)
	}
	return nil
}

// step makes one damped attempt from the current values. On acceptance it adopts the candidate
// and lowers λ; on rejection only λ and the run state change.
func (o *LevenbergMarquardtOptimizer) step(linearized *linear.GaussianFactorGraph) (bool, error) {
	damped, err := linearized.Damped(o.lambda, o.params.DiagonalDamping)
	if err != nil {
		return false, err
	}

	candidateError := math.NaN()
	var candidate *Values
	var rejection error
	delta, solveErr := linear.Solve(damped, o.ordering, o.method, o.params.RankTolerance)
	if solveErr != nil {
		var degenerate *linear.DegenerateSystemError
		if !errors.As(solveErr, &degenerate) {
			return false, solveErr
		}
		rejection = solveErr
	} else {
		candidate, err = o.values.Retract(delta)
		if err != nil {
			return false, err
		}
		candidateError, err = o.graph.Error(candidate)
		if err != nil {
			if isStructural(err) {
				return false, err
			}
			rejection = err
			candidateError = math.NaN()
		}
	}

	accepted := rejection == nil && utils.IsFinite(candidateError) && candidateError < o.currentError
	o.logger.Debugw("levenberg-marquardt attempt",
		"iteration", o.iterations+1,
		"lambda", o.lambda,
		"current_error", o.currentError,
		"candidate_error", candidateError,
		"accepted", accepted)

	if accepted {
		o.values = candidate
		o.currentError = candidateError
		o.lastRejection = nil
		o.lambda = math.Max(o.lambda/o.params.LambdaDecreaseFactor, o.params.LambdaLowerBound)
		return true, nil
	}

	if rejection == nil && !utils.IsFinite(candidateError) {
		rejection = errors.Errorf("candidate error is %v", candidateError)
	}
	o.lastRejection = rejection
	if rejection == nil && math.Abs(candidateError-o.currentError) <= o.params.AbsoluteErrorTol {
		o.finish(Converged, Stagnated)
		return false, nil
	}
	o.lambda *= o.params.LambdaIncreaseFactor
	if o.lambda > o.params.LambdaUpperBound {
		o.finish(Failed, DampingExhausted)
	}
	return false, nil
}

// isStructural reports whether err means the problem itself is malformed, as opposed to a
// candidate that cannot be evaluated numerically.
func isStructural(err error) bool {
	var missing *MissingVariableError
	var valueType *ValueTypeError
	var dimension *DimensionMismatchError
	var ordering *inference.OrderingMismatchError
	return errors.As(err, &missing) || errors.As(err, &valueType) ||
		errors.As(err, &dimension) || errors.As(err, &ordering)
}

func (o *LevenbergMarquardtOptimizer) abort(err error) error {
	o.finish(Failed, Aborted)
	return &IterationError{Iteration: o.iterations + 1, CurrentError: o.currentError, Err: err}
}

func (o *LevenbergMarquardtOptimizer) finish(state State, reason TerminationReason) {
	o.state = state
	o.reason = reason
	keysAndValues := []interface{}{
		"state", state.String(),
		"reason", reason.String(),
		"iterations", o.iterations,
		"initial_error", o.initialError,
		"error", o.currentError,
		"lambda", o.lambda,
	}
	if o.lastRejection != nil && state == Failed {
		keysAndValues = append(keysAndValues, "last_rejection", o.lastRejection.Error())
	}
	o.logger.Infow("levenberg-marquardt finished", keysAndValues...)
}

// Done reports whether the run has ended.
func (o *LevenbergMarquardtOptimizer) Done() bool {
	return o.state == Converged || o.state == Failed
}

// State returns the run state.
func (o *LevenbergMarquardtOptimizer) State() State {
	return o.state
}

// Reason returns why the run ended, or NotTerminated.
func (o *LevenbergMarquardtOptimizer) Reason() TerminationReason {
	return o.reason
}

// Values returns the best values found so far.
func (o *LevenbergMarquardtOptimizer) Values() *Values {
	return o.values
}

// Error returns the error of Values.
func (o *LevenbergMarquardtOptimizer) Error() float64 {
	return o.currentError
}

// Lambda returns the damping of the next attempt.
func (o *LevenbergMarquardtOptimizer) Lambda() float64 {
	return o.lambda
}

// Iterations returns the number of accepted steps.
func (o *LevenbergMarquardtOptimizer) Iterations() int {
	return o.iterations
}

// Result summarizes the run so far.
func (o *LevenbergMarquardtOptimizer) Result() *Result {
	return &Result{
		Values:        o.values,
		Error:         o.currentError,
		InitialError:  o.initialError,
		Iterations:    o.iterations,
		Lambda:        o.lambda,
		State:         o.state,
		Reason:        o.reason,
		History:       append([]float64(nil), o.history...),
		LastRejection: o.lastRejection,
	}
}

// Result is the outcome of an optimizer run. Non-convergence is reported by State and Reason,
// with the best values found.
type Result struct {
	Values       *Values
	Error        float64
	InitialError float64
	Iterations   int
	Lambda       float64
	State        State
	Reason       TerminationReason
	// History holds the error after each accepted step.
	History []float64
	// LastRejection is why the final attempt was rejected, if it was.
	LastRejection error
}

func (r *Result) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"State", "Reason", "Iterations", "Initial Error", "Final Error", "Lambda"})
	t.AppendRow(table.Row{r.State, r.Reason, r.Iterations, r.InitialError, r.Error, r.Lambda})
	return t.Render()
}

// Optimize runs Levenberg-Marquardt on graph from initial until a stopping rule holds.
// Structural problems are returned as errors; non-convergence is not an error.
func Optimize(
	graph *FactorGraph,
	initial *Values,
	ordering inference.Ordering,
	params *LevenbergMarquardtParams,
	logger logging.Logger,
) (*Result, error) {
	optimizer, err := NewLevenbergMarquardtOptimizer(graph, initial, ordering, params, logger)
	if err != nil {
		return nil, err
	}
	for !optimizer.Done() {
		if err := optimizer.Iterate(); err != nil {
			return nil, err
		}
	}
	return optimizer.Result(), nil
}
