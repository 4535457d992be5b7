package nonlinear

import (
	"math"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/factorgraph/linear"
)

const (
	defaultLambdaInitial        = 1e-5
	defaultLambdaIncreaseFactor = 10.
	defaultLambdaDecreaseFactor = 10.
	defaultLambdaUpperBound     = 1e5
	defaultLambdaLowerBound     = 0.
	defaultMaxIterations        = 100
	defaultAbsoluteErrorTol     = 1e-5
	defaultRelativeErrorTol     = 1e-5
	defaultErrorTol             = 0.
	defaultRankTolerance        = 1e-9
)

// LevenbergMarquardtParams configures the optimizer. The json names are the option names
// accepted by NewLevenbergMarquardtParamsFromAttributes.
type LevenbergMarquardtParams struct {
	// LambdaInitial is the damping of the first attempt.
	LambdaInitial float64 `json:"lambda_initial"`
	// LambdaIncreaseFactor multiplies λ after a rejected attempt.
	LambdaIncreaseFactor float64 `json:"lambda_increase_factor"`
	// LambdaDecreaseFactor divides λ after an accepted attempt.
	LambdaDecreaseFactor float64 `json:"lambda_decrease_factor"`
	// LambdaUpperBound ends the run once λ would exceed it.
	LambdaUpperBound float64 `json:"lambda_upper_bound"`
	// LambdaLowerBound is the smallest λ reached by decreasing.
	LambdaLowerBound float64 `json:"lambda_lower_bound"`

	MaxIterations    int     `json:"max_iterations"`
	AbsoluteErrorTol float64 `json:"absolute_error_tol"`
	RelativeErrorTol float64 `json:"relative_error_tol"`
	// ErrorTol stops the run once the error itself is at most this.
	ErrorTol float64 `json:"error_tol"`

	// RankTolerance is the smallest usable elimination pivot.
	RankTolerance float64                 `json:"rank_tolerance"`
	Elimination   linear.EliminationMethod `json:"elimination"`
	// DiagonalDamping scales damping by the Hessian diagonal.
	DiagonalDamping bool `json:"diagonal_damping"`
	// LinearizationWorkers bounds linearization parallelism; zero uses utils.ParallelFactor.
	LinearizationWorkers int `json:"linearization_workers"`
}

// NewLevenbergMarquardtParams returns the default parameters.
func NewLevenbergMarquardtParams() *LevenbergMarquardtParams {
	return &LevenbergMarquardtParams{
		LambdaInitial:        defaultLambdaInitial,
		LambdaIncreaseFactor: defaultLambdaIncreaseFactor,
		LambdaDecreaseFactor: defaultLambdaDecreaseFactor,
		LambdaUpperBound:     defaultLambdaUpperBound,
		LambdaLowerBound:     defaultLambdaLowerBound,
		MaxIterations:        defaultMaxIterations,
		AbsoluteErrorTol:     defaultAbsoluteErrorTol,
		RelativeErrorTol:     defaultRelativeErrorTol,
		ErrorTol:             defaultErrorTol,
		RankTolerance:        defaultRankTolerance,
		Elimination:          linear.QR,
	}
}

// NewLevenbergMarquardtParamsFromAttributes overlays attributes on the defaults and validates
// the result. Unknown options are errors.
func NewLevenbergMarquardtParamsFromAttributes(attributes map[string]interface{}) (*LevenbergMarquardtParams, error) {
	params := NewLevenbergMarquardtParams()
	if len(attributes) == 0 {
		return params, nil
	}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           params,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, &InvalidConfigurationError{Err: err}
	}
	var unused error
	for _, key := range md.Unused {
		unused = multierr.Append(unused, errors.Errorf("unknown option %q", key))
	}
	if unused != nil {
		return nil, &InvalidConfigurationError{Err: unused}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Validate reports every invalid option at once.
func (p *LevenbergMarquardtParams) Validate() error {
	var err error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			err = multierr.Append(err, errors.Errorf(format, args...))
		}
	}
	positiveFinite := func(v float64) bool { return v > 0 && !math.IsInf(v, 0) }
	nonNegative := func(v float64) bool { return v >= 0 && !math.IsInf(v, 0) }

	check(positiveFinite(p.LambdaInitial), "lambda_initial must be positive, got %v", p.LambdaInitial)
	check(p.LambdaIncreaseFactor > 1 && !math.IsInf(p.LambdaIncreaseFactor, 0),
		"lambda_increase_factor must be greater than 1, got %v", p.LambdaIncreaseFactor)
	check(p.LambdaDecreaseFactor > 1 && !math.IsInf(p.LambdaDecreaseFactor, 0),
		"lambda_decrease_factor must be greater than 1, got %v", p.LambdaDecreaseFactor)
	check(p.LambdaUpperBound >= p.LambdaInitial, "lambda_upper_bound %v must be at least lambda_initial %v",
		p.LambdaUpperBound, p.LambdaInitial)
	check(nonNegative(p.LambdaLowerBound) && p.LambdaLowerBound <= p.LambdaInitial,
		"lambda_lower_bound must be in [0, lambda_initial], got %v", p.LambdaLowerBound)
	check(p.MaxIterations > 0, "max_iterations must be positive, got %d", p.MaxIterations)
	check(nonNegative(p.AbsoluteErrorTol), "absolute_error_tol must be non-negative, got %v", p.AbsoluteErrorTol)
	check(nonNegative(p.RelativeErrorTol), "relative_error_tol must be non-negative, got %v", p.RelativeErrorTol)
	check(nonNegative(p.ErrorTol), "error_tol must be non-negative, got %v", p.ErrorTol)
	check(nonNegative(p.RankTolerance), "rank_tolerance must be non-negative, got %v", p.RankTolerance)
	check(p.LinearizationWorkers >= 0, "linearization_workers must be non-negative, got %d", p.LinearizationWorkers)
	if _, parseErr := linear.ParseEliminationMethod(string(p.Elimination)); parseErr != nil {
		err = multierr.Append(err, parseErr)
	}
	if err != nil {
		return &InvalidConfigurationError{Err: err}
	}
	return nil
}
