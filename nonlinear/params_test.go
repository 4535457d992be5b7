package nonlinear

import (
	"errors"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"go.viam.com/factorgraph/linear"
)

func TestDefaultParams(t *testing.T) {
	params := NewLevenbergMarquardtParams()
	test.That(t, params.Validate(), test.ShouldBeNil)
	test.That(t, params.LambdaInitial, test.ShouldEqual, 1e-5)
	test.That(t, params.LambdaIncreaseFactor, test.ShouldEqual, 10.)
	test.That(t, params.LambdaDecreaseFactor, test.ShouldEqual, 10.)
	test.That(t, params.LambdaUpperBound, test.ShouldEqual, 1e5)
	test.That(t, params.MaxIterations, test.ShouldEqual, 100)
	test.That(t, params.Elimination, test.ShouldEqual, linear.QR)
	test.That(t, params.DiagonalDamping, test.ShouldBeFalse)
}

func TestParamsFromAttributes(t *testing.T) {
	params, err := NewLevenbergMarquardtParamsFromAttributes(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params, test.ShouldResemble, NewLevenbergMarquardtParams())

	params, err = NewLevenbergMarquardtParamsFromAttributes(map[string]interface{}{
		"lambda_initial":        1e-3,
		"max_iterations":        "25",
		"elimination":           "cholesky",
		"diagonal_damping":      true,
		"linearization_workers": 4,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.LambdaInitial, test.ShouldEqual, 1e-3)
	test.That(t, params.MaxIterations, test.ShouldEqual, 25)
	test.That(t, params.Elimination, test.ShouldEqual, linear.Cholesky)
	test.That(t, params.DiagonalDamping, test.ShouldBeTrue)
	test.That(t, params.LinearizationWorkers, test.ShouldEqual, 4)
	// untouched options keep their defaults.
	test.That(t, params.RelativeErrorTol, test.ShouldEqual, 1e-5)
}

func TestParamsFromAttributesUnknownOptions(t *testing.T) {
	_, err := NewLevenbergMarquardtParamsFromAttributes(map[string]interface{}{
		"lambda_initial": 1e-3,
		"lamda_factor":   2,
		"verbose":        true,
	})
	var configErr *InvalidConfigurationError
	test.That(t, errors.As(err, &configErr), test.ShouldBeTrue)
	test.That(t, len(multierr.Errors(configErr.Err)), test.ShouldEqual, 2)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown option "lamda_factor"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown option "verbose"`)
}

func TestParamsFromAttributesBadType(t *testing.T) {
	_, err := NewLevenbergMarquardtParamsFromAttributes(map[string]interface{}{
		"max_iterations": map[string]int{"n": 1},
	})
	var configErr *InvalidConfigurationError
	test.That(t, errors.As(err, &configErr), test.ShouldBeTrue)
}

func TestParamsValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		modify  func(p *LevenbergMarquardtParams)
		message string
	}{
		{"lambda initial", func(p *LevenbergMarquardtParams) { p.LambdaInitial = 0 }, "lambda_initial"},
		{"increase factor", func(p *LevenbergMarquardtParams) { p.LambdaIncreaseFactor = 1 }, "lambda_increase_factor"},
		{"decrease factor", func(p *LevenbergMarquardtParams) { p.LambdaDecreaseFactor = 0.5 }, "lambda_decrease_factor"},
		{"upper bound", func(p *LevenbergMarquardtParams) { p.LambdaUpperBound = 1e-6 }, "lambda_upper_bound"},
		{"lower bound", func(p *LevenbergMarquardtParams) { p.LambdaLowerBound = 1 }, "lambda_lower_bound"},
		{"iterations", func(p *LevenbergMarquardtParams) { p.MaxIterations = 0 }, "max_iterations"},
		{"absolute", func(p *LevenbergMarquardtParams) { p.AbsoluteErrorTol = -1 }, "absolute_error_tol"},
		{"relative", func(p *LevenbergMarquardtParams) { p.RelativeErrorTol = -1 }, "relative_error_tol"},
		{"error", func(p *LevenbergMarquardtParams) { p.ErrorTol = -1 }, "error_tol"},
		{"rank", func(p *LevenbergMarquardtParams) { p.RankTolerance = -1 }, "rank_tolerance"},
		{"workers", func(p *LevenbergMarquardtParams) { p.LinearizationWorkers = -1 }, "linearization_workers"},
		{"elimination", func(p *LevenbergMarquardtParams) { p.Elimination = "lu" }, "lu"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			params := NewLevenbergMarquardtParams()
			tc.modify(params)
			err := params.Validate()
			var configErr *InvalidConfigurationError
			test.That(t, errors.As(err, &configErr), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.message)
		})
	}

	params := NewLevenbergMarquardtParams()
	params.MaxIterations = -1
	params.LambdaInitial = -1
	var configErr *InvalidConfigurationError
	test.That(t, errors.As(params.Validate(), &configErr), test.ShouldBeTrue)
	// every problem is reported; lambda_lower_bound also fails against the negative initial.
	test.That(t, len(multierr.Errors(configErr.Err)), test.ShouldBeGreaterThanOrEqualTo, 2)
}
