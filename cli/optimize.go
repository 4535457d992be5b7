package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"go.uber.org/zap/zapcore"

	"go.viam.com/factorgraph/logging"
	"go.viam.com/factorgraph/nonlinear"
	"go.viam.com/factorgraph/spatialmath"
	"go.viam.com/factorgraph/scenarios"
	"go.viam.com/factorgraph/utils"
)

// loadParams reads optimizer options from a JSON5 object. An empty path gives the defaults.
func loadParams(path string) (*nonlinear.LevenbergMarquardtParams, error) {
	if path == "" {
		return nonlinear.NewLevenbergMarquardtParams(), nil
	}
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading optimizer params")
	}
	var raw interface{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	attributes, err := utils.AssertType[map[string]interface{}](raw)
	if err != nil {
		return nil, errors.Wrapf(err, "%s must hold an object of options", path)
	}
	return nonlinear.NewLevenbergMarquardtParamsFromAttributes(attributes)
}

// newLogger logs warnings, or everything with --debug, to the error writer of the app. It
// also becomes the global logger.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("fgopt")
	errWriter := c.App.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	logger.AddAppender(logging.NewWriterAppender(zapcore.AddSync(errWriter)))
	if !c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.WARN)
	}
	logging.ReplaceGlobal(logger)
	return logger
}

// SFMAction builds and optimizes the two camera scene once per trial.
func SFMAction(c *cli.Context) error {
	params, err := loadParams(c.Path(generalFlagParams))
	if err != nil {
		return err
	}
	model, err := scenarios.ParseCameraModel(c.String(flagCamera))
	if err != nil {
		return err
	}
	trials := c.Int(flagTrials)
	if trials < 1 {
		return errors.Errorf("--%s must be at least 1, got %d", flagTrials, trials)
	}
	k := scenarios.VariableCalibration
	if c.Bool(sfmFlagUnitCalibration) {
		k = spatialmath.DefaultCal3S2
	}

	seed := c.Uint64(flagSeed)
	problems := make([]*scenarios.Problem, trials)
	for i := range problems {
		scenario := scenarios.NewSFMScenario(model, k)
		scenario.Seed = seed + uint64(i)
		scenario.LandmarkNoise = c.Float64(sfmFlagNoise)
		scenario.PerturbFirstOnly = c.Bool(sfmFlagPerturbFirstOnly)
		scenario.FixCameras = c.Bool(sfmFlagFixCameras)
		scenario.FixLandmarks = c.Bool(sfmFlagFixLandmarks)
		scenario.Range = c.Float64(sfmFlagRange)
		scenario.RangeSigma = c.Float64(sfmFlagRangeSigma)
		problems[i], err = scenario.Build()
		if err != nil {
			return errors.Wrapf(err, "building trial %d", i)
		}
	}

	logger := newLogger(c)
	results := make([]*nonlinear.Result, trials)
	work := make([]utils.SimpleFunc, trials)
	for i := range work {
		work[i] = func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := problems[i].Optimize(params, logger.Sublogger(fmt.Sprintf("trial%d", i)))
			if err != nil {
				return errors.Wrapf(err, "trial %d", i)
			}
			results[i] = result
			return nil
		}
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	elapsed, err := utils.RunInParallel(ctx, work)
	if err != nil {
		return err
	}

	rendered, err := trialTable(seed, results, elapsed)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", rendered)

	if c.Bool(sfmFlagSummary) {
		summary, err := problems[0].Graph.Summary(results[0].Values)
		if err != nil {
			return err
		}
		printf(c.App.Writer, "%s", summary)
	}
	if path := c.Path(flagPlot); path != "" {
		title := fmt.Sprintf("%s cameras, seed %d", model, seed)
		if err := writeHistoryPlot(path, title, results[0]); err != nil {
			return err
		}
		printf(c.App.Writer, "wrote error history to %s", path)
	}
	return nil
}

func trialTable(seed uint64, results []*nonlinear.Result, elapsed time.Duration) (string, error) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Trial", "Seed", "State", "Reason", "Iterations", "Initial Error", "Final Error", "Lambda"})
	finalErrors := make(stats.Float64Data, 0, len(results))
	for i, r := range results {
		t.AppendRow(table.Row{i, seed + uint64(i), r.State, r.Reason, r.Iterations, r.InitialError, r.Error, r.Lambda})
		finalErrors = append(finalErrors, r.Error)
	}
	median, err := finalErrors.Median()
	if err != nil {
		return "", err
	}
	t.AppendFooter(table.Row{"", "", "", "", elapsed.Round(time.Millisecond), "median", median, ""})
	return t.Render(), nil
}

// RangeAction optimizes the camera to pose range problem and prints the settled variables.
func RangeAction(c *cli.Context) error {
	params, err := loadParams(c.Path(generalFlagParams))
	if err != nil {
		return err
	}
	model, err := scenarios.ParseCameraModel(c.String(flagCamera))
	if err != nil {
		return err
	}
	problem, err := scenarios.RangeProblem(model)
	if err != nil {
		return err
	}
	result, err := problem.Optimize(params, newLogger(c))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", result)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Key", "Value", "Position"})
	for _, key := range result.Values.Keys() {
		value, _ := result.Values.Get(key)
		position := ""
		if positioned, ok := value.(spatialmath.Positioned); ok {
			p := positioned.Position()
			position = fmt.Sprintf("(%.6f, %.6f, %.6f)", p.X, p.Y, p.Z)
		}
		t.AppendRow(table.Row{key, value, position})
	}
	printf(c.App.Writer, "%s", t.Render())

	if path := c.Path(flagPlot); path != "" {
		if err := writeHistoryPlot(path, fmt.Sprintf("%s camera range", model), result); err != nil {
			return err
		}
		printf(c.App.Writer, "wrote error history to %s", path)
	}
	return nil
}
