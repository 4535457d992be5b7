package cli

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/factorgraph/nonlinear"
)

// writeHistoryPlot saves the error after every accepted step of result on a log scale. The
// image format follows the extension of path.
func writeHistoryPlot(path, title string, result *nonlinear.Result) error {
	history := append([]float64{result.InitialError}, result.History...)
	// errors of exactly zero have no logarithm.
	floor := 1e-15 * math.Max(result.InitialError, 1)
	xys := make(plotter.XYs, len(history))
	for i, e := range history {
		xys[i].X = float64(i)
		xys[i].Y = math.Max(e, floor)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "accepted step"
	p.Y.Label.Text = "error"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return errors.Wrap(err, "plotting error history")
	}
	p.Add(line, points)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}
