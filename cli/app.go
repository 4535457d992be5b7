// Package cli contains the fgopt command line application, which builds synthetic estimation
// problems and optimizes them.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/factorgraph/scenarios"
)

const (
	generalFlagDebug  = "debug"
	generalFlagParams = "params"

	flagCamera = "camera"
	flagSeed   = "seed"
	flagTrials = "trials"
	flagPlot   = "plot"

	sfmFlagNoise            = "noise"
	sfmFlagUnitCalibration  = "unit-calibration"
	sfmFlagPerturbFirstOnly = "perturb-first-only"
	sfmFlagFixCameras       = "fix-cameras"
	sfmFlagFixLandmarks     = "fix-landmarks"
	sfmFlagRange            = "range"
	sfmFlagRangeSigma       = "range-sigma"
	sfmFlagSummary          = "summary"
)

var app = &cli.App{
	Name:            "fgopt",
	Usage:           "optimize synthetic factor graph problems",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    generalFlagParams,
			Aliases: []string{"p"},
			Usage:   "load Levenberg-Marquardt options from the JSON5 `FILE`",
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "sfm",
			Usage:     "bundle adjust two cameras observing twelve landmarks",
			UsageText: "fgopt sfm [--camera MODEL] [--seed N] [--noise SIGMA] [other options]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagCamera,
					Value: string(scenarios.GeneralCamera),
					Usage: fmt.Sprintf("camera model, one of %v", scenarios.CameraModels),
				},
				&cli.Uint64Flag{
					Name:  flagSeed,
					Value: 1,
					Usage: "seed of the initial landmark perturbation; trial i uses seed+i",
				},
				&cli.Float64Flag{
					Name:  sfmFlagNoise,
					Value: 0.1 * scenarios.Baseline,
					Usage: "standard deviation of the initial landmark perturbation",
				},
				&cli.BoolFlag{
					Name:  sfmFlagUnitCalibration,
					Usage: "use unit focal lengths and a zero principal point",
				},
				&cli.BoolFlag{
					Name:  sfmFlagPerturbFirstOnly,
					Usage: "perturb only the first landmark",
				},
				&cli.BoolFlag{
					Name:  sfmFlagFixCameras,
					Usage: "hold every camera with a hard constraint",
				},
				&cli.BoolFlag{
					Name:  sfmFlagFixLandmarks,
					Usage: "hold every landmark with a hard constraint",
				},
				&cli.Float64Flag{
					Name:  sfmFlagRange,
					Usage: "soft range between the two cameras, zero for none",
				},
				&cli.Float64Flag{
					Name:  sfmFlagRangeSigma,
					Value: 10,
					Usage: "standard deviation of the soft range",
				},
				&cli.IntFlag{
					Name:  flagTrials,
					Value: 1,
					Usage: "number of independently seeded trials to run in parallel",
				},
				&cli.PathFlag{
					Name:  flagPlot,
					Usage: "write the error history of the first trial as a PNG to `FILE`",
				},
				&cli.BoolFlag{
					Name:  sfmFlagSummary,
					Usage: "print per factor error statistics of the first trial",
				},
			},
			Action: SFMAction,
		},
		{
			Name:      "range",
			Usage:     "settle a pose between a 2 m range to a camera and a 1 m prior",
			UsageText: "fgopt range [--camera general|calibrated]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagCamera,
					Value: string(scenarios.GeneralCamera),
					Usage: "camera model, general (pinned) or calibrated (soft prior)",
				},
				&cli.PathFlag{
					Name:  flagPlot,
					Usage: "write the error history as a PNG to `FILE`",
				},
			},
			Action: RangeAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
