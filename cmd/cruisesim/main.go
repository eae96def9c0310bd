// Package main runs a cruise control simulation from a preset or a YAML
// configuration and writes the record, a chart and optionally replays it on
// a CAN bus.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/erh/cruisesim"
	"github.com/erh/cruisesim/canbus"
	"github.com/erh/cruisesim/render"
	"github.com/erh/cruisesim/tune"
)

// Arguments are the command line flags.
type Arguments struct {
	Config string `flag:"config,usage=YAML run configuration, replaces the preset and speed flags"`
	Preset string `flag:"preset,default=city_car,usage=vehicle preset"`
	RefKmh int    `flag:"ref,default=90,usage=reference speed in km/h"`
	V0Kmh  int    `flag:"v0,default=0,usage=initial speed in km/h"`
	Time   int    `flag:"time,default=120,usage=simulated horizon in seconds"`

	JSON     string `flag:"json,usage=write the record as JSON"`
	CSV      string `flag:"csv,usage=write the record as CSV"`
	PNG      string `flag:"png,usage=write a chart of speed and forces"`
	Previous string `flag:"previous,usage=trace file overlaid on the chart, then replaced by this run"`

	Tune       bool `flag:"tune,usage=search kp and ti before the run"`
	TunePoints int  `flag:"tune-points,default=5,usage=grid points per gain"`

	CAN     string `flag:"can,usage=SocketCAN interface to replay the run on"`
	Speedup int    `flag:"speedup,default=1,usage=CAN replay speedup, 0 sends frames back to back"`
}

func main() {
	utils.ContextualMain(mainWithArgs, golog.NewDevelopmentLogger("cruisesim"))
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	cfg, color, err := runConfig(argsParsed)
	if err != nil {
		return err
	}

	if argsParsed.Tune {
		if cfg, err = tuneGains(ctx, cfg, argsParsed.TunePoints, logger); err != nil {
			return err
		}
	}

	sim, err := cruisesim.NewSimulator(cfg, logger)
	if err != nil {
		return err
	}
	rec := sim.Run()

	m := cruisesim.Analyze(&rec)
	logger.Infow("run complete",
		"law", sim.Config().Controller.Law,
		"samples", rec.Len(),
		"final_kmh", cruisesim.MsToKmh(rec.Velocity[rec.Len()-1]),
		"overshoot_pct", m.OvershootPct,
		"rise_time", m.RiseTime,
		"settling_time", m.SettlingTime,
		"steady_state_error", m.SteadyStateError,
		"itae", m.ITAE,
	)

	if argsParsed.JSON != "" {
		if err := writeJSON(argsParsed.JSON, rec); err != nil {
			return err
		}
	}
	if argsParsed.CSV != "" {
		if err := writeCSV(argsParsed.CSV, &rec); err != nil {
			return err
		}
	}

	var previous *cruisesim.Trace
	if argsParsed.Previous != "" {
		previous, err = readTrace(argsParsed.Previous)
		if err != nil {
			return err
		}
	}
	if argsParsed.PNG != "" {
		opts := render.Options{Title: cfg.Vehicle.Name, Color: color, Previous: previous}
		if err := render.WriteFile(argsParsed.PNG, &rec, opts); err != nil {
			return err
		}
		logger.Infof("wrote %s", argsParsed.PNG)
	}
	if argsParsed.Previous != "" {
		if err := writeJSON(argsParsed.Previous, rec.Trace()); err != nil {
			return err
		}
	}

	if argsParsed.CAN != "" {
		var bus *canbus.Bus
		bus, err = canbus.Dial(ctx, argsParsed.CAN)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, bus.Close())
		}()
		logger.Infof("replaying %d frames on %s", rec.Len(), argsParsed.CAN)
		if err := canbus.Replay(ctx, bus, &rec, float64(argsParsed.Speedup)); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
	return nil
}

// runConfig resolves the configuration and the chart color.
func runConfig(args Arguments) (cruisesim.Config, string, error) {
	if args.Config != "" {
		cfg, err := cruisesim.LoadConfig(args.Config)
		return cfg, "", err
	}
	p, err := cruisesim.LookupPreset(args.Preset)
	if err != nil {
		return cruisesim.Config{}, "", err
	}
	cfg := p.Config(
		cruisesim.KmhToMs(float64(args.RefKmh)),
		cruisesim.KmhToMs(float64(args.V0Kmh)),
		float64(args.Time),
	)
	return cfg, p.Color, nil
}

func tuneGains(ctx context.Context, cfg cruisesim.Config, points int, logger golog.Logger) (cruisesim.Config, error) {
	tuner, err := tune.NewTuner(cfg, logger)
	if err != nil {
		return cfg, err
	}
	kp, ti := cfg.Controller.Kp, cfg.Controller.Ti
	best, err := tuner.Run(ctx, tune.Span(kp/4, kp*2, points), tune.Span(ti/2, ti*2, points))
	if err != nil {
		return cfg, err
	}
	logger.Infow("tuned", "from", tune.Gains{Kp: kp, Ti: ti}, "to", best.Gains, "cost", best.Cost)
	cfg.Controller.Kp = best.Gains.Kp
	cfg.Controller.Ti = best.Gains.Ti
	return cfg, nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
