// Package tune searches controller gains for a run configuration. A coarse
// (kp, Ti) grid is simulated concurrently and the best point is refined with
// a bounded Nelder-Mead search.
package tune

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/erh/cruisesim"
)

// DefaultOvershootWeight is the cost added per percent of overshoot.
const DefaultOvershootWeight = 50.0

// Gains are the tuned parameters. Everything else comes from the base
// configuration.
type Gains struct {
	Kp float64 `json:"kp"`
	Ti float64 `json:"ti"`
}

func (g Gains) String() string {
	return fmt.Sprintf("kp=%.4g ti=%.4g", g.Kp, g.Ti)
}

// Result is one evaluated point.
type Result struct {
	Gains   Gains             `json:"gains"`
	Cost    float64           `json:"cost"`
	Metrics cruisesim.Metrics `json:"metrics"`
}

// Tuner evaluates gains against a fixed base configuration.
type Tuner struct {
	base   cruisesim.Config
	logger golog.Logger

	// OvershootWeight scales the overshoot penalty.
	OvershootWeight float64
	// Workers bounds concurrent simulations in Grid; zero means GOMAXPROCS.
	Workers int
	// MaxEval bounds objective evaluations in Refine.
	MaxEval int
}

// NewTuner validates base. A nil logger discards output.
func NewTuner(base cruisesim.Config, logger golog.Logger) (*Tuner, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Tuner{
		base:            base,
		logger:          logger,
		OvershootWeight: DefaultOvershootWeight,
		MaxEval:         200,
	}, nil
}

// Cost is ITAE plus the weighted overshoot percentage.
func (t *Tuner) Cost(m cruisesim.Metrics) float64 {
	return m.ITAE + t.OvershootWeight*m.OvershootPct
}

// Evaluate simulates the base configuration with g.
func (t *Tuner) Evaluate(g Gains) (Result, error) {
	cfg := t.base
	cfg.Controller.Kp = g.Kp
	cfg.Controller.Ti = g.Ti
	rec, err := cruisesim.Simulate(cfg)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate %v: %w", g, err)
	}
	m := cruisesim.Analyze(&rec)
	return Result{Gains: g, Cost: t.Cost(m), Metrics: m}, nil
}

// Grid evaluates every (kp, ti) pair and returns the results ordered by cost.
func (t *Tuner) Grid(ctx context.Context, kps, tis []float64) ([]Result, error) {
	if len(kps) == 0 || len(tis) == 0 {
		return nil, fmt.Errorf("%w: empty tuning grid", cruisesim.ErrInvalidParameter)
	}

	workers := t.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(kps)*len(tis))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, kp := range kps {
		for j, ti := range tis {
			idx, gains := i*len(tis)+j, Gains{Kp: kp, Ti: ti}
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := t.Evaluate(gains)
				if err != nil {
					return err
				}
				results[idx] = r
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Cost < results[b].Cost })
	t.logger.Debugf("grid of %d points, best %v cost %.4g", len(results), results[0].Gains, results[0].Cost)
	return results, nil
}

// Refine runs Nelder-Mead from start within [lo, hi].
func (t *Tuner) Refine(start, lo, hi Gains) (Result, error) {
	if lo.Ti <= 0 || lo.Kp > hi.Kp || lo.Ti > hi.Ti {
		return Result{}, fmt.Errorf("%w: refine bounds [%v, %v]", cruisesim.ErrInvalidParameter, lo, hi)
	}

	opt, err := nlopt.NewNLopt(nlopt.LN_NELDERMEAD, 2)
	if err != nil {
		return Result{}, err
	}
	defer opt.Destroy()

	if err := opt.SetLowerBounds([]float64{lo.Kp, lo.Ti}); err != nil {
		return Result{}, err
	}
	if err := opt.SetUpperBounds([]float64{hi.Kp, hi.Ti}); err != nil {
		return Result{}, err
	}
	if err := opt.SetXtolRel(1e-4); err != nil {
		return Result{}, err
	}
	if err := opt.SetMaxEval(t.MaxEval); err != nil {
		return Result{}, err
	}

	evals := 0
	err = opt.SetMinObjective(func(x, gradient []float64) float64 {
		evals++
		r, err := t.Evaluate(Gains{Kp: x[0], Ti: x[1]})
		if err != nil {
			return math.Inf(1)
		}
		return r.Cost
	})
	if err != nil {
		return Result{}, err
	}

	x, _, err := opt.Optimize([]float64{start.Kp, start.Ti})
	if err != nil {
		return Result{}, fmt.Errorf("refine from %v: %w", start, err)
	}
	best, err := t.Evaluate(Gains{Kp: x[0], Ti: x[1]})
	if err != nil {
		return Result{}, err
	}
	t.logger.Debugf("refined %v -> %v after %d evaluations, cost %.4g", start, best.Gains, evals, best.Cost)
	return best, nil
}

// Run evaluates the grid and refines its best point inside the grid box.
func (t *Tuner) Run(ctx context.Context, kps, tis []float64) (Result, error) {
	grid, err := t.Grid(ctx, kps, tis)
	if err != nil {
		return Result{}, err
	}
	lo := Gains{Kp: floats.Min(kps), Ti: floats.Min(tis)}
	hi := Gains{Kp: floats.Max(kps), Ti: floats.Max(tis)}

	refined, err := t.Refine(grid[0].Gains, lo, hi)
	if err != nil {
		t.logger.Warnw("refinement failed, keeping grid optimum", "error", err)
		return grid[0], nil
	}
	if refined.Cost > grid[0].Cost {
		return grid[0], nil
	}
	return refined, nil
}

// Span returns n values evenly spaced over [lo, hi].
func Span(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}
