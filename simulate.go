package cruisesim

import (
	"github.com/edaniels/golog"
	"go.uber.org/zap"
)

// Simulator runs the fixed horizon closed loop of one configuration. Each
// Run builds fresh controller and plant state, so a Simulator may be run
// concurrently.
type Simulator struct {
	cfg    Config
	logger golog.Logger
}

// NewSimulator validates cfg. A nil logger discards debug output.
func NewSimulator(cfg Config, logger golog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Simulator{cfg: cfg.withDefaults(), logger: logger}, nil
}

// Simulate validates cfg and runs it once.
func Simulate(cfg Config) (Record, error) {
	s, err := NewSimulator(cfg, nil)
	if err != nil {
		return Record{}, err
	}
	return s.Run(), nil
}

// Config is the resolved configuration, defaults applied.
func (s *Simulator) Config() Config {
	return s.cfg
}

// Run advances controller and plant in lock-step for all N samples. There
// is no early termination.
func (s *Simulator) Run() Record {
	cfg := s.cfg
	n := cfg.SampleCount()
	tp := cfg.Controller.Tp
	ref := cfg.ReferenceSpeed

	// both were validated with cfg
	ctrl, _ := NewController(cfg.Controller)
	plant, _ := NewPlant(cfg.Vehicle, cfg.Plant, cfg.Controller.Law, tp)

	s.logger.Debugf("simulate law=%v fill=%v N=%d tp=%v substeps=%d ref=%v v0=%v",
		cfg.Controller.Law, cfg.Fill, n, tp, plant.Substeps(), ref, cfg.InitialSpeed)

	rec := newRecord(n, cfg)
	for k := 0; k < n; k++ {
		rec.Time[k] = float64(k) * tp
	}
	rec.Velocity[0] = cfg.InitialSpeed

	floored := Degeneracy{Kind: VelocityFloored, First: -1}
	for i := 1; i < n; i++ {
		v := rec.Velocity[i-1]
		out := ctrl.Step(ref, v)

		// channel index of the command driving v[i-1] -> v[i]
		k := i
		if cfg.Fill == FillLast {
			k = i - 1
		}

		// the slope acting over the interval is the one at its start,
		// whatever the fill policy
		f := plant.Actuate(out.Command)
		next, hit := plant.Step(v, f, plant.Gravity(i-1))
		rec.Velocity[i] = next
		if hit {
			if floored.First < 0 {
				floored.First = i
			}
			floored.Count++
		}

		rec.Error[k] = out.Error
		rec.Command[k] = out.Command
		rec.TractionForce[k] = f.Traction
		rec.BrakeForce[k] = f.Brake
		rec.IntegralTerm[k] = out.Integral
		rec.DerivativeTerm[k] = out.Derivative
	}

	for k := 0; k < n; k++ {
		rec.ResistanceForce[k] = plant.Resistance(rec.Velocity[k])
		rec.GravityForce[k] = plant.Gravity(k)
	}

	if cfg.Fill == FillLast {
		fillLast(&rec, cfg.Controller)
	}

	if floored.Count > 0 {
		rec.Degeneracies = append(rec.Degeneracies, floored)
	}
	if d, ok := pinned(&rec, cfg.Controller.Law); ok {
		rec.Degeneracies = append(rec.Degeneracies, d)
	}
	for _, d := range rec.Degeneracies {
		s.logger.Warnf("degeneracy: %v", d)
	}
	return rec
}

// fillLast completes index N-1, which no loop iteration computes: the error
// is taken from the final velocity, the integral keeps its final value and
// the remaining derived channels replicate index N-2.
func fillLast(rec *Record, p ControllerParameters) {
	last := rec.Len() - 1
	rec.Error[last] = lawError(p, rec.ReferenceSpeed, rec.Velocity[last])
	if last == 0 {
		return
	}
	prev := last - 1
	rec.Command[last] = rec.Command[prev]
	rec.TractionForce[last] = rec.TractionForce[prev]
	rec.BrakeForce[last] = rec.BrakeForce[prev]
	rec.IntegralTerm[last] = rec.IntegralTerm[prev]
	rec.DerivativeTerm[last] = rec.DerivativeTerm[prev]
}

// lawError is the error as the controller sees it.
func lawError(p ControllerParameters, reference, measured float64) float64 {
	e := reference - measured
	if p.Law == NormalizedPID {
		e /= p.ReferenceScale
	}
	return e
}

// computedRange is the index range [from, to) of controller-computed samples.
func computedRange(rec *Record) (from, to int) {
	n := rec.Len()
	if rec.Fill == ZeroFirst {
		return 1, n
	}
	return 0, n - 1
}

func pinned(rec *Record, law ControlLaw) (Degeneracy, bool) {
	from, to := computedRange(rec)
	if to <= from {
		return Degeneracy{}, false
	}
	lo, hi := law.commandRange()
	for _, bound := range []float64{hi, lo} {
		all := true
		for k := from; k < to; k++ {
			if rec.Command[k] != bound {
				all = false
				break
			}
		}
		if all {
			return Degeneracy{Kind: CommandPinned, First: from, Count: to - from, Bound: bound}, true
		}
	}
	return Degeneracy{}, false
}
