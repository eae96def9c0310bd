package cruisesim

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

const (
	settlingBand   = 0.02
	steadyFraction = 0.1
)

// Metrics summarizes the step response of a record. Durations are in
// seconds and are NaN when the response never gets there.
type Metrics struct {
	OvershootPct     float64 `json:"overshoot_pct"`
	RiseTime         float64 `json:"rise_time"`
	SettlingTime     float64 `json:"settling_time"`
	SteadyStateError float64 `json:"steady_state_error"` // m/s, mean over the trailing tenth
	IAE              float64 `json:"iae"`
	ITAE             float64 `json:"itae"`
	ControlEffort    float64 `json:"control_effort"` // integral of |command|
	// TrailingSaturation is how many of the last computed commands sit on a
	// saturation bound.
	TrailingSaturation int `json:"trailing_saturation"`
}

// Analyze computes step response metrics of rec against its reference speed.
func Analyze(rec *Record) Metrics {
	n := rec.Len()
	m := Metrics{RiseTime: math.NaN(), SettlingTime: math.NaN()}
	if n == 0 {
		return m
	}

	ref := rec.ReferenceSpeed
	v0 := rec.Velocity[0]
	step := ref - v0

	switch {
	case step > 0:
		m.OvershootPct = math.Max(0, (floats.Max(rec.Velocity)-ref)/step*100)
	case step < 0:
		m.OvershootPct = math.Max(0, (ref-floats.Min(rec.Velocity))/-step*100)
	}

	if step != 0 {
		m.RiseTime = riseTime(rec, v0, step)
		m.SettlingTime = settlingTime(rec, ref, math.Abs(step)*settlingBand)
	}

	tail := int(math.Ceil(float64(n) * steadyFraction))
	m.SteadyStateError = ref - stat.Mean(rec.Velocity[n-tail:], nil)

	if n >= 2 {
		absErr := make([]float64, n)
		timedErr := make([]float64, n)
		effort := make([]float64, n)
		for k := range rec.Velocity {
			absErr[k] = math.Abs(ref - rec.Velocity[k])
			timedErr[k] = rec.Time[k] * absErr[k]
			effort[k] = math.Abs(rec.Command[k])
		}
		m.IAE = integrate.Trapezoidal(rec.Time, absErr)
		m.ITAE = integrate.Trapezoidal(rec.Time, timedErr)
		m.ControlEffort = integrate.Trapezoidal(rec.Time, effort)
	}

	m.TrailingSaturation = trailingSaturation(rec)
	return m
}

func riseTime(rec *Record, v0, step float64) float64 {
	lo, hi := -1, -1
	for k, v := range rec.Velocity {
		frac := (v - v0) / step
		if lo < 0 && frac >= 0.1 {
			lo = k
		}
		if frac >= 0.9 {
			hi = k
			break
		}
	}
	if lo < 0 || hi < 0 {
		return math.NaN()
	}
	return rec.Time[hi] - rec.Time[lo]
}

func settlingTime(rec *Record, ref, band float64) float64 {
	n := rec.Len()
	last := -1
	for k := n - 1; k >= 0; k-- {
		if math.Abs(rec.Velocity[k]-ref) > band {
			last = k
			break
		}
	}
	switch {
	case last < 0:
		return 0
	case last == n-1:
		return math.NaN()
	default:
		return rec.Time[last+1]
	}
}

func trailingSaturation(rec *Record) int {
	from, to := computedRange(rec)
	lo, hi := rec.Law.commandRange()
	count := 0
	for k := to - 1; k >= from; k-- {
		if rec.Command[k] != lo && rec.Command[k] != hi {
			break
		}
		count++
	}
	return count
}
