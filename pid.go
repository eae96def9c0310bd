package cruisesim

// Controller turns a reference and a measured speed into a saturated
// actuator command. Each call advances the controller by one sample period.
type Controller interface {
	Step(reference, measured float64) Output
	Reset()
}

type Output struct {
	// Error is normalized by the reference scale for NormalizedPID and in
	// m/s for IncrementalPI.
	Error      float64
	Raw        float64 // before clamping
	Command    float64
	Integral   float64
	Derivative float64
	Saturated  bool
}

func NewController(p ControllerParameters) (Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	lo, hi := p.Law.commandRange()

	if p.Law == IncrementalPI {
		return &incrementalPI{
			proportionalGain:   p.Kp,
			integralTime:       p.Ti,
			period:             p.Tp,
			integralIncludesKp: p.IntegralIncludesKp,
			conditional:        p.AntiWindup == ConditionalIntegration,
			minOutput:          lo,
			maxOutput:          hi,
		}, nil
	}
	return &pidState{
		proportionalGain: p.Kp,
		integralTime:     p.Ti,
		derivativeTime:   p.Td,
		period:           p.Tp,
		referenceScale:   p.ReferenceScale,
		conditional:      p.AntiWindup == ConditionalIntegration,
		minOutput:        lo,
		maxOutput:        hi,
	}, nil
}

// pidState is the positional PID working on normalized error:
//
//	u = kp*e + kp*(Tp/Ti)*sum(e) + kp*(Td/Tp)*de
//
// The sum used on a step excludes that step's error.
type pidState struct {
	// config
	proportionalGain float64
	integralTime     float64
	derivativeTime   float64
	period           float64
	referenceScale   float64
	conditional      bool

	minOutput, maxOutput float64

	// state
	integral      float64
	previousError float64
	primed        bool
}

func (pid *pidState) Step(target, current float64) Output {
	e := (target - current) / pid.referenceScale

	// the first step has no history, so it carries no derivative kick
	if !pid.primed {
		pid.previousError = e
		pid.primed = true
	}
	de := e - pid.previousError

	p := pid.proportionalGain * e
	i := pid.proportionalGain * (pid.period / pid.integralTime) * pid.integral
	d := pid.proportionalGain * (pid.derivativeTime / pid.period) * de
	raw := p + i + d

	n := clamp(raw, pid.minOutput, pid.maxOutput)

	if !pid.conditional || !windingUp(raw, e, pid.minOutput, pid.maxOutput) {
		pid.integral += e
	}
	pid.previousError = e

	return Output{
		Error:      e,
		Raw:        raw,
		Command:    n,
		Integral:   pid.integral,
		Derivative: de,
		Saturated:  n != raw,
	}
}

func (pid *pidState) Reset() {
	pid.integral = 0
	pid.previousError = 0
	pid.primed = false
}

// incrementalPI is the velocity-form PI on raw error:
//
//	u[n] = clamp(u[n-1] + kp*de + ki*e)
//
// with ki = kp*Tp/Ti or Tp/Ti depending on integralIncludesKp. Memory starts
// at zero, so the first step sees de = e.
type incrementalPI struct {
	// config
	proportionalGain   float64
	integralTime       float64
	period             float64
	integralIncludesKp bool
	conditional        bool

	minOutput, maxOutput float64

	// state
	integral        float64
	previousError   float64
	previousCommand float64
}

func (pi *incrementalPI) integralGain() float64 {
	ki := pi.period / pi.integralTime
	if pi.integralIncludesKp {
		ki *= pi.proportionalGain
	}
	return ki
}

func (pi *incrementalPI) Step(target, current float64) Output {
	e := target - current
	de := e - pi.previousError

	raw := pi.previousCommand + pi.proportionalGain*de + pi.integralGain()*e
	if pi.conditional && windingUp(raw, e, pi.minOutput, pi.maxOutput) {
		raw = pi.previousCommand + pi.proportionalGain*de
	} else {
		pi.integral += e
	}

	n := clamp(raw, pi.minOutput, pi.maxOutput)
	pi.previousCommand = n
	pi.previousError = e

	return Output{
		Error:      e,
		Raw:        raw,
		Command:    n,
		Integral:   pi.integral,
		Derivative: de,
		Saturated:  n != raw,
	}
}

func (pi *incrementalPI) Reset() {
	pi.integral = 0
	pi.previousError = 0
	pi.previousCommand = 0
}

func windingUp(raw, e, lo, hi float64) bool {
	return (raw >= hi && e >= 0) || (raw <= lo && e <= 0)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
