package cruisesim

import (
	"fmt"
	"strings"
)

// ControlLaw selects the regulator form.
type ControlLaw int

const (
	// NormalizedPID is the positional PID on error scaled by a reference
	// speed, commanding traction and brake in [-1, 1].
	NormalizedPID ControlLaw = iota
	// IncrementalPI is the velocity-form PI commanding a throttle fraction
	// in [0, 1] through a scalar drive gain.
	IncrementalPI
)

var controlLawNames = []string{"normalized_pid", "incremental_pi"}

func (l ControlLaw) String() string { return enumName(controlLawNames, int(l)) }

func (l ControlLaw) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *ControlLaw) UnmarshalText(b []byte) error {
	i, err := parseEnum("control law", string(b), controlLawNames)
	*l = ControlLaw(i)
	return err
}

func (l ControlLaw) commandRange() (lo, hi float64) {
	if l == IncrementalPI {
		return 0, 1
	}
	return -1, 1
}

// ResistanceModel selects which speed-dependent resistance terms are active.
type ResistanceModel int

const (
	Linear          ResistanceModel = iota // c1*v
	LinearQuadratic                        // c1*v + c2*v^2
)

var resistanceModelNames = []string{"linear", "linear_quadratic"}

func (r ResistanceModel) String() string { return enumName(resistanceModelNames, int(r)) }

func (r ResistanceModel) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *ResistanceModel) UnmarshalText(b []byte) error {
	i, err := parseEnum("resistance model", string(b), resistanceModelNames)
	*r = ResistanceModel(i)
	return err
}

// SlopeModel selects how the road angle turns into a gravity force.
type SlopeModel int

const (
	Sine SlopeModel = iota
	SmallAngle
)

var slopeModelNames = []string{"sine", "small_angle"}

func (s SlopeModel) String() string { return enumName(slopeModelNames, int(s)) }

func (s SlopeModel) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SlopeModel) UnmarshalText(b []byte) error {
	i, err := parseEnum("slope model", string(b), slopeModelNames)
	*s = SlopeModel(i)
	return err
}

// WindowKind selects when the slope disturbance is active.
type WindowKind int

const (
	AlwaysOn WindowKind = iota
	// TimeWindowed applies the slope while start <= t < end (seconds).
	TimeWindowed
	// StepWindowed applies the slope while start <= n < end (sample index).
	StepWindowed
)

var windowKindNames = []string{"always_on", "time_windowed", "step_windowed"}

func (w WindowKind) String() string { return enumName(windowKindNames, int(w)) }

func (w WindowKind) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *WindowKind) UnmarshalText(b []byte) error {
	i, err := parseEnum("disturbance window", string(b), windowKindNames)
	*w = WindowKind(i)
	return err
}

// AntiWindup selects how the integral memory behaves under saturation.
type AntiWindup int

const (
	// DefaultAntiWindup picks the law's usual strategy: conditional for
	// NormalizedPID and clamp-only for IncrementalPI.
	DefaultAntiWindup AntiWindup = iota
	// ConditionalIntegration skips accumulation on a step whose raw command
	// is saturated and whose error pushes further into saturation.
	ConditionalIntegration
	// ClampOnly always accumulates and relies on output clamping alone.
	ClampOnly
)

var antiWindupNames = []string{"default", "conditional", "clamp_only"}

func (a AntiWindup) String() string { return enumName(antiWindupNames, int(a)) }

func (a AntiWindup) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AntiWindup) UnmarshalText(b []byte) error {
	i, err := parseEnum("anti-windup", string(b), antiWindupNames)
	*a = AntiWindup(i)
	return err
}

// BoundaryFill selects how the derived channels are aligned to the velocity
// samples and which boundary sample is filled rather than computed.
type BoundaryFill int

const (
	// DefaultFill picks FillLast for NormalizedPID and ZeroFirst for
	// IncrementalPI.
	DefaultFill BoundaryFill = iota
	// FillLast stores at index k the command applied over [t_k, t_k+1) and
	// replicates index N-2 into N-1.
	FillLast
	// ZeroFirst stores at index n the command that produced v[n] and leaves
	// index 0 as a zero placeholder.
	ZeroFirst
)

var boundaryFillNames = []string{"default", "fill_last", "zero_first"}

func (b BoundaryFill) String() string { return enumName(boundaryFillNames, int(b)) }

func (b BoundaryFill) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *BoundaryFill) UnmarshalText(text []byte) error {
	i, err := parseEnum("boundary fill", string(text), boundaryFillNames)
	*b = BoundaryFill(i)
	return err
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parseEnum(kind, s string, names []string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q (want one of %s)",
		ErrInvalidParameter, kind, s, strings.Join(names, ", "))
}
