package cruisesim

import "fmt"

// Record is the trajectory of one run. Every channel has the same length N
// and shares the time base Time[n] = n*Tp. A Record is never modified after
// Simulate returns it.
type Record struct {
	ReferenceSpeed float64      `json:"reference_speed"`
	Period         float64      `json:"period"`
	Law            ControlLaw   `json:"law"`
	Fill           BoundaryFill `json:"fill"`

	Time     []float64 `json:"time"`
	Velocity []float64 `json:"velocity"`
	Error    []float64 `json:"error"`
	Command  []float64 `json:"command"`

	TractionForce  []float64 `json:"traction_force"`
	BrakeForce     []float64 `json:"brake_force"`
	IntegralTerm   []float64 `json:"integral_term"`
	DerivativeTerm []float64 `json:"derivative_term"`

	ResistanceForce []float64 `json:"resistance_force"`
	GravityForce    []float64 `json:"gravity_force"`

	Degeneracies []Degeneracy `json:"degeneracies,omitempty"`
}

func newRecord(n int, cfg Config) Record {
	channel := func() []float64 { return make([]float64, n) }
	return Record{
		ReferenceSpeed:  cfg.ReferenceSpeed,
		Period:          cfg.Controller.Tp,
		Law:             cfg.Controller.Law,
		Fill:            cfg.Fill,
		Time:            channel(),
		Velocity:        channel(),
		Error:           channel(),
		Command:         channel(),
		TractionForce:   channel(),
		BrakeForce:      channel(),
		IntegralTerm:    channel(),
		DerivativeTerm:  channel(),
		ResistanceForce: channel(),
		GravityForce:    channel(),
	}
}

func (r *Record) Len() int {
	return len(r.Time)
}

type Sample struct {
	Index      int
	Time       float64
	Velocity   float64
	Error      float64
	Command    float64
	Traction   float64
	Brake      float64
	Resistance float64
	Gravity    float64
}

func (r *Record) At(n int) Sample {
	return Sample{
		Index:      n,
		Time:       r.Time[n],
		Velocity:   r.Velocity[n],
		Error:      r.Error[n],
		Command:    r.Command[n],
		Traction:   r.TractionForce[n],
		Brake:      r.BrakeForce[n],
		Resistance: r.ResistanceForce[n],
		Gravity:    r.GravityForce[n],
	}
}

// Trace is the part of a record kept between runs for overlay comparison.
type Trace struct {
	Time     []float64 `json:"time"`
	Velocity []float64 `json:"velocity"`
}

func (r *Record) Trace() Trace {
	return Trace{
		Time:     append([]float64(nil), r.Time...),
		Velocity: append([]float64(nil), r.Velocity...),
	}
}

// DegeneracyKind names a legitimate but noteworthy outcome of a run.
type DegeneracyKind int

const (
	VelocityFloored DegeneracyKind = iota
	// CommandPinned means every computed command sat on one saturation bound.
	CommandPinned
)

var degeneracyKindNames = []string{"velocity_floored", "command_pinned"}

func (k DegeneracyKind) String() string { return enumName(degeneracyKindNames, int(k)) }

func (k DegeneracyKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *DegeneracyKind) UnmarshalText(b []byte) error {
	i, err := parseEnum("degeneracy", string(b), degeneracyKindNames)
	*k = DegeneracyKind(i)
	return err
}

// Degeneracy is informational. It is never returned as an error.
type Degeneracy struct {
	Kind  DegeneracyKind `json:"kind"`
	First int            `json:"first"`
	Count int            `json:"count"`
	Bound float64        `json:"bound,omitempty"` // CommandPinned only
}

func (d Degeneracy) String() string {
	switch d.Kind {
	case CommandPinned:
		return fmt.Sprintf("command pinned at %v for all %d computed samples", d.Bound, d.Count)
	case VelocityFloored:
		return fmt.Sprintf("velocity floored at 0 on %d samples starting at index %d", d.Count, d.First)
	default:
		return d.Kind.String()
	}
}
