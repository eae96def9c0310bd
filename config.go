package cruisesim

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	// Gravity is standard gravitational acceleration in m/s^2.
	Gravity = 9.81

	defaultReferenceScale = 50.0
	sampleEpsilon         = 1e-9
)

// VehicleParameters describes the vehicle. Traction/brake limits are used by
// NormalizedPID, the drive gain by IncrementalPI.
type VehicleParameters struct {
	Name string  `json:"name,omitempty" yaml:"name,omitempty"`
	Mass float64 `json:"mass" yaml:"mass"` // kg

	// LinearDrag is the rolling resistance c1 in N*s/m. QuadraticDrag is
	// the aerodynamic c2 in N*s^2/m^2.
	LinearDrag    float64 `json:"c1" yaml:"c1"`
	QuadraticDrag float64 `json:"c2,omitempty" yaml:"c2,omitempty"`

	// Actuator limits in N.
	MaxTraction float64 `json:"max_traction,omitempty" yaml:"max_traction,omitempty"`
	MaxBrake    float64 `json:"max_brake,omitempty" yaml:"max_brake,omitempty"`
	// DriveGain ku converts a throttle fraction into drive force (N).
	DriveGain float64 `json:"ku,omitempty" yaml:"ku,omitempty"`
}

// ControllerParameters configures the regulator.
type ControllerParameters struct {
	Law ControlLaw `json:"law" yaml:"law"`
	Kp  float64    `json:"kp" yaml:"kp"`
	Ti  float64    `json:"ti" yaml:"ti"`
	Td  float64    `json:"td,omitempty" yaml:"td,omitempty"`
	Tp  float64    `json:"tp" yaml:"tp"`

	// ReferenceScale normalizes the error for NormalizedPID (v_max_ref).
	ReferenceScale float64 `json:"reference_scale,omitempty" yaml:"reference_scale,omitempty"`
	// IntegralIncludesKp selects du = kp*de + kp*(Tp/Ti)*e over
	// du = kp*de + (Tp/Ti)*e for IncrementalPI.
	IntegralIncludesKp bool       `json:"integral_includes_kp" yaml:"integral_includes_kp"`
	AntiWindup         AntiWindup `json:"anti_windup,omitempty" yaml:"anti_windup,omitempty"`
}

// Disturbance is the road slope and the window in which it acts.
type Disturbance struct {
	Slope  float64    `json:"slope" yaml:"slope"` // rad, positive is uphill
	Model  SlopeModel `json:"model,omitempty" yaml:"model,omitempty"`
	Window WindowKind `json:"window,omitempty" yaml:"window,omitempty"`
	Start  float64    `json:"start,omitempty" yaml:"start,omitempty"` // s or sample index
	End    float64    `json:"end,omitempty" yaml:"end,omitempty"`
}

// Active reports whether the slope applies at sample index n.
func (d Disturbance) Active(n int, tp float64) bool {
	switch d.Window {
	case TimeWindowed:
		t := float64(n) * tp
		return t >= d.Start && t < d.End
	case StepWindowed:
		k := float64(n)
		return k >= d.Start && k < d.End
	default:
		return true
	}
}

// PlantOptions selects the plant model and integration granularity.
type PlantOptions struct {
	Resistance ResistanceModel `json:"resistance" yaml:"resistance"`
	// SubstepDT subdivides each sample period into fixed Euler micro-steps.
	// Zero selects a single coarse Euler step per period.
	SubstepDT   float64     `json:"substep_dt,omitempty" yaml:"substep_dt,omitempty"`
	Disturbance Disturbance `json:"disturbance" yaml:"disturbance"`
}

// Config is everything one simulation run needs.
type Config struct {
	ReferenceSpeed float64 `json:"reference_speed" yaml:"reference_speed"` // m/s
	InitialSpeed   float64 `json:"initial_speed" yaml:"initial_speed"`     // m/s
	TotalTime      float64 `json:"total_time" yaml:"total_time"`           // s
	// Samples overrides the horizon derived from TotalTime when positive.
	Samples int          `json:"samples,omitempty" yaml:"samples,omitempty"`
	Fill    BoundaryFill `json:"fill,omitempty" yaml:"fill,omitempty"`

	Vehicle    VehicleParameters    `json:"vehicle" yaml:"vehicle"`
	Controller ControllerParameters `json:"controller" yaml:"controller"`
	Plant      PlantOptions         `json:"plant" yaml:"plant"`
}

// LoadConfig reads a YAML run configuration.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// SampleCount is the number of samples N the run produces.
func (cfg Config) SampleCount() int {
	if cfg.Samples > 0 {
		return cfg.Samples
	}
	if cfg.Controller.Tp <= 0 || cfg.TotalTime <= 0 {
		return 0
	}
	return int(math.Floor(cfg.TotalTime/cfg.Controller.Tp+sampleEpsilon)) + 1
}

// withDefaults resolves the law-dependent defaults.
func (cfg Config) withDefaults() Config {
	cfg.Controller = cfg.Controller.withDefaults()
	if cfg.Fill == DefaultFill {
		if cfg.Controller.Law == IncrementalPI {
			cfg.Fill = ZeroFirst
		} else {
			cfg.Fill = FillLast
		}
	}
	return cfg
}

func (p ControllerParameters) withDefaults() ControllerParameters {
	if p.ReferenceScale == 0 {
		p.ReferenceScale = defaultReferenceScale
	}
	if p.AntiWindup == DefaultAntiWindup {
		if p.Law == IncrementalPI {
			p.AntiWindup = ClampOnly
		} else {
			p.AntiWindup = ConditionalIntegration
		}
	}
	return p
}

// Validate reports every invalid field at once. Each error wraps
// ErrInvalidParameter.
func (cfg Config) Validate() error {
	cfg = cfg.withDefaults()

	var err error
	if !finite(cfg.ReferenceSpeed) || cfg.ReferenceSpeed < 0 {
		err = multierr.Append(err, invalid("reference speed must be >= 0, got %v", cfg.ReferenceSpeed))
	}
	if !finite(cfg.InitialSpeed) || cfg.InitialSpeed < 0 {
		err = multierr.Append(err, invalid("initial speed must be >= 0, got %v", cfg.InitialSpeed))
	}
	if cfg.Samples < 0 {
		err = multierr.Append(err, invalid("samples must be >= 0, got %d", cfg.Samples))
	}
	if cfg.Samples == 0 && (!finite(cfg.TotalTime) || cfg.TotalTime <= 0) {
		err = multierr.Append(err, invalid("total time must be positive, got %v", cfg.TotalTime))
	}
	if cfg.Fill != FillLast && cfg.Fill != ZeroFirst {
		err = multierr.Append(err, invalid("unknown boundary fill %v", cfg.Fill))
	}
	err = multierr.Append(err, cfg.Controller.Validate())
	err = multierr.Append(err, cfg.Vehicle.validate(cfg.Controller.Law, cfg.Plant.Resistance))
	err = multierr.Append(err, cfg.Plant.validate(cfg.Controller.Tp))
	return err
}

// Validate checks the regulator parameters on their own.
func (p ControllerParameters) Validate() error {
	p = p.withDefaults()

	var err error
	if p.Law != NormalizedPID && p.Law != IncrementalPI {
		err = multierr.Append(err, invalid("unknown control law %v", p.Law))
	}
	if !finite(p.Kp) {
		err = multierr.Append(err, invalid("kp must be finite, got %v", p.Kp))
	}
	if !finite(p.Tp) || p.Tp <= 0 {
		err = multierr.Append(err, invalid("tp must be positive, got %v", p.Tp))
	}
	if !finite(p.Ti) || p.Ti <= 0 {
		err = multierr.Append(err, invalid("ti must be positive, got %v", p.Ti))
	}
	if !finite(p.Td) || p.Td < 0 {
		err = multierr.Append(err, invalid("td must be >= 0, got %v", p.Td))
	}
	if !finite(p.ReferenceScale) || p.ReferenceScale <= 0 {
		err = multierr.Append(err, invalid("reference scale must be positive, got %v", p.ReferenceScale))
	}
	if p.AntiWindup != ConditionalIntegration && p.AntiWindup != ClampOnly {
		err = multierr.Append(err, invalid("unknown anti-windup %v", p.AntiWindup))
	}
	return err
}

func (v VehicleParameters) validate(law ControlLaw, model ResistanceModel) error {
	var err error
	if !finite(v.Mass) || v.Mass <= 0 {
		err = multierr.Append(err, invalid("mass must be positive, got %v", v.Mass))
	}
	if !finite(v.LinearDrag) || v.LinearDrag < 0 {
		err = multierr.Append(err, invalid("c1 must be >= 0, got %v", v.LinearDrag))
	}
	if model == LinearQuadratic && (!finite(v.QuadraticDrag) || v.QuadraticDrag < 0) {
		err = multierr.Append(err, invalid("c2 must be >= 0, got %v", v.QuadraticDrag))
	}
	switch law {
	case NormalizedPID:
		if !finite(v.MaxTraction) || v.MaxTraction <= 0 {
			err = multierr.Append(err, invalid("max traction must be positive, got %v", v.MaxTraction))
		}
		if !finite(v.MaxBrake) || v.MaxBrake <= 0 {
			err = multierr.Append(err, invalid("max brake must be positive, got %v", v.MaxBrake))
		}
	case IncrementalPI:
		if !finite(v.DriveGain) || v.DriveGain <= 0 {
			err = multierr.Append(err, invalid("drive gain ku must be positive, got %v", v.DriveGain))
		}
	}
	return err
}

func (p PlantOptions) validate(tp float64) error {
	var err error
	if p.Resistance != Linear && p.Resistance != LinearQuadratic {
		err = multierr.Append(err, invalid("unknown resistance model %v", p.Resistance))
	}
	if !finite(p.SubstepDT) || p.SubstepDT < 0 {
		err = multierr.Append(err, invalid("substep dt must be >= 0, got %v", p.SubstepDT))
	} else if tp > 0 && p.SubstepDT > tp {
		err = multierr.Append(err, invalid("substep dt %v exceeds tp %v", p.SubstepDT, tp))
	}

	d := p.Disturbance
	if !finite(d.Slope) || math.Abs(d.Slope) >= math.Pi/2 {
		err = multierr.Append(err, invalid("slope must be within (-pi/2, pi/2), got %v", d.Slope))
	}
	if d.Model != Sine && d.Model != SmallAngle {
		err = multierr.Append(err, invalid("unknown slope model %v", d.Model))
	}
	switch d.Window {
	case AlwaysOn:
	case TimeWindowed, StepWindowed:
		if !finite(d.Start) || !finite(d.End) || d.Start < 0 || d.End <= d.Start {
			err = multierr.Append(err, invalid("%v window needs 0 <= start < end, got [%v, %v)", d.Window, d.Start, d.End))
		}
	default:
		err = multierr.Append(err, invalid("unknown disturbance window %v", d.Window))
	}
	return err
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidParameter}, args...)...)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
