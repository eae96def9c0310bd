package cruisesim

import (
	"math"

	"go.uber.org/multierr"
)

// Forces is the actuator split of one command, in N. At most one of the two
// is non-zero.
type Forces struct {
	Traction float64
	Brake    float64
}

// Plant is the single degree of freedom longitudinal model
//
//	m*dv/dt = F_traction - F_brake - F_resist(v) - F_gravity
//
// It holds no state between calls; velocity is passed in and returned.
type Plant struct {
	vehicle VehicleParameters
	opts    PlantOptions
	law     ControlLaw
	period  float64

	substeps  int
	substepDT float64
}

func NewPlant(vehicle VehicleParameters, opts PlantOptions, law ControlLaw, period float64) (*Plant, error) {
	err := vehicle.validate(law, opts.Resistance)
	if !finite(period) || period <= 0 {
		err = multierr.Append(err, invalid("tp must be positive, got %v", period))
	}
	err = multierr.Append(err, opts.validate(period))
	if err != nil {
		return nil, err
	}

	p := &Plant{
		vehicle:   vehicle,
		opts:      opts,
		law:       law,
		period:    period,
		substeps:  1,
		substepDT: period,
	}
	if opts.SubstepDT > 0 {
		p.substeps = int(math.Round(period / opts.SubstepDT))
		if p.substeps < 1 {
			p.substeps = 1
		}
		p.substepDT = period / float64(p.substeps)
	}
	return p, nil
}

func (p *Plant) Substeps() int {
	return p.substeps
}

// Actuate converts a command into traction and brake forces. NormalizedPID
// commands in [-1, 1] scale the traction limit when non-negative and the
// brake limit otherwise; IncrementalPI throttle fractions scale the drive
// gain and never brake.
func (p *Plant) Actuate(command float64) Forces {
	if p.law == IncrementalPI {
		return Forces{Traction: p.vehicle.DriveGain * command}
	}
	if command >= 0 {
		return Forces{Traction: command * p.vehicle.MaxTraction}
	}
	return Forces{Brake: -command * p.vehicle.MaxBrake}
}

func (p *Plant) Resistance(v float64) float64 {
	f := p.vehicle.LinearDrag * v
	if p.opts.Resistance == LinearQuadratic {
		f += p.vehicle.QuadraticDrag * v * v
	}
	return f
}

// Gravity is the slope force at sample index n. It is zero outside the
// disturbance window whatever the configured slope.
func (p *Plant) Gravity(n int) float64 {
	d := p.opts.Disturbance
	if d.Slope == 0 || !d.Active(n, p.period) {
		return 0
	}
	return slopeForce(p.vehicle.Mass, d.Slope, d.Model)
}

func slopeForce(mass, slope float64, model SlopeModel) float64 {
	if model == SmallAngle {
		return mass * Gravity * slope
	}
	return mass * Gravity * math.Sin(slope)
}

func (p *Plant) Acceleration(v float64, f Forces, gravity float64) float64 {
	return (f.Traction - f.Brake - p.Resistance(v) - gravity) / p.vehicle.Mass
}

// Step integrates one sample period holding the forces constant. Velocity
// is floored at zero after every Euler step; floored reports whether the
// floor was hit.
func (p *Plant) Step(v float64, f Forces, gravity float64) (next float64, floored bool) {
	for i := 0; i < p.substeps; i++ {
		v += p.Acceleration(v, f, gravity) * p.substepDT
		if v < 0 {
			v = 0
			floored = true
		}
	}
	return v, floored
}

// SteadyStateSpeed is the terminal speed at a constant command on a constant
// slope: the non-negative root of F_drive - F_gravity = c1*v + c2*v^2 under
// opts.Resistance, with the slope force taken per opts.Disturbance.Model. It
// is zero when the drive cannot overcome the slope, and +Inf when nothing
// resists the net drive.
func SteadyStateSpeed(vehicle VehicleParameters, opts PlantOptions, law ControlLaw, command, slope float64) float64 {
	p := &Plant{vehicle: vehicle, law: law, opts: opts}
	f := p.Actuate(command)
	net := f.Traction - f.Brake - slopeForce(vehicle.Mass, slope, opts.Disturbance.Model)
	if net <= 0 {
		return 0
	}
	c1, c2 := vehicle.LinearDrag, 0.0
	if opts.Resistance == LinearQuadratic {
		c2 = vehicle.QuadraticDrag
	}
	switch {
	case c2 > 0:
		return (-c1 + math.Sqrt(c1*c1+4*c2*net)) / (2 * c2)
	case c1 > 0:
		return net / c1
	default:
		return math.Inf(1)
	}
}
