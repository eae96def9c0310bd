package cruisesim

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"go.viam.com/test"
)

const testTheta = .01

func mustPlant(t *testing.T, v VehicleParameters, opts PlantOptions, law ControlLaw, tp float64) *Plant {
	t.Helper()
	p, err := NewPlant(v, opts, law, tp)
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestActuate(t *testing.T) {
	city, err := LookupPreset("city_car")
	test.That(t, err, test.ShouldBeNil)
	compact, err := LookupPreset("compact")
	test.That(t, err, test.ShouldBeNil)

	type d struct {
		law     ControlLaw
		vehicle VehicleParameters
		command float64
		res     Forces
	}

	tests := []d{
		{NormalizedPID, city.Vehicle, 1, Forces{Traction: 3500}},
		{NormalizedPID, city.Vehicle, 0.5, Forces{Traction: 1750}},
		{NormalizedPID, city.Vehicle, 0, Forces{}},
		{NormalizedPID, city.Vehicle, -0.25, Forces{Brake: 1750}},
		{NormalizedPID, city.Vehicle, -1, Forces{Brake: 7000}},
		{IncrementalPI, compact.Vehicle, 1, Forces{Traction: 3000}},
		{IncrementalPI, compact.Vehicle, 0.2, Forces{Traction: 600}},
		{IncrementalPI, compact.Vehicle, 0, Forces{}},
	}

	for _, x := range tests {
		t.Run(fmt.Sprintf("%v/%v", x.law, x.command), func(t *testing.T) {
			p := mustPlant(t, x.vehicle, PlantOptions{}, x.law, 0.1)
			f := p.Actuate(x.command)
			test.That(t, f.Traction, test.ShouldAlmostEqual, x.res.Traction, testTheta)
			test.That(t, f.Brake, test.ShouldAlmostEqual, x.res.Brake, testTheta)
		})
	}
}

func TestResistance(t *testing.T) {
	v := VehicleParameters{Mass: 1400, LinearDrag: 30, QuadraticDrag: 2.5, DriveGain: 3000}

	linear := mustPlant(t, v, PlantOptions{Resistance: Linear}, IncrementalPI, 0.1)
	test.That(t, linear.Resistance(0), test.ShouldEqual, 0)
	test.That(t, linear.Resistance(20), test.ShouldAlmostEqual, 600)

	quad := mustPlant(t, v, PlantOptions{Resistance: LinearQuadratic}, IncrementalPI, 0.1)
	test.That(t, quad.Resistance(20), test.ShouldAlmostEqual, 1600)
}

func TestGravityWindow(t *testing.T) {
	v := VehicleParameters{Mass: 1000, LinearDrag: 10, DriveGain: 3000}

	t.Run("always on", func(t *testing.T) {
		p := mustPlant(t, v, PlantOptions{Disturbance: Disturbance{Slope: 0.1}}, IncrementalPI, 0.1)
		test.That(t, p.Gravity(0), test.ShouldAlmostEqual, 1000*Gravity*math.Sin(0.1))
		test.That(t, p.Gravity(100000), test.ShouldAlmostEqual, 1000*Gravity*math.Sin(0.1))
	})

	t.Run("small angle", func(t *testing.T) {
		p := mustPlant(t, v, PlantOptions{Disturbance: Disturbance{Slope: 0.1, Model: SmallAngle}}, IncrementalPI, 0.1)
		test.That(t, p.Gravity(3), test.ShouldAlmostEqual, 1000*Gravity*0.1)
	})

	t.Run("step windowed", func(t *testing.T) {
		p := mustPlant(t, v, PlantOptions{
			Disturbance: Disturbance{Slope: 0.05, Window: StepWindowed, Start: 300, End: 500},
		}, IncrementalPI, 0.1)
		test.That(t, p.Gravity(0), test.ShouldEqual, 0)
		test.That(t, p.Gravity(299), test.ShouldEqual, 0)
		test.That(t, p.Gravity(300), test.ShouldBeGreaterThan, 0)
		test.That(t, p.Gravity(499), test.ShouldBeGreaterThan, 0)
		test.That(t, p.Gravity(500), test.ShouldEqual, 0)
	})

	t.Run("time windowed", func(t *testing.T) {
		p := mustPlant(t, v, PlantOptions{
			Disturbance: Disturbance{Slope: -0.05, Window: TimeWindowed, Start: 30, End: 50},
		}, IncrementalPI, 0.5)
		test.That(t, p.Gravity(59), test.ShouldEqual, 0)
		test.That(t, p.Gravity(60), test.ShouldBeLessThan, 0)
		test.That(t, p.Gravity(99), test.ShouldBeLessThan, 0)
		test.That(t, p.Gravity(100), test.ShouldEqual, 0)
	})
}

func TestPlantStep(t *testing.T) {
	v := VehicleParameters{Mass: 1000, MaxTraction: 1000, MaxBrake: 2000}

	t.Run("coarse euler", func(t *testing.T) {
		p := mustPlant(t, v, PlantOptions{}, NormalizedPID, 0.5)
		test.That(t, p.Substeps(), test.ShouldEqual, 1)
		next, floored := p.Step(1, Forces{Traction: 1000}, 0)
		test.That(t, next, test.ShouldAlmostEqual, 1.5)
		test.That(t, floored, test.ShouldBeFalse)
	})

	t.Run("fine euler matches without drag", func(t *testing.T) {
		p := mustPlant(t, v, PlantOptions{SubstepDT: 0.001}, NormalizedPID, 0.5)
		test.That(t, p.Substeps(), test.ShouldEqual, 500)
		next, _ := p.Step(1, Forces{Traction: 1000}, 0)
		test.That(t, next, test.ShouldAlmostEqual, 1.5, 1e-9)
	})

	t.Run("fine euler tracks drag decay", func(t *testing.T) {
		drag := v
		drag.LinearDrag = 500
		coarse := mustPlant(t, drag, PlantOptions{}, NormalizedPID, 0.5)
		fine := mustPlant(t, drag, PlantOptions{SubstepDT: 0.001}, NormalizedPID, 0.5)

		exact := 10 * math.Exp(-500.0/1000*0.5)
		c, _ := coarse.Step(10, Forces{}, 0)
		f, _ := fine.Step(10, Forces{}, 0)
		test.That(t, c, test.ShouldAlmostEqual, 7.5)
		test.That(t, f, test.ShouldAlmostEqual, exact, 0.005)
		test.That(t, math.Abs(f-exact), test.ShouldBeLessThan, math.Abs(c-exact))
	})

	t.Run("velocity floor", func(t *testing.T) {
		for _, dt := range []float64{0, 0.001} {
			p := mustPlant(t, v, PlantOptions{SubstepDT: dt}, NormalizedPID, 0.5)
			next, floored := p.Step(0.1, Forces{Brake: 2000}, 0)
			test.That(t, next, test.ShouldEqual, 0)
			test.That(t, floored, test.ShouldBeTrue)
		}
	})

	t.Run("substeps round", func(t *testing.T) {
		p := mustPlant(t, v, PlantOptions{SubstepDT: 0.001}, NormalizedPID, 0.3)
		test.That(t, p.Substeps(), test.ShouldEqual, 300)
	})

	t.Run("uneven substep covers the period", func(t *testing.T) {
		for _, x := range []struct {
			dt       float64
			substeps int
		}{{0.07, 1}, {0.03, 3}, {0.001, 100}} {
			p := mustPlant(t, v, PlantOptions{SubstepDT: x.dt}, NormalizedPID, 0.1)
			test.That(t, p.Substeps(), test.ShouldEqual, x.substeps)
			next, _ := p.Step(0, Forces{Traction: 1000}, 0)
			test.That(t, next, test.ShouldAlmostEqual, 0.1, 1e-9)
		}
	})
}

func TestNewPlantInvalid(t *testing.T) {
	_, err := NewPlant(VehicleParameters{Mass: 0, MaxTraction: 1, MaxBrake: 1}, PlantOptions{}, NormalizedPID, 0.1)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = NewPlant(VehicleParameters{Mass: 1000}, PlantOptions{}, IncrementalPI, 0.1)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = NewPlant(VehicleParameters{Mass: 1000, DriveGain: 1}, PlantOptions{SubstepDT: 1}, IncrementalPI, 0.1)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	_, err = NewPlant(VehicleParameters{Mass: 1000, DriveGain: 1}, PlantOptions{
		Disturbance: Disturbance{Slope: 0.1, Window: StepWindowed, Start: 50, End: 10},
	}, IncrementalPI, 0.1)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
}

func TestSteadyStateSpeed(t *testing.T) {
	compact, err := LookupPreset("compact")
	test.That(t, err, test.ShouldBeNil)
	city, err := LookupPreset("city_car")
	test.That(t, err, test.ShouldBeNil)

	quadratic := PlantOptions{Resistance: LinearQuadratic}
	linear := PlantOptions{Resistance: Linear}

	full := SteadyStateSpeed(compact.Vehicle, quadratic, IncrementalPI, 1, 0)
	test.That(t, full, test.ShouldAlmostEqual, (-30+math.Sqrt(900+4*2.5*3000))/5, 1e-9)
	test.That(t, 3000-30*full-2.5*full*full, test.ShouldAlmostEqual, 0, 1e-6)

	test.That(t, SteadyStateSpeed(city.Vehicle, linear, NormalizedPID, 1, 0), test.ShouldAlmostEqual, 70)
	test.That(t, SteadyStateSpeed(city.Vehicle, linear, NormalizedPID, -1, 0), test.ShouldEqual, 0)
	test.That(t, SteadyStateSpeed(city.Vehicle, linear, NormalizedPID, 0.1, 0.5), test.ShouldEqual, 0)

	frictionless := VehicleParameters{Mass: 1000, MaxTraction: 100, MaxBrake: 100}
	test.That(t, math.IsInf(SteadyStateSpeed(frictionless, linear, NormalizedPID, 1, 0), 1), test.ShouldBeTrue)

	t.Run("slope model", func(t *testing.T) {
		weight := city.Vehicle.Mass * Gravity
		sine := SteadyStateSpeed(city.Vehicle, linear, NormalizedPID, 1, 0.2)
		test.That(t, sine, test.ShouldAlmostEqual, (3500-weight*math.Sin(0.2))/50, 1e-9)

		small := linear
		small.Disturbance.Model = SmallAngle
		flat := SteadyStateSpeed(city.Vehicle, small, NormalizedPID, 1, 0.2)
		test.That(t, flat, test.ShouldAlmostEqual, (3500-weight*0.2)/50, 1e-9)
		test.That(t, flat, test.ShouldBeLessThan, sine)

		// agrees with the plant under the same options
		small.Disturbance.Slope = 0.2
		p := mustPlant(t, city.Vehicle, small, NormalizedPID, 0.1)
		test.That(t, p.Acceleration(flat, p.Actuate(1), p.Gravity(0)), test.ShouldAlmostEqual, 0, 1e-9)
	})
}
