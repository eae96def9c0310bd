package cruisesim

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.viam.com/test"
	"gopkg.in/yaml.v3"
)

const compactHillYAML = `
reference_speed: 20
initial_speed: 0
total_time: 100
vehicle:
  name: compact
  mass: 1400
  c1: 30
  c2: 2.5
  ku: 3000
controller:
  law: incremental_pi
  kp: 0.6
  ti: 6
  tp: 0.1
  integral_includes_kp: true
plant:
  resistance: linear_quadratic
  disturbance:
    slope: 0.05
    window: step_windowed
    start: 300
    end: 500
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "run.yaml")
	test.That(t, os.WriteFile(fn, []byte(body), 0o600), test.ShouldBeNil)
	return fn
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, compactHillYAML))
	test.That(t, err, test.ShouldBeNil)

	want := presetConfig(t, "compact", 20, 0, 100)
	want.Plant.Disturbance = Disturbance{Slope: 0.05, Window: StepWindowed, Start: 300, End: 500}
	test.That(t, cfg, test.ShouldResemble, want)
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.SampleCount(), test.ShouldEqual, 1001)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, os.ErrNotExist), test.ShouldBeTrue)

	_, err = LoadConfig(writeConfig(t, "controller:\n  law: fuzzy_logic\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "fuzzy_logic")

	_, err = LoadConfig(writeConfig(t, "reference_speed: [1, 2\n"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEnumText(t *testing.T) {
	var law ControlLaw
	test.That(t, law.UnmarshalText([]byte(" Incremental_PI ")), test.ShouldBeNil)
	test.That(t, law, test.ShouldEqual, IncrementalPI)
	test.That(t, ControlLaw(9).String(), test.ShouldEqual, "unknown(9)")

	var fill BoundaryFill
	test.That(t, fill.UnmarshalText([]byte("zero_first")), test.ShouldBeNil)
	test.That(t, fill, test.ShouldEqual, ZeroFirst)

	var aw AntiWindup
	err := aw.UnmarshalText([]byte("back_calculation"))
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	out, err := yaml.Marshal(Disturbance{Slope: 0.1, Model: SmallAngle, Window: TimeWindowed, Start: 1, End: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldContainSubstring, "model: small_angle")
	test.That(t, string(out), test.ShouldContainSubstring, "window: time_windowed")

	b, err := json.Marshal(ControllerParameters{Law: IncrementalPI, AntiWindup: ConditionalIntegration})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(b), test.ShouldContainSubstring, `"law":"incremental_pi"`)
	test.That(t, string(b), test.ShouldContainSubstring, `"anti_windup":"conditional"`)
}

func TestConfigDefaults(t *testing.T) {
	pid := presetConfig(t, "truck", 20, 0, 60).withDefaults()
	test.That(t, pid.Fill, test.ShouldEqual, FillLast)
	test.That(t, pid.Controller.AntiWindup, test.ShouldEqual, ConditionalIntegration)
	test.That(t, pid.Controller.ReferenceScale, test.ShouldEqual, 50)

	pi := presetConfig(t, "compact", 20, 0, 60).withDefaults()
	test.That(t, pi.Fill, test.ShouldEqual, ZeroFirst)
	test.That(t, pi.Controller.AntiWindup, test.ShouldEqual, ClampOnly)

	custom := presetConfig(t, "compact", 20, 0, 60)
	custom.Fill = FillLast
	custom.Controller.AntiWindup = ConditionalIntegration
	custom = custom.withDefaults()
	test.That(t, custom.Fill, test.ShouldEqual, FillLast)
	test.That(t, custom.Controller.AntiWindup, test.ShouldEqual, ConditionalIntegration)
}

func TestConfigValidate(t *testing.T) {
	for _, name := range Presets() {
		test.That(t, presetConfig(t, name, 10, 0, 60).Validate(), test.ShouldBeNil)
	}

	for _, tc := range []struct {
		name   string
		mutate func(cfg *Config)
		substr string
	}{
		{"negative initial speed", func(cfg *Config) { cfg.InitialSpeed = -1 }, "initial speed"},
		{"nan reference", func(cfg *Config) { cfg.ReferenceSpeed = math.NaN() }, "reference speed"},
		{"negative samples", func(cfg *Config) { cfg.Samples = -3 }, "samples"},
		{"unknown fill", func(cfg *Config) { cfg.Fill = BoundaryFill(7) }, "boundary fill"},
		{"negative c1", func(cfg *Config) { cfg.Vehicle.LinearDrag = -1 }, "c1"},
		{"negative c2", func(cfg *Config) { cfg.Vehicle.QuadraticDrag = -1 }, "c2"},
		{"no drive gain", func(cfg *Config) { cfg.Vehicle.DriveGain = 0 }, "ku"},
		{"substep too long", func(cfg *Config) { cfg.Plant.SubstepDT = 0.5 }, "substep"},
		{"vertical road", func(cfg *Config) { cfg.Plant.Disturbance.Slope = math.Pi / 2 }, "slope"},
		{"empty window", func(cfg *Config) {
			cfg.Plant.Disturbance = Disturbance{Slope: 0.1, Window: TimeWindowed, Start: 5, End: 5}
		}, "window"},
		{"zero scale", func(cfg *Config) { cfg.Controller.ReferenceScale = -50 }, "reference scale"},
		{"infinite kp", func(cfg *Config) { cfg.Controller.Kp = math.Inf(1) }, "kp"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := presetConfig(t, "compact", 20, 0, 60)
			tc.mutate(&cfg)
			err := cfg.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.substr)
		})
	}

	t.Run("pid needs actuator limits", func(t *testing.T) {
		cfg := presetConfig(t, "city_car", 20, 0, 60)
		cfg.Vehicle.MaxTraction = 0
		cfg.Vehicle.MaxBrake = 0
		err := cfg.Validate()
		test.That(t, multierr.Errors(err), test.ShouldHaveLength, 2)
	})

	t.Run("samples override total time", func(t *testing.T) {
		cfg := presetConfig(t, "city_car", 20, 0, 0)
		test.That(t, cfg.Validate(), test.ShouldNotBeNil)
		cfg.Samples = 10
		test.That(t, cfg.Validate(), test.ShouldBeNil)
	})
}

func TestPresets(t *testing.T) {
	test.That(t, Presets(), test.ShouldResemble, []string{"city_car", "compact", "sports_car", "truck"})

	p, err := LookupPreset("truck")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Vehicle.Mass, test.ShouldEqual, 25000)

	// presets are handed out by value
	p.Vehicle.Mass = 1
	again, err := LookupPreset("truck")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.Vehicle.Mass, test.ShouldEqual, 25000)

	_, err = LookupPreset("bus")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "city_car")
}
