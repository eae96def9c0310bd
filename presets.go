package cruisesim

import (
	"fmt"
	"sort"
)

// Preset is a named vehicle with the plant and controller defaults it was
// tuned with.
type Preset struct {
	Vehicle    VehicleParameters
	Plant      PlantOptions
	Controller ControllerParameters
	Color      string // hex, used by the renderer
}

var presets = map[string]Preset{
	"city_car": {
		Vehicle: VehicleParameters{
			Name:        "city car",
			Mass:        1200,
			LinearDrag:  50,
			MaxTraction: 3500,
			MaxBrake:    7000,
		},
		Plant:      PlantOptions{Resistance: Linear, SubstepDT: 0.001},
		Controller: ControllerParameters{Law: NormalizedPID, Kp: 15, Tp: 0.5, Ti: 5, Td: 0.1},
		Color:      "#FF6B35",
	},
	"truck": {
		Vehicle: VehicleParameters{
			Name:        "truck",
			Mass:        25000,
			LinearDrag:  300,
			MaxTraction: 40000,
			MaxBrake:    80000,
		},
		Plant:      PlantOptions{Resistance: Linear, SubstepDT: 0.001},
		Controller: ControllerParameters{Law: NormalizedPID, Kp: 15, Tp: 0.5, Ti: 5, Td: 0.1},
		Color:      "#FF6B35",
	},
	"sports_car": {
		Vehicle: VehicleParameters{
			Name:        "sports car",
			Mass:        1600,
			LinearDrag:  80,
			MaxTraction: 14000,
			MaxBrake:    28000,
		},
		Plant:      PlantOptions{Resistance: Linear, SubstepDT: 0.001},
		Controller: ControllerParameters{Law: NormalizedPID, Kp: 15, Tp: 0.5, Ti: 5, Td: 0.1},
		Color:      "#E63946",
	},
	"compact": {
		Vehicle: VehicleParameters{
			Name:          "compact",
			Mass:          1400,
			LinearDrag:    30,
			QuadraticDrag: 2.5,
			DriveGain:     3000,
		},
		Plant: PlantOptions{Resistance: LinearQuadratic},
		Controller: ControllerParameters{
			Law:                IncrementalPI,
			Kp:                 0.6,
			Ti:                 6,
			Tp:                 0.1,
			IntegralIncludesKp: true,
		},
		Color: "#03DAC6",
	},
}

// Presets lists the preset names in order.
func Presets() []string {
	var s []string
	for name := range presets {
		s = append(s, name)
	}
	sort.Strings(s)
	return s
}

// LookupPreset returns a copy of the named preset.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown vehicle preset %q (available: %v)", name, Presets())
	}
	return p, nil
}

// Config builds a run configuration from the preset.
func (p Preset) Config(reference, initial, totalTime float64) Config {
	return Config{
		ReferenceSpeed: reference,
		InitialSpeed:   initial,
		TotalTime:      totalTime,
		Vehicle:        p.Vehicle,
		Controller:     p.Controller,
		Plant:          p.Plant,
	}
}
