package cruisesim

import "gonum.org/v1/gonum/floats"

// KmhPerMs converts m/s to km/h.
const KmhPerMs = 3.6

// MsToKmh converts a speed in m/s to km/h.
func MsToKmh(v float64) float64 { return v * KmhPerMs }

func KmhToMs(v float64) float64 { return v / KmhPerMs }

// ScaleAll returns a new slice with every element multiplied by k.
func ScaleAll(xs []float64, k float64) []float64 {
	return floats.ScaleTo(make([]float64, len(xs)), k, xs)
}
