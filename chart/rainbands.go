package chart

import (
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Rain intensity bands as used in the MeteoSwiss app, in mm/h.
var (
	RainSteps     = [9]float64{1, 2, 4, 6, 10, 20, 40, 60, 100}
	RainStepSizes = [9]float64{1, 1, 2, 2, 4, 10, 20, 20, 40}
	RainColors    = [9]drawing.Color{
		drawing.ColorFromHex("9d7d95"), // violet
		drawing.ColorFromHex("0001f9"), // blue
		drawing.ColorFromHex("088b2d"), // green
		drawing.ColorFromHex("06fd0c"), // light green
		drawing.ColorFromHex("fffe00"), // yellow
		drawing.ColorFromHex("ffc703"), // light orange
		drawing.ColorFromHex("fc7e06"), // orange
		drawing.ColorFromHex("fe1a00"), // red
		drawing.ColorFromHex("ac00e0"), // violet
	}
)

// RainBands splits a rainfall value into the heights of the nine stacked
// band segments. The segments sum to min(rain, 100); NaN and negative
// values yield no segments.
func RainBands(rain float64) [9]float64 {
	var bands [9]float64
	if math.IsNaN(rain) || rain <= 0 {
		return bands
	}
	for i := range RainSteps {
		if rain > RainSteps[i] {
			bands[i] = RainStepSizes[i]
			continue
		}
		if i > 0 {
			bands[i] = math.Max(rain-RainSteps[i-1], 0)
		} else {
			bands[i] = rain
		}
	}
	return bands
}
