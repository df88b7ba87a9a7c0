package chart

import (
	"errors"
	"fmt"
	"image"
	"math"

	"meteoswiss-forecast/models"
)

// Margins around the plot area in pixel
const (
	MarginLeft   = 40
	MarginRight  = 40
	MarginTop    = 35
	MarginBottom = 40

	// temperaturePadding keeps the extreme temperatures this many pixel away
	// from the plot edges so the min/max labels fit
	temperaturePadding = 45
	// textShadowWidth is the width of the halo around labels
	textShadowWidth = 3
)

// ErrInvalidOptions is returned for options outside their allowed range
var ErrInvalidOptions = errors.New("invalid chart options")

// Layout maps forecast values to pixel coordinates of the image
type Layout struct {
	Width, Height int
	Plot          image.Rectangle
	Days          int
	Hours         int
	RainMax       float64
	TempMin       float64
	TempMax       float64
}

// NewLayout computes the plot geometry and the value ranges of both y axes
func NewLayout(width, height int, f *models.Forecast, includeRainVariance bool) (Layout, error) {
	plot := image.Rect(MarginLeft, MarginTop, width-MarginRight, height-MarginBottom)
	if f.NoOfDays < 1 || plot.Dx() < f.NoOfDays*models.HoursPerDay/2 || plot.Dy() <= 2*temperaturePadding {
		return Layout{}, fmt.Errorf("%w: %dx%d is too small for %d days", ErrInvalidOptions, width, height, f.NoOfDays)
	}
	// whole pixels per day, so that day boundaries match dayWidth in the metadata
	plot.Max.X = plot.Min.X + plot.Dx()/f.NoOfDays*f.NoOfDays

	l := Layout{
		Width:   width,
		Height:  height,
		Plot:    plot,
		Days:    f.NoOfDays,
		Hours:   f.NoOfDays * models.HoursPerDay,
		RainMax: RainScaleMax(f, includeRainVariance),
	}
	l.TempMin, l.TempMax = TemperatureRange(f.Temperature, plot.Dy())
	return l, nil
}

// RainScaleMax is the top of the rain axis: the largest value plus 1 mm/h
func RainScaleMax(f *models.Forecast, includeVariance bool) float64 {
	max, ok := f.Rainfall.Max()
	if includeVariance {
		if v, vok := f.RainfallVarianceMax.Max(); vok && (!ok || v > max) {
			max, ok = v, true
		}
	}
	if !ok || max < 0 {
		max = 0
	}
	return max + 1
}

// TemperatureRange returns the temperature axis range so that the extremes
// sit temperaturePadding pixel inside the plot.
func TemperatureRange(temperature models.Series, plotHeight int) (min, max float64) {
	min, okMin := temperature.Min()
	max, okMax := temperature.Max()
	if !okMin || !okMax {
		return 0, 1
	}
	if max-min < 1 {
		mid := (max + min) / 2
		min, max = mid-0.5, mid+0.5
	}
	perPixel := (max - min) / float64(plotHeight-2*temperaturePadding)
	return min - temperaturePadding*perPixel, max + temperaturePadding*perPixel
}

// translate maps value within [min, max] onto [0, domain] the way go-chart's continuous ranges do
func translate(value, min, max float64, domain int) int {
	return int(math.Ceil((value - min) / (max - min) * float64(domain)))
}

// X returns the pixel column of a fractional hour index
func (l Layout) X(hour float64) int {
	return l.Plot.Min.X + translate(hour, 0, float64(l.Hours), l.Plot.Dx())
}

// RainY returns the pixel row of a rain value
func (l Layout) RainY(v float64) int {
	return l.Plot.Max.Y - translate(v, 0, l.RainMax, l.Plot.Dy())
}

// TempY returns the pixel row of a temperature
func (l Layout) TempY(v float64) int {
	return l.Plot.Max.Y - translate(v, l.TempMin, l.TempMax, l.Plot.Dy())
}

// DayWidth is the width of one day in pixel
func (l Layout) DayWidth() float64 {
	return float64(l.Plot.Dx()) / float64(l.Days)
}

// DayX returns the first pixel column of a day
func (l Layout) DayX(day int) int {
	return l.Plot.Min.X + day*(l.Plot.Dx()/l.Days)
}

// DayBounds returns the first and last pixel column of a day
func (l Layout) DayBounds(day int) (int, int) {
	return l.DayX(day), l.DayX(day+1) - 1
}

// Metadata describes the layout for the time-mark overlay. FirstDayY is
// measured from the bottom of the image.
func (l Layout) Metadata() models.Metadata {
	return models.Metadata{
		ImageWidth:  l.Width,
		ImageHeight: l.Height,
		FirstDayX:   l.Plot.Min.X,
		FirstDayY:   l.Height - l.Plot.Max.Y,
		DayWidth:    l.Plot.Dx() / l.Days,
		DayHeight:   l.Plot.Dy(),
		NoOfDays:    l.Days,
	}
}

// ClampLabel moves a label centred at x so that it lies fully within
// [dayMin, dayMax], leaving room for the text halo.
func ClampLabel(x, labelWidth float64, dayMin, dayMax int) float64 {
	half := labelWidth / 2
	if x-half < float64(dayMin) {
		x = float64(dayMin) + half + textShadowWidth/2.0
	}
	if x+half > float64(dayMax) {
		x = float64(dayMax) - half - textShadowWidth/2.0
	}
	return x
}

// DayExtremes returns the hour index of the highest and lowest temperature
// of a day; ok is false when the day has no values.
func DayExtremes(temperature models.Series, day int) (maxIdx, minIdx int, ok bool) {
	start := day * models.HoursPerDay
	maxIdx, minIdx = -1, -1
	for i := start; i < start+models.HoursPerDay && i < len(temperature); i++ {
		v := temperature[i]
		if math.IsNaN(v) {
			continue
		}
		if maxIdx < 0 || v > temperature[maxIdx] {
			maxIdx = i
		}
		if minIdx < 0 || v < temperature[minIdx] {
			minIdx = i
		}
	}
	return maxIdx, minIdx, maxIdx >= 0
}

// NiceTicks returns up to about count evenly spaced round values within [min, max]
func NiceTicks(min, max float64, count int) []float64 {
	if count < 1 || max <= min {
		return nil
	}
	raw := (max - min) / float64(count)
	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	step := magnitude * 10
	for _, m := range []float64{1, 2, 2.5, 5, 10} {
		if raw <= m*magnitude {
			step = m * magnitude
			break
		}
	}
	var ticks []float64
	for v := math.Ceil(min/step) * step; v <= max+step*1e-9; v += step {
		ticks = append(ticks, math.Round(v/step)*step)
	}
	return ticks
}
