package chart

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"meteoswiss-forecast/models"
	"meteoswiss-forecast/models/modeltest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(bands [9]float64) float64 {
	total := 0.0
	for _, b := range bands {
		total += b
	}
	return total
}

func TestRainBandsSumToRain(t *testing.T) {
	for _, rain := range []float64{0.05, 0.2, 1, 2.5, 7.3, 42, 100} {
		bands := RainBands(rain)
		assert.InDelta(t, rain, sum(bands), 1e-9, "rain %v", rain)
		for i, b := range bands {
			assert.GreaterOrEqual(t, b, 0.0)
			assert.LessOrEqual(t, b, RainStepSizes[i]+1e-9)
		}
	}
}

func TestRainBandsFillLowerBandsFirst(t *testing.T) {
	bands := RainBands(RainSteps[1] + 0.01)
	assert.InDelta(t, RainStepSizes[0], bands[0], 1e-9)
	assert.InDelta(t, RainStepSizes[1], bands[1], 1e-9)
	assert.InDelta(t, 0.01, bands[2], 1e-9)
	assert.Zero(t, bands[3])
}

func TestRainBandsZeroAndNaN(t *testing.T) {
	assert.Equal(t, [9]float64{}, RainBands(0))
	assert.Equal(t, [9]float64{}, RainBands(-1))
	assert.Equal(t, [9]float64{}, RainBands(math.NaN()))
	assert.InDelta(t, 100, sum(RainBands(250)), 1e-9)
}

func TestNiceTicks(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, NiceTicks(0, 5, 5))
	assert.Equal(t, []float64{-10, -5, 0, 5, 10}, NiceTicks(-12, 12, 6))
	assert.InDeltaSlice(t, []float64{0, 0.2, 0.4, 0.6, 0.8, 1}, NiceTicks(0, 1, 5), 1e-9)
	assert.Nil(t, NiceTicks(3, 3, 5))
	assert.Nil(t, NiceTicks(0, 3, 0))
}

func TestClampLabel(t *testing.T) {
	// fits: unchanged
	assert.Equal(t, 150.0, ClampLabel(150, 40, 100, 200))
	// too close to the day start
	assert.InDelta(t, 100+20+1.5, ClampLabel(105, 40, 100, 200), 1e-9)
	// too close to the day end
	assert.InDelta(t, 200-20-1.5, ClampLabel(199, 40, 100, 200), 1e-9)
}

func TestDayExtremes(t *testing.T) {
	temp := models.NaNSeries(48)
	temp[5], temp[7], temp[20] = 3, 15, -2
	maxIdx, minIdx, ok := DayExtremes(temp, 0)
	require.True(t, ok)
	assert.Equal(t, 7, maxIdx)
	assert.Equal(t, 20, minIdx)

	_, _, ok = DayExtremes(temp, 1)
	assert.False(t, ok)
}

func TestLayout(t *testing.T) {
	f := modeltest.Forecast(2)
	l, err := NewLayout(1920, 300, &f, false)
	require.NoError(t, err)

	assert.Equal(t, 48, l.Hours)
	assert.Equal(t, 3.0, l.RainMax) // max rain 2 plus 1
	assert.Equal(t, l.Plot.Min.X, l.X(0))
	assert.Equal(t, l.Plot.Max.X, l.X(48))
	assert.Equal(t, l.Plot.Max.Y, l.RainY(0))
	assert.Equal(t, l.Plot.Min.Y, l.RainY(l.RainMax))

	// extremes sit inside the padding
	assert.InDelta(t, l.Plot.Min.Y+temperaturePadding, l.TempY(21.5), 1)
	assert.InDelta(t, l.Plot.Max.Y-temperaturePadding, l.TempY(10), 1)

	meta := l.Metadata()
	assert.Equal(t, models.Metadata{
		ImageWidth:  1920,
		ImageHeight: 300,
		FirstDayX:   MarginLeft,
		FirstDayY:   MarginBottom,
		DayWidth:    (1920 - MarginLeft - MarginRight) / 2,
		DayHeight:   300 - MarginTop - MarginBottom,
		NoOfDays:    2,
	}, meta)

	withVariance, err := NewLayout(1920, 300, &f, true)
	require.NoError(t, err)
	assert.Equal(t, 3.0, withVariance.RainMax)
}

func TestLayoutDaysMatchMetadata(t *testing.T) {
	f := modeltest.Forecast(3)
	l, err := NewLayout(801, 250, &f, false)
	require.NoError(t, err)

	meta := l.Metadata()
	assert.Equal(t, 240, meta.DayWidth)
	assert.Equal(t, 801-MarginLeft-MarginRight-1, l.Plot.Dx())
	for day := 0; day <= 3; day++ {
		first, last := l.DayBounds(day)
		assert.Equal(t, meta.FirstDayX+day*meta.DayWidth, first)
		assert.Equal(t, first+meta.DayWidth-1, last)
	}
	assert.Equal(t, l.Plot.Max.X, l.DayX(3))
}

func TestLayoutTooSmall(t *testing.T) {
	f := modeltest.Forecast(7)
	_, err := NewLayout(120, 300, &f, false)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewLayout(1920, 160, &f, false)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestTemperatureRangeFlatSeries(t *testing.T) {
	min, max := TemperatureRange(models.Series{5, 5, 5}, 200)
	assert.Less(t, min, 4.5)
	assert.Greater(t, max, 5.5)

	min, max = TemperatureRange(models.NaNSeries(3), 200)
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 1.0, max)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	opts := DefaultOptions()
	opts.TimeDivisions = 0
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)

	opts = DefaultOptions()
	opts.SymbolZoom = 0
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)

	opts = DefaultOptions()
	opts.Height = 100
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
}

func writeSymbol(t *testing.T, dir string, id int) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for x := 0; x < 60; x++ {
		for y := 0; y < 60; y++ {
			img.Set(x, y, color.RGBA{R: 0, G: 200, B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(dir, strconv.Itoa(id)+".png"), buf.Bytes(), 0o644))
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	writeSymbol(t, dir, 1)

	f := modeltest.Forecast(2)
	f.Rainfall[10] = math.NaN()
	f.Temperature[30] = math.NaN()

	opts := DefaultOptions()
	opts.Width, opts.Height = 800, 250
	opts.MinMaxTemperatures = true
	opts.RainVariance = true
	opts.ShowCityName = true

	measured := &models.Measurement{
		Sensor:     "sensor.rain",
		Timestamps: []int64{f.Timestamps[0], f.Timestamps[0] + 600, f.Timestamps[0] + 1200},
		Values:     models.Series{0.5, 1, 0},
	}

	r := NewRenderer(NewSymbolSet(dir))
	data, meta, err := r.Render(&f, opts, Overlay{CityName: "Zürich", MeasuredRain: measured, MeasuredTemperature: measured})
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 250, cfg.Height)

	assert.Equal(t, "Zürich", meta.City)
	assert.Equal(t, 8001, meta.ZipCode)
	assert.Equal(t, 2, meta.NoOfDays)
	assert.Equal(t, f.Timestamps[0], meta.FirstDayTimestamp)
	assert.Equal(t, f.ModelCalculationTimestamp, meta.ModelTimestamp)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	l, err := NewLayout(800, 250, &f, true)
	require.NoError(t, err)

	// symbol 1 sits above the first three hours
	x, y := l.X(1.5), l.Plot.Min.Y-MarginTop/2
	_, g, _, _ := img.At(x, y).RGBA()
	assert.Greater(t, g>>8, uint32(150))
}

func TestRenderDarkModeWithoutSymbols(t *testing.T) {
	f := modeltest.Forecast(1)
	opts := DefaultOptions()
	opts.Width, opts.Height = 400, 200
	opts.DarkMode = true
	opts.HideDataCopyright = true

	data, _, err := NewRenderer(nil).Render(&f, opts, Overlay{})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Zero(t, r+g+b)
}

func TestRenderRejectsInvalidForecast(t *testing.T) {
	f := modeltest.Forecast(1)
	f.Rainfall = f.Rainfall[:10]
	_, _, err := NewRenderer(nil).Render(&f, DefaultOptions(), Overlay{})
	assert.ErrorIs(t, err, models.ErrInvalidForecast)
}

func TestSymbolSetSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	writeSymbol(t, dir, 1)
	s := NewSymbolSet(dir)

	_, ok := s.Lookup(1)
	assert.True(t, ok)
	_, ok = s.Lookup(2)
	assert.False(t, ok)
	_, ok = s.Lookup(2)
	assert.False(t, ok)
}
