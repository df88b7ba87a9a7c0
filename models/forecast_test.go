package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForecast(days int) Forecast {
	n := days * HoursPerDay
	f := Forecast{
		ZipCode:   8001,
		NoOfDays:  days,
		UTCOffset: 2,
	}
	start := time.Date(2024, 6, 9, 22, 0, 0, 0, time.UTC).Unix() // local midnight at UTC+2
	for i := 0; i < n; i++ {
		f.Timestamps = append(f.Timestamps, start+int64(i)*3600)
		f.Rainfall = append(f.Rainfall, float64(i%3))
		f.RainfallVarianceMin = append(f.RainfallVarianceMin, 0)
		f.RainfallVarianceMax = append(f.RainfallVarianceMax, 1)
		f.Temperature = append(f.Temperature, 10+float64(i%24)/2)
		f.TemperatureVarianceMin = append(f.TemperatureVarianceMin, 9)
		f.TemperatureVarianceMax = append(f.TemperatureVarianceMax, 22)
		f.Sunshine = append(f.Sunshine, 30)
		f.Wind = append(f.Wind, 5)
		f.WindGustPeak = append(f.WindGustPeak, 12)
	}
	for i := 0; i < days*SymbolsPerDay; i++ {
		f.Symbols = append(f.Symbols, 1+i%5)
		f.SymbolsTimestamps = append(f.SymbolsTimestamps, start+int64(i)*3*3600)
	}
	return f
}

func TestSeriesJSONNullIsNaN(t *testing.T) {
	s := Series{1.5, math.NaN(), 3}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "[1.5,null,3]", string(data))

	var decoded Series
	require.NoError(t, json.Unmarshal([]byte("[null, 2, null]"), &decoded))
	require.Len(t, decoded, 3)
	assert.True(t, math.IsNaN(decoded[0]))
	assert.Equal(t, 2.0, decoded[1])
	assert.True(t, math.IsNaN(decoded[2]))
}

func TestSeriesMinMaxSkipNaN(t *testing.T) {
	s := Series{math.NaN(), 4, -2, math.NaN(), 7}
	max, ok := s.Max()
	assert.True(t, ok)
	assert.Equal(t, 7.0, max)
	min, ok := s.Min()
	assert.True(t, ok)
	assert.Equal(t, -2.0, min)

	_, ok = NaNSeries(3).Max()
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	f := sampleForecast(2)
	require.NoError(t, f.Validate())

	short := sampleForecast(2)
	short.Wind = short.Wind[:10]
	assert.ErrorIs(t, short.Validate(), ErrInvalidForecast)

	gap := sampleForecast(1)
	gap.Timestamps[5] += 60
	assert.ErrorIs(t, gap.Validate(), ErrInvalidForecast)

	tooLong := sampleForecast(1)
	tooLong.NoOfDays = 8
	assert.ErrorIs(t, tooLong.Validate(), ErrInvalidForecast)
}

func TestTruncateKeepsAlignment(t *testing.T) {
	f := sampleForecast(3)
	f.DayNames = []string{"a", "b", "c"}

	cut := f.Truncate(2)
	require.NoError(t, cut.Validate())
	assert.Equal(t, 2, cut.NoOfDays)
	assert.Len(t, cut.Rainfall, 48)
	assert.Len(t, cut.Symbols, 16)
	assert.Equal(t, []string{"a", "b"}, cut.DayNames)

	// original untouched
	assert.Len(t, f.Rainfall, 72)
	assert.Equal(t, f, f.Truncate(5))
}

func TestHourIndexAndZone(t *testing.T) {
	f := sampleForecast(1)
	assert.Equal(t, 0, f.DayStart(0).Hour())
	assert.Equal(t, 0, f.HourIndex(time.Unix(f.Timestamps[0], 0)))
	assert.Equal(t, 5, f.HourIndex(time.Unix(f.Timestamps[5]+1799, 0)))
	assert.Equal(t, -1, f.HourIndex(time.Unix(f.Timestamps[0]-1, 0)))
	assert.Equal(t, -1, f.HourIndex(time.Unix(f.Timestamps[23]+3600, 0)))
}

func TestNewNextRain(t *testing.T) {
	nr := NewNextRain(3, 96)
	assert.Equal(t, "3", nr.NextRain)
	assert.Equal(t, "3", nr.NextRainText)
	assert.Equal(t, "96", nr.NextPossibleRain)
	assert.Equal(t, ">24", nr.NextPossibleRainText)
	assert.Equal(t, "24", NewNextRain(24, 0).NextRainText)
}
