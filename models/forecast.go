package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// HoursPerDay is the number of hourly samples per forecast day
	HoursPerDay = 24
	// SymbolsPerDay is the number of weather symbols per forecast day (one every 3 hours)
	SymbolsPerDay = 8
	// MaxDays is the longest forecast MeteoSwiss publishes
	MaxDays = 7
)

// ErrInvalidForecast is returned by Validate when the series are not aligned
var ErrInvalidForecast = errors.New("invalid forecast")

// Series is a list of hourly values. Missing values are NaN and serialize as JSON null.
type Series []float64

// MarshalJSON encodes NaN and Inf as null
func (s Series) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if math.IsNaN(s[i]) || math.IsInf(s[i], 0) {
			continue
		}
		v := s[i]
		out[i] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes null entries as NaN
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

// Max returns the largest non-NaN value; ok is false if there is none
func (s Series) Max() (max float64, ok bool) {
	for _, v := range s {
		if math.IsNaN(v) {
			continue
		}
		if !ok || v > max {
			max, ok = v, true
		}
	}
	return max, ok
}

// Min returns the smallest non-NaN value; ok is false if there is none
func (s Series) Min() (min float64, ok bool) {
	for _, v := range s {
		if math.IsNaN(v) {
			continue
		}
		if !ok || v < min {
			min, ok = v, true
		}
	}
	return min, ok
}

// NaNSeries returns a series of n missing values
func NaNSeries(n int) Series {
	s := make(Series, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// Forecast is an hourly point forecast for one postal code.
// All hourly series share the index of Timestamps.
type Forecast struct {
	ZipCode                   int      `json:"zipCode"`
	CityName                  string   `json:"cityName,omitempty"`
	Source                    string   `json:"source"`
	DataURL                   string   `json:"dataUrl,omitempty"`
	ModelCalculationTimestamp int64    `json:"modelCalculationTimestamp"` // unix seconds, UTC
	UTCOffset                 int      `json:"utcOffset"`                 // hours, used for labels
	NoOfDays                  int      `json:"noOfDays"`
	DayNames                  []string `json:"dayNames"`
	Timestamps                []int64  `json:"timestamps"` // unix seconds, UTC
	FormattedTime             []string `json:"formatedTime"`

	Rainfall               Series `json:"rainfall"`               // mm/h
	RainfallVarianceMin    Series `json:"rainfallVarianceMin"`    // mm/h
	RainfallVarianceMax    Series `json:"rainfallVarianceMax"`    // mm/h
	Temperature            Series `json:"temperature"`            // °C
	TemperatureVarianceMin Series `json:"temperatureVarianceMin"` // °C
	TemperatureVarianceMax Series `json:"temperatureVarianceMax"` // °C
	Sunshine               Series `json:"sunshine"`               // minutes per hour
	Wind                   Series `json:"wind"`                   // km/h
	WindGustPeak           Series `json:"windGustPeak"`           // km/h

	Symbols           []int   `json:"symbols"`
	SymbolsTimestamps []int64 `json:"symbolsTimestamps"` // unix seconds, UTC

	Updated time.Time `json:"updated"` // when this forecast was fetched
}

// hourlySeries returns all hourly series with their names
func (f *Forecast) hourlySeries() map[string]Series {
	return map[string]Series{
		"rainfall":               f.Rainfall,
		"rainfallVarianceMin":    f.RainfallVarianceMin,
		"rainfallVarianceMax":    f.RainfallVarianceMax,
		"temperature":            f.Temperature,
		"temperatureVarianceMin": f.TemperatureVarianceMin,
		"temperatureVarianceMax": f.TemperatureVarianceMax,
		"sunshine":               f.Sunshine,
		"wind":                   f.Wind,
		"windGustPeak":           f.WindGustPeak,
	}
}

// Validate checks that the series are aligned on a contiguous hourly axis
func (f *Forecast) Validate() error {
	if f.NoOfDays < 1 || f.NoOfDays > MaxDays {
		return fmt.Errorf("%w: %d days (allowed 1..%d)", ErrInvalidForecast, f.NoOfDays, MaxDays)
	}
	if len(f.Timestamps) != f.NoOfDays*HoursPerDay {
		return fmt.Errorf("%w: %d timestamps for %d days", ErrInvalidForecast, len(f.Timestamps), f.NoOfDays)
	}
	for i := 1; i < len(f.Timestamps); i++ {
		if f.Timestamps[i]-f.Timestamps[i-1] != 3600 {
			return fmt.Errorf("%w: timestamps %d and %d are not one hour apart", ErrInvalidForecast, i-1, i)
		}
	}
	for name, s := range f.hourlySeries() {
		if len(s) != len(f.Timestamps) {
			return fmt.Errorf("%w: %s has %d values, expected %d", ErrInvalidForecast, name, len(s), len(f.Timestamps))
		}
	}
	if len(f.Symbols) != len(f.SymbolsTimestamps) {
		return fmt.Errorf("%w: %d symbols with %d timestamps", ErrInvalidForecast, len(f.Symbols), len(f.SymbolsTimestamps))
	}
	return nil
}

// Zone returns the fixed zone used for day names and labels
func (f *Forecast) Zone() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", f.UTCOffset), f.UTCOffset*3600)
}

// Time returns the i-th timestamp in the forecast's zone
func (f *Forecast) Time(i int) time.Time {
	return time.Unix(f.Timestamps[i], 0).In(f.Zone())
}

// DayStart returns the first timestamp of the given day
func (f *Forecast) DayStart(day int) time.Time {
	return f.Time(day * HoursPerDay)
}

// HourIndex returns the index of the hour containing t, or -1 if t is outside the forecast
func (f *Forecast) HourIndex(t time.Time) int {
	if len(f.Timestamps) == 0 {
		return -1
	}
	delta := t.Unix() - f.Timestamps[0]
	if delta < 0 {
		return -1
	}
	idx := int(delta / 3600)
	if idx >= len(f.Timestamps) {
		return -1
	}
	return idx
}

// Truncate returns a copy limited to the first days days
func (f Forecast) Truncate(days int) Forecast {
	if days >= f.NoOfDays || days < 1 {
		return f
	}
	n := days * HoursPerDay
	cut := func(s Series) Series {
		if len(s) <= n {
			return s
		}
		return append(Series(nil), s[:n]...)
	}
	f.NoOfDays = days
	if len(f.DayNames) > days {
		f.DayNames = append([]string(nil), f.DayNames[:days]...)
	}
	f.Timestamps = append([]int64(nil), f.Timestamps[:n]...)
	if len(f.FormattedTime) > n {
		f.FormattedTime = append([]string(nil), f.FormattedTime[:n]...)
	}
	f.Rainfall = cut(f.Rainfall)
	f.RainfallVarianceMin = cut(f.RainfallVarianceMin)
	f.RainfallVarianceMax = cut(f.RainfallVarianceMax)
	f.Temperature = cut(f.Temperature)
	f.TemperatureVarianceMin = cut(f.TemperatureVarianceMin)
	f.TemperatureVarianceMax = cut(f.TemperatureVarianceMax)
	f.Sunshine = cut(f.Sunshine)
	f.Wind = cut(f.Wind)
	f.WindGustPeak = cut(f.WindGustPeak)

	end := f.Timestamps[0] + int64(n)*3600
	var symbols []int
	var symbolTimes []int64
	for i, ts := range f.SymbolsTimestamps {
		if ts < end {
			symbols = append(symbols, f.Symbols[i])
			symbolTimes = append(symbolTimes, ts)
		}
	}
	f.Symbols = symbols
	f.SymbolsTimestamps = symbolTimes
	return f
}
