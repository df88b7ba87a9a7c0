package meteoswiss

import (
	"math"

	"meteoswiss-forecast/models"
)

// chartDay is one day of the forecast-chart document
type chartDay struct {
	MinDate       int64         `json:"min_date"` // ms
	Rainfall      [][]*float64  `json:"rainfall"`
	Sunshine      [][]*float64  `json:"sunshine"`
	Temperature   [][]*float64  `json:"temperature"`
	VarianceRain  [][]*float64  `json:"variance_rain"`
	VarianceRange [][]*float64  `json:"variance_range"`
	Wind          subfield      `json:"wind"`
	WindGustPeak  subfield      `json:"wind_gust_peak"`
	Symbols       []chartSymbol `json:"symbols"`
}

type subfield struct {
	Data [][]*float64 `json:"data"`
}

type chartSymbol struct {
	Timestamp       int64 `json:"timestamp"` // ms
	WeatherSymbolID int   `json:"weather_symbol_id"`
}

// cell returns rows[hour][index] or NaN when it is absent
func cell(rows [][]*float64, hour, index int) float64 {
	if hour >= len(rows) || index >= len(rows[hour]) || rows[hour][index] == nil {
		return math.NaN()
	}
	return *rows[hour][index]
}

// flattenNormal concatenates column index of a per-day topic over days
func flattenNormal(days []chartDay, topic func(chartDay) [][]*float64, index int) models.Series {
	out := make(models.Series, 0, len(days)*models.HoursPerDay)
	for _, day := range days {
		rows := topic(day)
		for hour := 0; hour < models.HoursPerDay; hour++ {
			out = append(out, cell(rows, hour, index))
		}
	}
	return out
}

// flattenSubfield concatenates column index of the data sub-field of a topic
func flattenSubfield(days []chartDay, topic func(chartDay) subfield, index int) models.Series {
	return flattenNormal(days, func(d chartDay) [][]*float64 { return topic(d).Data }, index)
}

// flattenVariance returns the min and max columns of a [ts, min, max] topic
func flattenVariance(days []chartDay, topic func(chartDay) [][]*float64) (min, max models.Series) {
	return flattenNormal(days, topic, 1), flattenNormal(days, topic, 2)
}

// flattenSymbols returns symbol timestamps (unix seconds) and codes, 8 per day
func flattenSymbols(days []chartDay) ([]int64, []int) {
	timestamps := make([]int64, 0, len(days)*models.SymbolsPerDay)
	ids := make([]int, 0, len(days)*models.SymbolsPerDay)
	for _, day := range days {
		for i := 0; i < models.SymbolsPerDay && i < len(day.Symbols); i++ {
			timestamps = append(timestamps, day.Symbols[i].Timestamp/1000)
			ids = append(ids, day.Symbols[i].WeatherSymbolID)
		}
	}
	return timestamps, ids
}

// flattenTimestamps reads the hour timestamps from the rainfall topic,
// falling back to min_date plus the hour when a row is missing.
func flattenTimestamps(days []chartDay) []int64 {
	out := make([]int64, 0, len(days)*models.HoursPerDay)
	for _, day := range days {
		for hour := 0; hour < models.HoursPerDay; hour++ {
			ts := cell(day.Rainfall, hour, 0)
			if math.IsNaN(ts) {
				out = append(out, day.MinDate/1000+int64(hour)*3600)
				continue
			}
			out = append(out, int64(ts)/1000)
		}
	}
	return out
}

// flatten turns the per-day document into a Forecast
func flatten(days []chartDay) models.Forecast {
	f := models.Forecast{
		NoOfDays:     len(days),
		Timestamps:   flattenTimestamps(days),
		Rainfall:     flattenNormal(days, func(d chartDay) [][]*float64 { return d.Rainfall }, 1),
		Sunshine:     flattenNormal(days, func(d chartDay) [][]*float64 { return d.Sunshine }, 1),
		Temperature:  flattenNormal(days, func(d chartDay) [][]*float64 { return d.Temperature }, 1),
		Wind:         flattenSubfield(days, func(d chartDay) subfield { return d.Wind }, 1),
		WindGustPeak: flattenSubfield(days, func(d chartDay) subfield { return d.WindGustPeak }, 1),
	}
	f.RainfallVarianceMin, f.RainfallVarianceMax = flattenVariance(days, func(d chartDay) [][]*float64 { return d.VarianceRain })
	f.TemperatureVarianceMin, f.TemperatureVarianceMax = flattenVariance(days, func(d chartDay) [][]*float64 { return d.VarianceRange })
	f.SymbolsTimestamps, f.Symbols = flattenSymbols(days)
	return f
}
