// Package modeltest builds forecasts for tests.
package modeltest

import (
	"time"

	"meteoswiss-forecast/models"
)

// Start is the first hour of forecasts built by Forecast: local midnight at UTC+2
var Start = time.Date(2024, 6, 9, 22, 0, 0, 0, time.UTC)

// Forecast returns a valid forecast for zip code 8001 covering days days from Start
func Forecast(days int) models.Forecast {
	n := days * models.HoursPerDay
	f := models.Forecast{
		ZipCode:                   8001,
		CityName:                  "Zürich",
		Source:                    "test",
		NoOfDays:                  days,
		UTCOffset:                 2,
		ModelCalculationTimestamp: Start.Add(-3 * time.Hour).Unix(),
		Updated:                   Start,
	}
	start := Start.Unix()
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
		f.FormattedTime = append(f.FormattedTime, time.Unix(f.Timestamps[i], 0).In(f.Zone()).Format("15:04"))
	}
	for d := 0; d < days; d++ {
		f.DayNames = append(f.DayNames, Start.AddDate(0, 0, d).In(f.Zone()).Format("Monday"))
	}
	for i := 0; i < days*models.SymbolsPerDay; i++ {
		f.Symbols = append(f.Symbols, 1+i%5)
		f.SymbolsTimestamps = append(f.SymbolsTimestamps, start+int64(i)*3*3600)
	}
	return f
}
