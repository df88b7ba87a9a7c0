package forecast

import (
	"time"

	"meteoswiss-forecast/models"
)

// NoRainHours is reported when no rain is expected within the forecast
const NoRainHours = 4 * 24

// NextRain returns the hours from the current hour until the first hour
// with rain and with possible rain (rain variance maximum above zero).
func NextRain(f *models.Forecast, now time.Time) models.NextRain {
	hourStart := now.Truncate(time.Hour).Unix()
	rain, possible := -1, -1
	for i, ts := range f.Timestamps {
		if ts < hourStart {
			continue
		}
		hours := int((ts - hourStart) / 3600)
		if rain < 0 && i < len(f.Rainfall) && f.Rainfall[i] > 0 {
			rain = hours
		}
		if possible < 0 && i < len(f.RainfallVarianceMax) && f.RainfallVarianceMax[i] > 0 {
			possible = hours
		}
		if rain >= 0 && possible >= 0 {
			break
		}
	}
	if rain < 0 {
		rain = NoRainHours
	}
	if possible < 0 {
		possible = NoRainHours
	}
	return models.NewNextRain(rain, possible)
}
