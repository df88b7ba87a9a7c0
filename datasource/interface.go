package datasource

import (
	"context"
	"errors"

	"meteoswiss-forecast/models"
)

var (
	// ErrNotFound is returned when the upstream answers 404
	ErrNotFound = errors.New("not found upstream")
	// ErrUnknownZipCode is returned when a provider does not know the postal code
	ErrUnknownZipCode = errors.New("unknown zip code")
)

// ForecastSource is an interface for services that can fetch hourly point forecasts
type ForecastSource interface {
	// FetchForecast fetches the forecast for a postal code for at most the specified number of days
	FetchForecast(ctx context.Context, zipCode int, days int) (models.Forecast, error)

	// Name returns the source's name
	Name() string
}

// Invalidator is implemented by sources that keep fetched forecasts
type Invalidator interface {
	Invalidate(zipCode int)
}

// LocationSource resolves a postal code to a city name
type LocationSource interface {
	CityName(ctx context.Context, zipCode int) (string, error)
	Name() string
}

// MeasurementSource provides measured sensor values of the last hours
type MeasurementSource interface {
	FetchMeasurement(ctx context.Context, sensor string) (models.Measurement, error)
	Name() string
}
