package meteoswiss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"
)

// DefaultAppBaseURL is the backend of the MeteoSwiss mobile app
const DefaultAppBaseURL = "https://app-prod-ws.meteoswiss-app.ch"

const plzDetailFormat = "%s/v1/plzDetail?plz=%d00"

// appGraph is the graph block of a plzDetail answer. Hourly arrays start at
// startLowResolution, 3-hourly arrays at the same instant.
type appGraph struct {
	Start              int64      `json:"start"` // ms
	StartLowResolution int64      `json:"startLowResolution"`
	Precipitation1h    []*float64 `json:"precipitation1h"`
	PrecipitationMin1h []*float64 `json:"precipitationMin1h"`
	PrecipitationMax1h []*float64 `json:"precipitationMax1h"`
	TemperatureMean1h  []*float64 `json:"temperatureMean1h"`
	TemperatureMin1h   []*float64 `json:"temperatureMin1h"`
	TemperatureMax1h   []*float64 `json:"temperatureMax1h"`
	Sunshine1h         []*float64 `json:"sunshine1h"`
	WindSpeed3h        []*float64 `json:"windSpeed3h"`
	WindGustPeak3h     []*float64 `json:"windGustPeak3h"`
	WeatherIcon3h      []*int     `json:"weatherIcon3h"`
}

func (g appGraph) hourlyStart() int64 {
	if g.StartLowResolution != 0 {
		return g.StartLowResolution / 1000
	}
	return g.Start / 1000
}

func (g appGraph) hourlyLength() int {
	n := len(g.Precipitation1h)
	if len(g.TemperatureMean1h) > n {
		n = len(g.TemperatureMean1h)
	}
	return n
}

// AppProvider reads the flat hourly arrays served to the MeteoSwiss app
type AppProvider struct {
	cfg     Config
	fetcher *datasource.HTTPFetcher
	zone    *time.Location
}

// NewAppProvider creates a new app API provider. Days are aligned to
// midnight in zone.
func NewAppProvider(cfg Config, zone *time.Location) *AppProvider {
	cfg = cfg.withDefaults()
	if zone == nil {
		zone = time.UTC
	}
	return &AppProvider{
		cfg:     cfg,
		fetcher: datasource.NewHTTPFetcher(cfg.Timeout),
		zone:    zone,
	}
}

// Name returns the provider name
func (p *AppProvider) Name() string {
	return "MeteoSwiss App"
}

// FetchForecast downloads the plzDetail document and reshapes it to whole local days
func (p *AppProvider) FetchForecast(ctx context.Context, zipCode int, days int) (models.Forecast, error) {
	url := fmt.Sprintf(plzDetailFormat, p.cfg.AppBaseURL, zipCode)
	body, header, err := p.fetcher.Get(ctx, url)
	if err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return models.Forecast{}, fmt.Errorf("%w: %d", datasource.ErrUnknownZipCode, zipCode)
		}
		return models.Forecast{}, fmt.Errorf("failed to download forecast: %w", err)
	}

	var detail struct {
		Graph appGraph `json:"graph"`
	}
	if err := json.Unmarshal(body, &detail); err != nil {
		return models.Forecast{}, fmt.Errorf("failed to parse forecast: %w", err)
	}

	forecast, err := p.reshape(detail.Graph, days)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("forecast for %d: %w", zipCode, err)
	}

	modelTime := time.Now()
	if lm := header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			modelTime = t
		} else {
			logger.Warnf("Ignoring unparsable Last-Modified header %q: %v", lm, err)
		}
	}

	forecast.ZipCode = zipCode
	forecast.Source = p.Name()
	forecast.DataURL = url
	forecast.ModelCalculationTimestamp = modelTime.Unix()
	forecast.Updated = time.Now()
	return forecast, forecast.Validate()
}

// reshape cuts the arrays to whole days starting at the first local midnight
func (p *AppProvider) reshape(g appGraph, days int) (models.Forecast, error) {
	start := g.hourlyStart()
	if start == 0 || g.hourlyLength() == 0 {
		return models.Forecast{}, errors.New("no hourly data")
	}

	skip := hoursToMidnight(time.Unix(start, 0).In(p.zone))
	available := (g.hourlyLength() - skip) / models.HoursPerDay
	if available < 1 {
		return models.Forecast{}, errors.New("less than one full day of data")
	}
	n := clampDays(available, days)
	hours := n * models.HoursPerDay

	hourly := func(arr []*float64) models.Series {
		out := make(models.Series, hours)
		for h := range out {
			out[h] = at(arr, skip+h)
		}
		return out
	}
	threeHourly := func(arr []*float64) models.Series {
		out := make(models.Series, hours)
		for h := range out {
			out[h] = at(arr, (skip+h)/3)
		}
		return out
	}

	f := models.Forecast{
		NoOfDays:               n,
		Rainfall:               hourly(g.Precipitation1h),
		RainfallVarianceMin:    hourly(g.PrecipitationMin1h),
		RainfallVarianceMax:    hourly(g.PrecipitationMax1h),
		Temperature:            hourly(g.TemperatureMean1h),
		TemperatureVarianceMin: hourly(g.TemperatureMin1h),
		TemperatureVarianceMax: hourly(g.TemperatureMax1h),
		Sunshine:               hourly(g.Sunshine1h),
		Wind:                   threeHourly(g.WindSpeed3h),
		WindGustPeak:           threeHourly(g.WindGustPeak3h),
	}
	for h := 0; h < hours; h++ {
		f.Timestamps = append(f.Timestamps, start+int64(skip+h)*3600)
	}
	for j := (skip + 2) / 3; 3*j < skip+hours; j++ {
		if j >= len(g.WeatherIcon3h) {
			break
		}
		id := 0
		if g.WeatherIcon3h[j] != nil {
			id = *g.WeatherIcon3h[j]
		}
		f.Symbols = append(f.Symbols, id)
		f.SymbolsTimestamps = append(f.SymbolsTimestamps, start+int64(3*j)*3600)
	}
	return f, nil
}

// at returns arr[i] or NaN
func at(arr []*float64, i int) float64 {
	if i < 0 || i >= len(arr) || arr[i] == nil {
		return math.NaN()
	}
	return *arr[i]
}

// hoursToMidnight returns the number of whole hours from t to the next local midnight (0 at midnight)
func hoursToMidnight(t time.Time) int {
	if t.Hour() == 0 && t.Minute() == 0 {
		return 0
	}
	next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
	return int(next.Sub(t).Round(time.Hour) / time.Hour)
}

var _ datasource.ForecastSource = (*AppProvider)(nil)
