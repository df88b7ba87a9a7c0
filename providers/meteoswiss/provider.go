package meteoswiss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"
)

const (
	// DefaultBaseURL is the MeteoSwiss web site
	DefaultBaseURL = "https://www.meteoschweiz.admin.ch"
	// DefaultIndexPage is sent as Referer, the chart endpoint refuses requests without one
	DefaultIndexPage = "home.html?tab=overview"
	// DefaultVersionsPath lists the currently published product versions
	DefaultVersionsPath = "/product/output/versions.json"
	// DefaultLanguage is the language segment of the data URL
	DefaultLanguage = "de"

	chartPathFormat    = "%s/product/output/forecast-chart/version__%s/%s/%d00.json"
	locationPathFormat = "%s/etc/designs/meteoswiss/ajax/location/%d00.json"
)

// Config configures the MeteoSwiss providers
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	Language     string        `yaml:"language"`
	Version      string        `yaml:"version"`       // fixed model version; resolved when empty
	VersionsPath string        `yaml:"versions_path"` // relative to BaseURL
	AppBaseURL   string        `yaml:"app_base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.VersionsPath == "" {
		c.VersionsPath = DefaultVersionsPath
	}
	if c.AppBaseURL == "" {
		c.AppBaseURL = DefaultAppBaseURL
	}
	c.AppBaseURL = strings.TrimRight(c.AppBaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// ChartProvider reads the forecast-chart documents behind the MeteoSwiss web site
type ChartProvider struct {
	cfg      Config
	fetcher  *datasource.HTTPFetcher
	versions *VersionResolver
}

// NewChartProvider creates a new forecast-chart provider
func NewChartProvider(cfg Config) *ChartProvider {
	cfg = cfg.withDefaults()
	fetcher := datasource.NewHTTPFetcher(cfg.Timeout).WithReferer(cfg.BaseURL + "/" + DefaultIndexPage)
	return &ChartProvider{
		cfg:      cfg,
		fetcher:  fetcher,
		versions: NewVersionResolver(fetcher, cfg.BaseURL+cfg.VersionsPath, "forecast-chart"),
	}
}

// Name returns the provider name
func (p *ChartProvider) Name() string {
	return "MeteoSwiss"
}

// DataURL builds the forecast-chart URL for a version and postal code
func (p *ChartProvider) DataURL(version string, zipCode int) string {
	return fmt.Sprintf(chartPathFormat, p.cfg.BaseURL, version, p.cfg.Language, zipCode)
}

// FetchForecast downloads and flattens the forecast for zipCode.
// days larger than what is published is clamped; days <= 0 means all.
func (p *ChartProvider) FetchForecast(ctx context.Context, zipCode int, days int) (models.Forecast, error) {
	version := p.cfg.Version
	if version == "" {
		v, err := p.versions.Resolve(ctx)
		if err != nil {
			return models.Forecast{}, fmt.Errorf("failed to resolve model version: %w", err)
		}
		version = v
	}

	dataURL := p.DataURL(version, zipCode)
	logger.Debugf("Downloading forecast data from %s", dataURL)

	body, _, err := p.fetcher.Get(ctx, dataURL)
	if err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return models.Forecast{}, fmt.Errorf("%w: %d", datasource.ErrUnknownZipCode, zipCode)
		}
		return models.Forecast{}, fmt.Errorf("failed to download forecast: %w", err)
	}

	var chart []chartDay
	if err := json.Unmarshal(body, &chart); err != nil {
		return models.Forecast{}, fmt.Errorf("failed to parse forecast: %w", err)
	}
	if len(chart) == 0 {
		return models.Forecast{}, fmt.Errorf("forecast for %d contains no days", zipCode)
	}

	n := clampDays(len(chart), days)
	if n != len(chart) {
		logger.Debugf("The forecast contains data for %d days, using the first %d", len(chart), n)
	}

	modelTime, err := ModelCalculationTime(dataURL)
	if err != nil {
		return models.Forecast{}, err
	}

	forecast := flatten(chart[:n])
	forecast.ZipCode = zipCode
	forecast.Source = p.Name()
	forecast.DataURL = dataURL
	forecast.ModelCalculationTimestamp = modelTime.Unix()
	forecast.Updated = time.Now()

	if err := forecast.Validate(); err != nil {
		return models.Forecast{}, err
	}
	return forecast, nil
}

// clampDays limits the requested day count to what is available and to models.MaxDays
func clampDays(available, requested int) int {
	n := available
	if requested > 0 && requested < n {
		n = requested
	}
	if n > models.MaxDays {
		n = models.MaxDays
	}
	return n
}

// LocationProvider resolves postal codes to city names
type LocationProvider struct {
	cfg     Config
	fetcher *datasource.HTTPFetcher
}

// NewLocationProvider creates a new location provider
func NewLocationProvider(cfg Config) *LocationProvider {
	cfg = cfg.withDefaults()
	return &LocationProvider{
		cfg:     cfg,
		fetcher: datasource.NewHTTPFetcher(cfg.Timeout),
	}
}

// Name returns the provider name
func (p *LocationProvider) Name() string {
	return "MeteoSwiss Locations"
}

// CityName fetches the city name of a postal code
func (p *LocationProvider) CityName(ctx context.Context, zipCode int) (string, error) {
	url := fmt.Sprintf(locationPathFormat, p.cfg.BaseURL, zipCode)
	body, _, err := p.fetcher.Get(ctx, url)
	if err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return "", fmt.Errorf("%w: %d", datasource.ErrUnknownZipCode, zipCode)
		}
		return "", fmt.Errorf("failed to fetch location: %w", err)
	}

	var location struct {
		CityName string `json:"city_name"`
	}
	if err := json.Unmarshal(body, &location); err != nil {
		return "", fmt.Errorf("failed to parse location: %w", err)
	}
	logger.Debugf("Location of %d is %s", zipCode, location.CityName)
	return location.CityName, nil
}

var (
	_ datasource.ForecastSource = (*ChartProvider)(nil)
	_ datasource.LocationSource = (*LocationProvider)(nil)
)
