// Package config loads the service configuration from a YAML file, an
// optional .env file and MFG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"meteoswiss-forecast/forecast"
	"meteoswiss-forecast/history"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/providers/influxdb"
	"meteoswiss-forecast/providers/meteoswiss"
	"meteoswiss-forecast/storage"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MFG_SERVER_PORT
const EnvPrefix = "MFG_"

// Forecast source names
const (
	SourceChart = "chart"
	SourceApp   = "app"
)

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RateLimitConfig throttles upstream requests
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

// SourceConfig selects and decorates the forecast source
type SourceConfig struct {
	Provider         string            `yaml:"provider"` // chart or app
	MeteoSwiss       meteoswiss.Config `yaml:"meteoswiss"`
	RateLimit        RateLimitConfig   `yaml:"rate_limit"`
	ForecastCacheTTL time.Duration     `yaml:"forecast_cache_ttl"`
	LocationCacheTTL time.Duration     `yaml:"location_cache_ttl"`
}

// ForecastConfig holds the defaults of a generation
type ForecastConfig struct {
	Days       int           `yaml:"days"`
	Locale     string        `yaml:"locale"`
	UTCOffset  *int          `yaml:"utc_offset"`
	DateFormat string        `yaml:"date_format"`
	TimeFormat string        `yaml:"time_format"`
	MaxAge     time.Duration `yaml:"max_age"`
	SymbolsDir string        `yaml:"symbols_dir"`

	// ArtifactRetention removes the stored files of zip codes not generated
	// for this long; zero keeps them forever
	ArtifactRetention time.Duration `yaml:"artifact_retention"`
}

// CollectorConfig configures the background regeneration
type CollectorConfig struct {
	ZipCodes    []int         `yaml:"zip_codes"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Config is the complete service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LogLevel  string          `yaml:"log_level"`
	Source    SourceConfig    `yaml:"source"`
	Forecast  ForecastConfig  `yaml:"forecast"`
	InfluxDB  influxdb.Config `yaml:"influxdb"`
	Collector CollectorConfig `yaml:"collector"`

	// Backend sections are decoded by their packages
	Storage map[string]interface{} `yaml:"storage"`
	History map[string]interface{} `yaml:"history"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LogLevel: "INFO",
		Source: SourceConfig{
			Provider: SourceChart,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     1,
				Burst:   5,
			},
			ForecastCacheTTL: 10 * time.Minute,
			LocationCacheTTL: 24 * time.Hour,
		},
		Forecast: ForecastConfig{
			Days:       forecast.DefaultDays,
			Locale:     forecast.DefaultLocale,
			DateFormat: forecast.DefaultDateFormat,
			TimeFormat: forecast.DefaultTimeFormat,
			MaxAge:     forecast.DefaultMaxForecastAge,
			SymbolsDir: "./symbols",

			ArtifactRetention: 7 * 24 * time.Hour,
		},
		Collector: CollectorConfig{
			Interval:    30 * time.Minute,
			Concurrency: 2,
			Timeout:     60 * time.Second,
		},
		Storage: map[string]interface{}{},
		History: map[string]interface{}{},
	}
}

// Load reads envFile (ignored when missing), the YAML file at path (defaults
// only when missing) and applies MFG_* environment overrides.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logger.Debugf(".env file (%s) not loaded: %v", envFile, err)
		}
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Infof("Configuration file %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read configuration %s: %w", path, err)
	default:
		if err := Parse(cfg, data); err != nil {
			return nil, fmt.Errorf("failed to parse configuration %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse merges YAML data into cfg; keys missing in data keep their values.
// Environment references like ${VAR} are expanded first.
func Parse(cfg *Config, data []byte) error {
	expanded := os.ExpandEnv(string(data))
	return yaml.Unmarshal([]byte(expanded), cfg)
}

// Validate checks values that would only fail later at startup
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Source.Provider != SourceChart && c.Source.Provider != SourceApp {
		return fmt.Errorf("unknown forecast source %q, use %q or %q", c.Source.Provider, SourceChart, SourceApp)
	}
	for _, zip := range c.Collector.ZipCodes {
		if !forecast.ValidZipCode(zip) {
			return fmt.Errorf("invalid collector zip code %d", zip)
		}
	}
	if _, err := c.StorageConfig(); err != nil {
		return err
	}
	if _, err := c.HistoryConfig(); err != nil {
		return err
	}
	return nil
}

// StorageConfig decodes the storage section over the storage defaults
func (c *Config) StorageConfig() (storage.Config, error) {
	cfg, err := storage.DecodeConfig(c.Storage)
	if err != nil {
		return storage.Config{}, fmt.Errorf("invalid storage configuration: %w", err)
	}
	return cfg, nil
}

// HistoryConfig decodes the history section over the history defaults
func (c *Config) HistoryConfig() (history.Config, error) {
	cfg, err := history.DecodeConfig(c.History)
	if err != nil {
		return history.Config{}, fmt.Errorf("invalid history configuration: %w", err)
	}
	return cfg, nil
}

// GenerateOptions returns the configured generation defaults
func (c *Config) GenerateOptions() forecast.GenerateOptions {
	opts := forecast.DefaultGenerateOptions()
	opts.Days = c.Forecast.Days
	opts.Locale = c.Forecast.Locale
	opts.UTCOffset = c.Forecast.UTCOffset
	opts.DateFormat = c.Forecast.DateFormat
	opts.TimeFormat = c.Forecast.TimeFormat
	return opts
}
