// Package influxdb reads measured sensor data from an InfluxDB 1.x server,
// as written by Home Assistant.
package influxdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"
)

// Config configures the InfluxDB measurement source
type Config struct {
	URL               string        `yaml:"url"` // e.g. http://localhost:8086
	Database          string        `yaml:"database"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	Window            time.Duration `yaml:"window"`            // how far back to query
	GroupingInterval  time.Duration `yaml:"grouping_interval"` // GROUP BY time(...)
	Fill              string        `yaml:"fill"`
	RainSensor        string        `yaml:"rain_sensor"`
	TemperatureSensor string        `yaml:"temperature_sensor"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Enabled reports whether a server is configured
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Provider queries mean sensor values over a recent window
type Provider struct {
	cfg     Config
	fetcher *datasource.HTTPFetcher
}

// NewProvider creates a new InfluxDB measurement provider
func NewProvider(cfg Config) *Provider {
	if cfg.Database == "" {
		cfg.Database = "homeassistant"
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.GroupingInterval <= 0 {
		cfg.GroupingInterval = 10 * time.Minute
	}
	if cfg.Fill == "" {
		cfg.Fill = "0"
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Provider{
		cfg:     cfg,
		fetcher: datasource.NewHTTPFetcher(cfg.Timeout),
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "InfluxDB"
}

// Query builds the InfluxQL statement for a sensor
func (p *Provider) Query(sensor string) string {
	return fmt.Sprintf(`SELECT MEAN("value") FROM "%s"."autogen"."sensor.%s" WHERE time > now() - %dh GROUP BY time(%dm) FILL(%s)`,
		p.cfg.Database, sensor,
		int(p.cfg.Window.Hours()), int(p.cfg.GroupingInterval.Minutes()), p.cfg.Fill)
}

type queryResponse struct {
	Results []struct {
		Series []struct {
			Name    string          `json:"name"`
			Columns []string        `json:"columns"`
			Values  [][]interface{} `json:"values"`
		} `json:"series"`
		Error string `json:"error"`
	} `json:"results"`
	Error string `json:"error"`
}

// FetchMeasurement returns the grouped means of a sensor. An empty result is not an error.
func (p *Provider) FetchMeasurement(ctx context.Context, sensor string) (models.Measurement, error) {
	params := url.Values{}
	params.Set("db", p.cfg.Database)
	params.Set("q", p.Query(sensor))
	params.Set("epoch", "s")
	if p.cfg.User != "" {
		params.Set("u", p.cfg.User)
		params.Set("p", p.cfg.Password)
	}

	logger.Debugf("Fetching data of sensor %q from InfluxDB", sensor)
	body, _, err := p.fetcher.Get(ctx, p.cfg.URL+"/query?"+params.Encode())
	if err != nil {
		return models.Measurement{}, fmt.Errorf("failed to query sensor %s: %w", sensor, err)
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Measurement{}, fmt.Errorf("failed to parse query result: %w", err)
	}
	if resp.Error != "" {
		return models.Measurement{}, fmt.Errorf("influxdb error: %s", resp.Error)
	}

	m := models.Measurement{Sensor: sensor, Fetched: time.Now()}
	if len(resp.Results) == 0 || len(resp.Results[0].Series) == 0 {
		if len(resp.Results) > 0 && resp.Results[0].Error != "" {
			return models.Measurement{}, fmt.Errorf("influxdb error: %s", resp.Results[0].Error)
		}
		logger.Infof("No data in InfluxDB for sensor %s", sensor)
		return m, nil
	}

	for _, row := range resp.Results[0].Series[0].Values {
		if len(row) < 2 {
			continue
		}
		ts, ok := toFloat(row[0])
		if !ok {
			continue
		}
		v, ok := toFloat(row[1])
		if !ok {
			v = 0
		}
		m.Timestamps = append(m.Timestamps, int64(ts))
		m.Values = append(m.Values, v)
	}
	return m, nil
}

// toFloat converts a JSON value to float64; non-numeric values fail
func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var _ datasource.MeasurementSource = (*Provider)(nil)
