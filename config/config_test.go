package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"meteoswiss-forecast/forecast"
	"meteoswiss-forecast/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceChart, cfg.Source.Provider)
	assert.Equal(t, forecast.DefaultMaxForecastAge, cfg.Forecast.MaxAge)
	assert.Nil(t, cfg.Forecast.UTCOffset)

	st, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultConfig(), st)
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9090
source:
  provider: app
  rate_limit:
    rps: 0.5
  meteoswiss:
    language: fr
forecast:
  utc_offset: 1
  max_age: 2h
collector:
  zip_codes: [8001, 3000]
storage:
  type: local
  base_dir: /tmp/forecasts
history:
  enabled: false
`)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, SourceApp, cfg.Source.Provider)
	assert.Equal(t, 0.5, cfg.Source.RateLimit.RPS)
	assert.Equal(t, 5, cfg.Source.RateLimit.Burst)
	assert.True(t, cfg.Source.RateLimit.Enabled)
	assert.Equal(t, "fr", cfg.Source.MeteoSwiss.Language)
	require.NotNil(t, cfg.Forecast.UTCOffset)
	assert.Equal(t, 1, *cfg.Forecast.UTCOffset)
	assert.Equal(t, 2*time.Hour, cfg.Forecast.MaxAge)
	assert.Equal(t, []int{8001, 3000}, cfg.Collector.ZipCodes)

	st, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/forecasts", st.BaseDir)

	h, err := cfg.HistoryConfig()
	require.NoError(t, err)
	assert.False(t, h.Enabled)

	opts := cfg.GenerateOptions()
	assert.Equal(t, forecast.DefaultDays, opts.Days)
	assert.Equal(t, 1, *opts.UTCOffset)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MFG_SERVER_PORT", "7070")
	t.Setenv("MFG_SOURCE_RATE_LIMIT_ENABLED", "false")
	t.Setenv("MFG_FORECAST_UTC_OFFSET", "-3")
	t.Setenv("MFG_COLLECTOR_ZIP_CODES", "8001, 1200")
	t.Setenv("MFG_COLLECTOR_INTERVAL", "15m")
	t.Setenv("MFG_STORAGE_BASE_DIR", "/srv/data")
	t.Setenv("MFG_HISTORY_ENABLED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.False(t, cfg.Source.RateLimit.Enabled)
	assert.Equal(t, -3, *cfg.Forecast.UTCOffset)
	assert.Equal(t, []int{8001, 1200}, cfg.Collector.ZipCodes)
	assert.Equal(t, 15*time.Minute, cfg.Collector.Interval)

	st, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", st.BaseDir)

	h, err := cfg.HistoryConfig()
	require.NoError(t, err)
	assert.False(t, h.Enabled)
}

func TestEnvFileAndExpansion(t *testing.T) {
	envFile := writeFile(t, ".env", "MFG_TEST_INFLUX_URL=http://influx:8086\n")
	t.Cleanup(func() { os.Unsetenv("MFG_TEST_INFLUX_URL") })
	path := writeFile(t, "config.yaml", "influxdb:\n  url: ${MFG_TEST_INFLUX_URL}\n")

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "http://influx:8086", cfg.InfluxDB.URL)
	assert.True(t, cfg.InfluxDB.Enabled())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Source.Provider = "html"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Collector.ZipCodes = []int{80}
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage = map[string]interface{}{"base_dir": map[string]interface{}{"nested": 1}}
	assert.Error(t, cfg.Validate())

	t.Setenv("MFG_SERVER_PORT", "eighty")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}
