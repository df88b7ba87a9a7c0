package meteoswiss

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meteoswiss-forecast/datasource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chartDocument builds a forecast-chart document with days days starting at start (UTC)
func chartDocument(days int, start time.Time) []map[string]interface{} {
	var doc []map[string]interface{}
	for d := 0; d < days; d++ {
		dayStart := start.Add(time.Duration(d) * 24 * time.Hour)
		var rain, temp, sun, vrain, vrange, wind, gust [][]interface{}
		var symbols []map[string]interface{}
		for h := 0; h < 24; h++ {
			ts := dayStart.Add(time.Duration(h) * time.Hour).UnixMilli()
			var r interface{} = float64(h) / 10
			if d == 0 && h == 3 {
				r = nil
			}
			rain = append(rain, []interface{}{ts, r})
			temp = append(temp, []interface{}{ts, 10.0 + float64(h)})
			sun = append(sun, []interface{}{ts, 0.0})
			vrain = append(vrain, []interface{}{ts, 0.0, 1.0})
			vrange = append(vrange, []interface{}{ts, 8.0 + float64(h), 12.0 + float64(h)})
			wind = append(wind, []interface{}{ts, 5.0})
			gust = append(gust, []interface{}{ts, 15.0})
		}
		for i := 0; i < 8; i++ {
			symbols = append(symbols, map[string]interface{}{
				"timestamp":         dayStart.Add(time.Duration(i*3) * time.Hour).UnixMilli(),
				"weather_symbol_id": 100 + i,
			})
		}
		doc = append(doc, map[string]interface{}{
			"min_date":       dayStart.UnixMilli(),
			"rainfall":       rain,
			"temperature":    temp,
			"sunshine":       sun,
			"variance_rain":  vrain,
			"variance_range": vrange,
			"wind":           map[string]interface{}{"data": wind},
			"wind_gust_peak": map[string]interface{}{"data": gust},
			"symbols":        symbols,
		})
	}
	return doc
}

func newUpstream(t *testing.T, days int) *httptest.Server {
	start := time.Date(2024, 6, 9, 22, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/product/output/versions.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"forecast-chart": "version__20240609_0913", "other": "x"}`)
	})
	mux.HandleFunc("/product/output/forecast-chart/version__20240609_0913/de/800100.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Referer"), DefaultIndexPage)
		json.NewEncoder(w).Encode(chartDocument(days, start))
	})
	mux.HandleFunc("/etc/designs/meteoswiss/ajax/location/800100.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"city_name": "Zürich"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("https://x/product/output/forecast-chart/version__20200609_0913/de/862000.json")
	require.NoError(t, err)
	assert.Equal(t, "20200609_0913", v)

	ts, err := ModelCalculationTime("version__20200609_0913")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 6, 9, 9, 13, 0, 0, time.UTC), ts)

	_, err = ParseVersion("home.html")
	assert.Error(t, err)
}

func TestChartProviderResolvesVersionAndFlattens(t *testing.T) {
	srv := newUpstream(t, 3)
	p := NewChartProvider(Config{BaseURL: srv.URL})

	f, err := p.FetchForecast(context.Background(), 8001, 2)
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	assert.Equal(t, 2, f.NoOfDays)
	assert.Len(t, f.Timestamps, 48)
	assert.Len(t, f.Symbols, 16)
	assert.Equal(t, time.Date(2024, 6, 9, 9, 13, 0, 0, time.UTC).Unix(), f.ModelCalculationTimestamp)
	assert.Equal(t, time.Date(2024, 6, 9, 22, 0, 0, 0, time.UTC).Unix(), f.Timestamps[0])
	assert.True(t, math.IsNaN(f.Rainfall[3]))
	assert.InDelta(t, 0.5, f.Rainfall[5], 1e-9)
	assert.Equal(t, 8.0, f.TemperatureVarianceMin[0])
	assert.Equal(t, 12.0, f.TemperatureVarianceMax[0])
	assert.Equal(t, 15.0, f.WindGustPeak[47])
	assert.Equal(t, 100, f.Symbols[0])
	assert.Equal(t, "MeteoSwiss", f.Source)
}

func TestChartProviderClampsDays(t *testing.T) {
	srv := newUpstream(t, 3)
	p := NewChartProvider(Config{BaseURL: srv.URL, Version: "20240609_0913"})

	f, err := p.FetchForecast(context.Background(), 8001, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, f.NoOfDays)
	assert.Len(t, f.Rainfall, 72)
}

func TestChartProviderUnknownZip(t *testing.T) {
	srv := newUpstream(t, 1)
	p := NewChartProvider(Config{BaseURL: srv.URL, Version: "20240609_0913"})

	_, err := p.FetchForecast(context.Background(), 9999, 2)
	assert.ErrorIs(t, err, datasource.ErrUnknownZipCode)
}

func TestLocationProvider(t *testing.T) {
	srv := newUpstream(t, 1)
	p := NewLocationProvider(Config{BaseURL: srv.URL})

	name, err := p.CityName(context.Background(), 8001)
	require.NoError(t, err)
	assert.Equal(t, "Zürich", name)

	_, err = p.CityName(context.Background(), 1234)
	assert.ErrorIs(t, err, datasource.ErrUnknownZipCode)
}

func TestAppProviderAlignsToLocalMidnight(t *testing.T) {
	zone := time.FixedZone("CEST", 2*3600)
	start := time.Date(2024, 6, 9, 20, 0, 0, 0, time.UTC) // 22:00 local

	values := func(n int, v float64) []interface{} {
		out := make([]interface{}, n)
		for i := range out {
			out[i] = v + float64(i)
		}
		return out
	}
	icons := make([]int, 20)
	for i := range icons {
		icons[i] = i
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/plzDetail", r.URL.Path)
		assert.Equal(t, "800100", r.URL.Query().Get("plz"))
		w.Header().Set("Last-Modified", "Sun, 09 Jun 2024 09:13:00 GMT")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"graph": map[string]interface{}{
				"start":              start.UnixMilli(),
				"startLowResolution": start.UnixMilli(),
				"precipitation1h":    values(50, 0),
				"temperatureMean1h":  values(50, 10),
				"windSpeed3h":        values(17, 3),
				"weatherIcon3h":      icons,
			},
		})
	}))
	defer srv.Close()

	p := NewAppProvider(Config{AppBaseURL: srv.URL}, zone)
	f, err := p.FetchForecast(context.Background(), 8001, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, f.NoOfDays)
	assert.Equal(t, start.Add(2*time.Hour).Unix(), f.Timestamps[0])
	assert.Equal(t, 2.0, f.Rainfall[0])
	assert.Equal(t, 12.0, f.Temperature[0])
	assert.True(t, math.IsNaN(f.Sunshine[0]))
	assert.Equal(t, 3.0, f.Wind[0]) // hour 2 lies in the first 3h slot
	assert.Equal(t, 4.0, f.Wind[1])
	assert.Equal(t, 1, f.Symbols[0])
	assert.Equal(t, start.Add(3*time.Hour).Unix(), f.SymbolsTimestamps[0])
	assert.Equal(t, time.Date(2024, 6, 9, 9, 13, 0, 0, time.UTC).Unix(), f.ModelCalculationTimestamp)
}

func TestHoursToMidnight(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	assert.Equal(t, 0, hoursToMidnight(time.Date(2024, 1, 1, 0, 0, 0, 0, zone)))
	assert.Equal(t, 1, hoursToMidnight(time.Date(2024, 1, 1, 23, 0, 0, 0, zone)))
	assert.Equal(t, 23, hoursToMidnight(time.Date(2024, 1, 1, 1, 0, 0, 0, zone)))
}
