package forecast

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"

	"meteoswiss-forecast/chart"
	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/history"
	"meteoswiss-forecast/models"
	"meteoswiss-forecast/models/modeltest"
	"meteoswiss-forecast/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForecasts struct {
	calls    int
	forecast models.Forecast
	err      error
}

func (s *fakeForecasts) Name() string { return "fake" }

func (s *fakeForecasts) FetchForecast(ctx context.Context, zipCode int, days int) (models.Forecast, error) {
	s.calls++
	if s.err != nil {
		return models.Forecast{}, s.err
	}
	return s.forecast, nil
}

type fakeLocations map[int]string

func (l fakeLocations) Name() string { return "fake locations" }

func (l fakeLocations) CityName(ctx context.Context, zipCode int) (string, error) {
	name, ok := l[zipCode]
	if !ok {
		return "", datasource.ErrUnknownZipCode
	}
	return name, nil
}

type failingMeasurements struct{}

func (failingMeasurements) Name() string { return "influx" }

func (failingMeasurements) FetchMeasurement(ctx context.Context, sensor string) (models.Measurement, error) {
	return models.Measurement{}, errors.New("connection refused")
}

var clock = modeltest.Start.Add(10 * time.Hour) // 10:00 local on the first day

type fixture struct {
	generator *Generator
	source    *fakeForecasts
	store     storage.Store
	history   history.Store
}

func newFixture(t *testing.T) *fixture {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := history.DefaultConfig()
	cfg.Database = ":memory:"
	h, err := history.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	source := &fakeForecasts{forecast: modeltest.Forecast(3)}
	g := NewGenerator(source, chart.NewRenderer(nil), store,
		WithLocations(fakeLocations{8001: "Zürich"}),
		WithMeasurements(failingMeasurements{}, Sensors{Rain: "rain"}),
		WithHistory(h),
		WithClock(func() time.Time { return clock }),
	)
	return &fixture{generator: g, source: source, store: store, history: h}
}

func testOptions() GenerateOptions {
	opts := DefaultGenerateOptions()
	offset := 2
	opts.UTCOffset = &offset
	opts.Chart.Width, opts.Chart.Height = 800, 250
	opts.Locale = "de_CH.utf8"
	return opts
}

func TestGenerateStoresArtifacts(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	var steps []string
	meta, err := fx.generator.Generate(ctx, 8001, testOptions(), func(s string) { steps = append(steps, s) })
	require.NoError(t, err)
	assert.NotEmpty(t, steps)

	assert.Equal(t, "Zürich", meta.City)
	assert.Equal(t, 8001, meta.ZipCode)
	assert.Equal(t, 2, meta.NoOfDays)
	assert.Equal(t, 2, meta.UTCOffset)
	assert.Equal(t, clock.Unix(), meta.ForecastGenerationTimestamp)
	assert.Equal(t, 800, meta.ImageWidth)

	stored, err := fx.generator.Metadata(ctx, 8001)
	require.NoError(t, err)
	assert.Equal(t, meta, stored)

	f, err := fx.generator.Forecast(ctx, 8001)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NoOfDays)
	assert.Len(t, f.Timestamps, 48)
	assert.Equal(t, []string{"Montag, 10. Juni", "Dienstag, 11. Juni"}, f.DayNames)
	assert.Equal(t, "00:00", f.FormattedTime[0])
	assert.Equal(t, "13:00", f.FormattedTime[13])

	data, err := fx.store.Get(ctx, storage.ForecastImage(8001))
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)

	runs, err := fx.generator.History(ctx, 8001, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusSuccess, runs[0].Status)
	assert.Equal(t, "Zürich", runs[0].City)
	assert.Equal(t, "test", runs[0].Source)
}

func TestGenerateUnknownZip(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.generator.Generate(ctx, 9999, testOptions(), nil)
	assert.ErrorIs(t, err, datasource.ErrUnknownZipCode)
	assert.Zero(t, fx.source.calls)

	runs, err := fx.history.Latest(ctx, 9999, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestGenerateValidatesParameters(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.generator.Generate(context.Background(), 12, testOptions(), nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	opts := testOptions()
	opts.Days = 8
	_, err = fx.generator.Generate(context.Background(), 8001, opts, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	opts = testOptions()
	opts.Chart.TimeDivisions = 0
	_, err = fx.generator.Generate(context.Background(), 8001, opts, nil)
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.ErrorIs(t, err, chart.ErrInvalidOptions)

	assert.Zero(t, fx.source.calls)
}

func TestGenerateWithoutTemperature(t *testing.T) {
	fx := newFixture(t)
	fx.source.forecast.Temperature = models.NaNSeries(len(fx.source.forecast.Timestamps))

	_, err := fx.generator.Generate(context.Background(), 8001, testOptions(), nil)
	assert.ErrorIs(t, err, ErrNoRenderableData)
}

func TestGenerateUpstreamFailure(t *testing.T) {
	fx := newFixture(t)
	fx.source.err = errors.New("API error (status 500)")

	_, err := fx.generator.Generate(context.Background(), 8001, testOptions(), nil)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "failed to fetch forecast")

	_, err = fx.generator.Metadata(context.Background(), 8001)
	assert.ErrorIs(t, err, ErrNotGenerated)
}

func TestGetImage(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.generator.GetImage(ctx, 8001, ImageRequest{})
	assert.ErrorIs(t, err, ErrNotGenerated)

	_, err = fx.generator.Generate(ctx, 8001, testOptions(), nil)
	require.NoError(t, err)

	plain, err := fx.generator.GetImage(ctx, 8001, ImageRequest{MaxAge: DefaultMaxForecastAge})
	require.NoError(t, err)

	marked, err := fx.generator.GetImage(ctx, 8001, ImageRequest{Mark: true, MaxAge: DefaultMaxForecastAge, Now: clock.Add(10 * time.Minute)})
	require.NoError(t, err)
	assert.NotEqual(t, plain, marked)

	stored, err := fx.store.Get(ctx, storage.MarkedImage(8001))
	require.NoError(t, err)
	assert.Equal(t, marked, stored)

	_, err = fx.generator.GetImage(ctx, 8001, ImageRequest{MaxAge: DefaultMaxForecastAge, Now: clock.Add(2 * time.Hour)})
	assert.ErrorIs(t, err, ErrForecastTooOld)

	// no age limit
	_, err = fx.generator.GetImage(ctx, 8001, ImageRequest{Now: clock.Add(48 * time.Hour)})
	assert.NoError(t, err)
}

func TestNextRainFromStore(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	_, err := fx.generator.NextRain(ctx, 8001)
	assert.ErrorIs(t, err, ErrNotGenerated)

	_, err = fx.generator.Generate(ctx, 8001, testOptions(), nil)
	require.NoError(t, err)

	next, err := fx.generator.NextRain(ctx, 8001)
	require.NoError(t, err)
	// rain falls every hour with index%3 != 0; the clock is at index 10
	assert.Equal(t, "0", next.NextRain)
	assert.Equal(t, "0", next.NextPossibleRain)
}

func dryForecast() models.Forecast {
	f := modeltest.Forecast(2)
	for i := range f.Rainfall {
		f.Rainfall[i] = 0
		f.RainfallVarianceMax[i] = 0
	}
	return f
}

func TestNextRain(t *testing.T) {
	f := dryForecast()
	f.Rainfall[5] = 1.2
	f.RainfallVarianceMax[3] = 0.4
	f.Rainfall[0] = 3 // already over

	now := modeltest.Start.Add(90 * time.Minute)
	next := NextRain(&f, now)
	assert.Equal(t, models.NextRain{NextRain: "4", NextPossibleRain: "2", NextRainText: "4", NextPossibleRainText: "2"}, next)
}

func TestNextRainNone(t *testing.T) {
	f := dryForecast()
	f.Rainfall[30] = 0.1

	next := NextRain(&f, modeltest.Start)
	assert.Equal(t, "30", next.NextRain)
	assert.Equal(t, ">24", next.NextRainText)
	assert.Equal(t, "96", next.NextPossibleRain)
	assert.Equal(t, ">24", next.NextPossibleRainText)

	// after the end of the forecast
	next = NextRain(&f, modeltest.Start.Add(72*time.Hour))
	assert.Equal(t, "96", next.NextRain)
}

func TestNextRainIgnoresNaN(t *testing.T) {
	f := dryForecast()
	f.Rainfall = models.NaNSeries(len(f.Timestamps))
	f.Rainfall[7] = 2

	next := NextRain(&f, modeltest.Start)
	assert.Equal(t, "7", next.NextRain)
}

func TestSystemUTCOffsetIsWholeHours(t *testing.T) {
	offset := SystemUTCOffset(time.Now())
	assert.GreaterOrEqual(t, offset, -12)
	assert.LessOrEqual(t, offset, 14)
}

func TestValidZipCode(t *testing.T) {
	assert.True(t, ValidZipCode(8001))
	assert.False(t, ValidZipCode(800))
	assert.False(t, ValidZipCode(80010))
}
