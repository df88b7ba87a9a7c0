package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"meteoswiss-forecast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls int
	err   error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) FetchForecast(ctx context.Context, zipCode int, days int) (models.Forecast, error) {
	s.calls++
	if s.err != nil {
		return models.Forecast{}, s.err
	}
	return models.Forecast{ZipCode: zipCode, NoOfDays: days}, nil
}

func (s *countingSource) CityName(ctx context.Context, zipCode int) (string, error) {
	s.calls++
	return "Bern", s.err
}

type lookupLog struct {
	hits, misses int
}

func (l *lookupLog) RecordCacheLookup(cache string, hit bool) {
	if hit {
		l.hits++
	} else {
		l.misses++
	}
}

func TestCachedForecastSourceHitsAndMisses(t *testing.T) {
	src := &countingSource{}
	log := &lookupLog{}
	cached := NewCachedForecastSource(src, time.Minute).WithRecorder(log)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f, err := cached.FetchForecast(ctx, 3000, 2)
		require.NoError(t, err)
		assert.Equal(t, 3000, f.ZipCode)
	}
	_, err := cached.FetchForecast(ctx, 3000, 5)
	require.NoError(t, err)

	hits, misses := cached.CacheStats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 2, misses)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 2, log.hits)
	assert.Equal(t, "counting [Cached]", cached.Name())

	cached.Invalidate(3000)
	_, err = cached.FetchForecast(ctx, 3000, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestCachedForecastSourceExpiresAndSkipsErrors(t *testing.T) {
	src := &countingSource{err: errors.New("upstream down")}
	cached := NewCachedForecastSource(src, time.Minute)

	_, err := cached.FetchForecast(context.Background(), 8001, 2)
	assert.Error(t, err)
	_, err = cached.FetchForecast(context.Background(), 8001, 2)
	assert.Error(t, err)
	assert.Equal(t, 2, src.calls, "errors must not be cached")

	src.err = nil
	expired := NewCachedForecastSource(src, 0)
	_, _ = expired.FetchForecast(context.Background(), 8001, 2)
	_, _ = expired.FetchForecast(context.Background(), 8001, 2)
	assert.Equal(t, 4, src.calls)
}

func TestCachedLocationSource(t *testing.T) {
	src := &countingSource{}
	cached := NewCachedLocationSource(src, time.Hour)

	for i := 0; i < 3; i++ {
		name, err := cached.CityName(context.Background(), 3000)
		require.NoError(t, err)
		assert.Equal(t, "Bern", name)
	}
	hits, misses := cached.CacheStats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, src.calls)
}
