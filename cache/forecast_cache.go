package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"
)

// CachedForecastSource wraps a ForecastSource and adds caching functionality.
// MeteoSwiss only re-runs its model every few hours, so repeated generations
// for the same postal code can reuse the downloaded document.
type CachedForecastSource struct {
	source         datasource.ForecastSource
	cache          map[string]forecastCacheEntry // key is zip:days
	mutex          sync.RWMutex
	cacheDuration  time.Duration
	cacheHitCount  int
	cacheMissCount int
	recorder       LookupRecorder
}

// forecastCacheEntry represents a cached forecast with its timestamp
type forecastCacheEntry struct {
	Data      models.Forecast
	Timestamp time.Time
}

// NewCachedForecastSource creates a new cached wrapper around a forecast source
func NewCachedForecastSource(source datasource.ForecastSource, cacheDuration time.Duration) *CachedForecastSource {
	return &CachedForecastSource{
		source:        source,
		cache:         make(map[string]forecastCacheEntry),
		cacheDuration: cacheDuration,
	}
}

// WithRecorder reports hits and misses to r
func (c *CachedForecastSource) WithRecorder(r LookupRecorder) *CachedForecastSource {
	c.recorder = r
	return c
}

// Name returns the name of the underlying forecast source with [Cached] suffix
func (c *CachedForecastSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// FetchForecast fetches forecast data, using cache when available
func (c *CachedForecastSource) FetchForecast(ctx context.Context, zipCode int, days int) (models.Forecast, error) {
	cacheKey := fmt.Sprintf("%d:%d", zipCode, days)

	c.mutex.RLock()
	entry, found := c.cache[cacheKey]
	c.mutex.RUnlock()

	// If found and not expired, return the cached forecast
	if found && time.Since(entry.Timestamp) < c.cacheDuration {
		c.countLookup(true)
		logger.Debugf("Forecast cache HIT for %d (days=%d) from %s (age: %s)",
			zipCode, days, c.source.Name(), time.Since(entry.Timestamp).Round(time.Second))
		return entry.Data, nil
	}

	c.countLookup(false)
	logger.Debugf("Forecast cache MISS for %d (days=%d) from %s, fetching fresh data...",
		zipCode, days, c.source.Name())

	forecast, err := c.source.FetchForecast(ctx, zipCode, days)
	if err != nil {
		return models.Forecast{}, err
	}

	c.mutex.Lock()
	c.cache[cacheKey] = forecastCacheEntry{
		Data:      forecast,
		Timestamp: time.Now(),
	}
	c.mutex.Unlock()

	return forecast, nil
}

func (c *CachedForecastSource) countLookup(hit bool) {
	c.mutex.Lock()
	if hit {
		c.cacheHitCount++
	} else {
		c.cacheMissCount++
	}
	c.mutex.Unlock()
	if c.recorder != nil {
		c.recorder.RecordCacheLookup("forecast", hit)
	}
}

// Invalidate drops all cached entries of a postal code
func (c *CachedForecastSource) Invalidate(zipCode int) {
	prefix := fmt.Sprintf("%d:", zipCode)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for key := range c.cache {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			delete(c.cache, key)
		}
	}
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedForecastSource) CacheStats() (hits, misses int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.cacheHitCount, c.cacheMissCount
}

// Ensure CachedForecastSource implements ForecastSource
var _ datasource.ForecastSource = (*CachedForecastSource)(nil)
var _ datasource.Invalidator = (*CachedForecastSource)(nil)
