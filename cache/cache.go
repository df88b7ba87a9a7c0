package cache

import (
	"context"
	"sync"
	"time"

	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/logger"
)

// LookupRecorder receives cache hit/miss events
type LookupRecorder interface {
	RecordCacheLookup(cache string, hit bool)
}

// CachedLocationSource wraps a LocationSource and adds caching functionality.
// City names practically never change, so the duration is usually long.
type CachedLocationSource struct {
	source         datasource.LocationSource
	cache          map[int]cacheEntry
	mutex          sync.RWMutex
	cacheDuration  time.Duration
	cacheHitCount  int
	cacheMissCount int
	recorder       LookupRecorder
}

// cacheEntry represents a cached city name with its timestamp
type cacheEntry struct {
	CityName  string
	Timestamp time.Time
}

// NewCachedLocationSource creates a new cached wrapper around a location source
func NewCachedLocationSource(source datasource.LocationSource, cacheDuration time.Duration) *CachedLocationSource {
	return &CachedLocationSource{
		source:        source,
		cache:         make(map[int]cacheEntry),
		cacheDuration: cacheDuration,
	}
}

// WithRecorder reports hits and misses to r
func (c *CachedLocationSource) WithRecorder(r LookupRecorder) *CachedLocationSource {
	c.recorder = r
	return c
}

// Name returns the name of the underlying source with [Cached] suffix
func (c *CachedLocationSource) Name() string {
	return c.source.Name() + " [Cached]"
}

// CityName resolves the city name, using cache when available
func (c *CachedLocationSource) CityName(ctx context.Context, zipCode int) (string, error) {
	c.mutex.RLock()
	entry, found := c.cache[zipCode]
	c.mutex.RUnlock()

	if found && time.Since(entry.Timestamp) < c.cacheDuration {
		c.countLookup(true)
		logger.Debugf("Location cache HIT for %d from %s", zipCode, c.source.Name())
		return entry.CityName, nil
	}

	c.countLookup(false)
	logger.Debugf("Location cache MISS for %d from %s, fetching...", zipCode, c.source.Name())

	name, err := c.source.CityName(ctx, zipCode)
	if err != nil {
		return "", err
	}

	c.mutex.Lock()
	c.cache[zipCode] = cacheEntry{
		CityName:  name,
		Timestamp: time.Now(),
	}
	c.mutex.Unlock()

	return name, nil
}

func (c *CachedLocationSource) countLookup(hit bool) {
	c.mutex.Lock()
	if hit {
		c.cacheHitCount++
	} else {
		c.cacheMissCount++
	}
	c.mutex.Unlock()
	if c.recorder != nil {
		c.recorder.RecordCacheLookup("location", hit)
	}
}

// CacheStats returns statistics about cache hits and misses
func (c *CachedLocationSource) CacheStats() (hits, misses int) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.cacheHitCount, c.cacheMissCount
}

// Ensure CachedLocationSource implements the LocationSource interface
var _ datasource.LocationSource = (*CachedLocationSource)(nil)
