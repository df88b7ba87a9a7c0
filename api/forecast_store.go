package api

import (
	"sort"
	"sync"
	"time"

	"meteoswiss-forecast/models"
)

// storedForecast is the latest generation of one zip code
type storedForecast struct {
	metadata *models.Metadata
	forecast *models.Forecast
	updated  time.Time
}

// ForecastStore holds the latest metadata and forecast data by zip code
type ForecastStore struct {
	data  map[int]*storedForecast
	mutex sync.RWMutex
	now   func() time.Time
}

// NewForecastStore creates a new in-memory forecast store
func NewForecastStore() *ForecastStore {
	return &ForecastStore{
		data: make(map[int]*storedForecast),
		now:  time.Now,
	}
}

func (s *ForecastStore) entry(zipCode int) *storedForecast {
	e, exists := s.data[zipCode]
	if !exists {
		e = &storedForecast{}
		s.data[zipCode] = e
	}
	e.updated = s.now()
	return e
}

// UpdateMetadata stores the metadata of a generation
func (s *ForecastStore) UpdateMetadata(meta models.Metadata) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entry(meta.ZipCode).metadata = &meta
}

// UpdateForecast stores the forecast data of a generation
func (s *ForecastStore) UpdateForecast(f models.Forecast) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.entry(f.ZipCode).forecast = &f
}

// Invalidate drops everything known about a zip code
func (s *ForecastStore) Invalidate(zipCode int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.data, zipCode)
}

// GetMetadata retrieves the metadata of a zip code
func (s *ForecastStore) GetMetadata(zipCode int) (models.Metadata, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, exists := s.data[zipCode]
	if !exists || e.metadata == nil {
		return models.Metadata{}, false
	}
	return *e.metadata, true
}

// GetForecast retrieves the forecast data of a zip code
func (s *ForecastStore) GetForecast(zipCode int) (models.Forecast, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, exists := s.data[zipCode]
	if !exists || e.forecast == nil {
		return models.Forecast{}, false
	}
	return *e.forecast, true
}

// GetAllZipCodes returns all zip codes with stored data in ascending order
func (s *ForecastStore) GetAllZipCodes() []int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	zipCodes := make([]int, 0, len(s.data))
	for zip := range s.data {
		zipCodes = append(zipCodes, zip)
	}
	sort.Ints(zipCodes)
	return zipCodes
}

// PruneOldForecasts removes entries not updated within maxAge
func (s *ForecastStore) PruneOldForecasts(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := s.now().Add(-maxAge)
	prunedCount := 0

	for zip, e := range s.data {
		if e.updated.Before(cutoff) {
			delete(s.data, zip)
			prunedCount++
		}
	}

	return prunedCount
}
