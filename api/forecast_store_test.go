package api

import (
	"testing"
	"time"

	"meteoswiss-forecast/models"
	"meteoswiss-forecast/models/modeltest"

	"github.com/stretchr/testify/assert"
)

func TestForecastStoreInvalidateAndPrune(t *testing.T) {
	store := NewForecastStore()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.UpdateMetadata(models.Metadata{ZipCode: 8001})
	f := modeltest.Forecast(1)
	f.ZipCode = 3000
	store.UpdateForecast(f)
	assert.Equal(t, []int{3000, 8001}, store.GetAllZipCodes())

	store.Invalidate(8001)
	_, ok := store.GetMetadata(8001)
	assert.False(t, ok)
	assert.Equal(t, []int{3000}, store.GetAllZipCodes())

	now = now.Add(49 * time.Hour)
	store.UpdateMetadata(models.Metadata{ZipCode: 4000})
	assert.Equal(t, 1, store.PruneOldForecasts(48*time.Hour))
	assert.Equal(t, []int{4000}, store.GetAllZipCodes())
}
