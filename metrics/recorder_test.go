package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()
	r.RecordGeneration(nil, 2*time.Second)
	r.RecordGeneration(errors.New("boom"), time.Second)
	r.RecordGeneration(nil, time.Second)
	r.RecordCacheLookup("forecast", true)
	r.RecordCacheLookup("forecast", false)
	r.RecordCacheLookup("forecast", false)
	r.RecordUpstream("MeteoSwiss", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.generationCounter.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.generationCounter.WithLabelValues(StatusFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("forecast", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.upstreamCounter.WithLabelValues("MeteoSwiss", StatusSuccess)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.RecordImageServed(true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `forecast_images_served_total{marked="true"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
