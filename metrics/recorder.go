// Package metrics exposes forecast generation and upstream statistics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Recorder collects the service metrics in its own registry
type Recorder struct {
	registry *prometheus.Registry

	generationCounter  *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	upstreamCounter    *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
	servedImages       *prometheus.CounterVec
}

// NewRecorder creates a new Recorder with Go and process collectors registered
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		generationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_generations_total",
			Help: "Total number of forecast generations by status.",
		}, []string{"status"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecast_generation_duration_seconds",
			Help:    "Duration of forecast generations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		upstreamCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_upstream_requests_total",
			Help: "Upstream requests by source and outcome.",
		}, []string{"source", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_cache_lookups_total",
			Help: "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		servedImages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_images_served_total",
			Help: "Forecast images served, by whether the time mark was applied.",
		}, []string{"marked"}),
	}

	registry.MustRegister(
		r.generationCounter,
		r.generationDuration,
		r.upstreamCounter,
		r.cacheLookups,
		r.servedImages,
	)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordGeneration records a finished forecast generation
func (r *Recorder) RecordGeneration(err error, duration time.Duration) {
	status := statusOf(err)
	r.generationCounter.WithLabelValues(status).Inc()
	r.generationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordUpstream records one upstream request
func (r *Recorder) RecordUpstream(source string, err error) {
	r.upstreamCounter.WithLabelValues(source, statusOf(err)).Inc()
}

// RecordCacheLookup records a cache hit or miss
func (r *Recorder) RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordImageServed records a served forecast image
func (r *Recorder) RecordImageServed(marked bool) {
	label := "false"
	if marked {
		label = "true"
	}
	r.servedImages.WithLabelValues(label).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
