package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/forecast"
	"meteoswiss-forecast/history"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Generator is the forecast backend served by the API
type Generator interface {
	Generate(ctx context.Context, zipCode int, opts forecast.GenerateOptions, progress func(string)) (models.Metadata, error)
	Metadata(ctx context.Context, zipCode int) (models.Metadata, error)
	Forecast(ctx context.Context, zipCode int) (models.Forecast, error)
	GetImage(ctx context.Context, zipCode int, req forecast.ImageRequest) ([]byte, error)
	History(ctx context.Context, zipCode int, limit int) ([]history.Run, error)
}

var _ Generator = (*forecast.Generator)(nil)

// Options configures the API server
type Options struct {
	Port           int
	ReadTimeout    time.Duration
	Defaults       forecast.GenerateOptions // used for parameters a request leaves out
	MaxForecastAge time.Duration
	Metrics        http.Handler // served on /metrics when set
}

// Server represents the API server
type Server struct {
	generator     Generator
	forecastStore *ForecastStore
	opts          Options
	server        *http.Server
	now           func() time.Time
}

// NewServer creates a new API server
func NewServer(generator Generator, forecastStore *ForecastStore, opts Options) *Server {
	if opts.MaxForecastAge <= 0 {
		opts.MaxForecastAge = forecast.DefaultMaxForecastAge
	}

	s := &Server{
		generator:     generator,
		forecastStore: forecastStore,
		opts:          opts,
		now:           time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/", s.handleHelp)
	r.Get("/generate-forecast", s.handleGenerate)
	r.Get("/get-forecast", s.handleGetForecast)
	r.Get("/get-metadata", s.handleGetMetadata)
	r.Get("/get-next-rain", s.handleGetNextRain)
	r.Get("/get-history", s.handleGetHistory)

	// Health check
	r.Get("/api/health", s.handleHealthCheck)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	r.NotFound(s.handleInvalidCall)
	r.MethodNotAllowed(s.handleInvalidMethod)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: opts.ReadTimeout,
	}
	return s
}

// Handler returns the router, e.g. for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start begins the API server and blocks until it is shut down
func (s *Server) Start() error {
	logger.Infof("Starting API server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger logs every request with status and duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Infof("%s %s?%s -> %d (%d bytes, %v)", r.Method, r.URL.Path, r.URL.RawQuery,
			ww.Status(), ww.BytesWritten(), time.Since(start).Round(time.Millisecond))
	})
}

// cors allows dashboards on other origins to embed the images
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, forecast.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, datasource.ErrUnknownZipCode), errors.Is(err, forecast.ErrNotGenerated):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrForecastTooOld):
		return http.StatusConflict
	case errors.Is(err, forecast.ErrUpstream), errors.Is(err, forecast.ErrNoRenderableData):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("Request failed: %v", err)
	} else {
		logger.Debugf("Request rejected: %v", err)
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}
