// Package app wires the forecast service together with fx.
package app

import (
	"context"
	"time"

	"meteoswiss-forecast/api"
	"meteoswiss-forecast/cache"
	"meteoswiss-forecast/chart"
	"meteoswiss-forecast/collector"
	"meteoswiss-forecast/config"
	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/forecast"
	"meteoswiss-forecast/history"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/metrics"
	"meteoswiss-forecast/providers/influxdb"
	"meteoswiss-forecast/providers/meteoswiss"
	"meteoswiss-forecast/storage"

	"go.uber.org/fx"
)

const (
	pruneInterval    = 24 * time.Hour
	forecastPruneAge = 48 * time.Hour
)

// Module provides every component of the service
var Module = fx.Options(
	fx.Provide(
		metrics.NewRecorder,
		NewForecastSource,
		NewLocationSource,
		NewStore,
		NewHistory,
		NewRenderer,
		NewGenerator,
		api.NewForecastStore,
		NewServer,
		NewCollector,
	),
	fx.Invoke(warmForecastStore, startServer, startCollector, startPruning),
)

// New creates the application for cfg
func New(cfg *config.Config, extra ...fx.Option) *fx.App {
	options := []fx.Option{
		fx.WithLogger(logger.NewFxLogger),
		fx.Supply(cfg),
		Module,
	}
	return fx.New(append(options, extra...)...)
}

// zone returns the zone days are aligned to
func zone(cfg *config.Config) *time.Location {
	if cfg.Forecast.UTCOffset != nil {
		return time.FixedZone("", *cfg.Forecast.UTCOffset*3600)
	}
	return time.Local
}

// NewForecastSource creates the configured source, rate limited and cached
func NewForecastSource(cfg *config.Config, recorder *metrics.Recorder) datasource.ForecastSource {
	var source datasource.ForecastSource
	switch cfg.Source.Provider {
	case config.SourceApp:
		source = meteoswiss.NewAppProvider(cfg.Source.MeteoSwiss, zone(cfg))
	default:
		source = meteoswiss.NewChartProvider(cfg.Source.MeteoSwiss)
	}

	if rl := cfg.Source.RateLimit; rl.Enabled {
		source = datasource.NewRateLimitedForecastSource(source, rl.RPS, rl.Burst)
		logger.Infof("Applied rate limiting to %s (%.2f req/s, burst %d)", source.Name(), rl.RPS, rl.Burst)
	}
	if ttl := cfg.Source.ForecastCacheTTL; ttl > 0 {
		source = cache.NewCachedForecastSource(source, ttl).WithRecorder(recorder)
	}
	logger.Infof("Using forecast source %s", source.Name())
	return source
}

// NewLocationSource creates the city name lookup
func NewLocationSource(cfg *config.Config, recorder *metrics.Recorder) datasource.LocationSource {
	var source datasource.LocationSource = meteoswiss.NewLocationProvider(cfg.Source.MeteoSwiss)
	if rl := cfg.Source.RateLimit; rl.Enabled {
		source = datasource.NewRateLimitedLocationSource(source, rl.RPS, rl.Burst)
	}
	if ttl := cfg.Source.LocationCacheTTL; ttl > 0 {
		source = cache.NewCachedLocationSource(source, ttl).WithRecorder(recorder)
	}
	return source
}

// NewStore opens the artifact storage
func NewStore(lc fx.Lifecycle, cfg *config.Config) (storage.Store, error) {
	sc, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(context.Background(), sc)
	if err != nil {
		return nil, err
	}
	logger.Infof("Storing forecasts in %s storage", store.Type())
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

// NewHistory opens the generation history
func NewHistory(lc fx.Lifecycle, cfg *config.Config) (history.Store, error) {
	hc, err := cfg.HistoryConfig()
	if err != nil {
		return nil, err
	}
	h, err := history.Open(hc)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.Close()
		},
	})
	return h, nil
}

// NewRenderer creates the chart renderer with the configured symbols
func NewRenderer(cfg *config.Config) *chart.Renderer {
	return chart.NewRenderer(chart.NewSymbolSet(cfg.Forecast.SymbolsDir))
}

// GeneratorParams are the dependencies of NewGenerator
type GeneratorParams struct {
	fx.In
	Config    *config.Config
	Forecasts datasource.ForecastSource
	Locations datasource.LocationSource
	Renderer  *chart.Renderer
	Store     storage.Store
	History   history.Store
	Metrics   *metrics.Recorder
}

// NewGenerator creates the forecast generator
func NewGenerator(p GeneratorParams) *forecast.Generator {
	opts := []forecast.Option{
		forecast.WithLocations(p.Locations),
		forecast.WithHistory(p.History),
		forecast.WithMetrics(p.Metrics),
	}
	if influx := p.Config.InfluxDB; influx.Enabled() {
		logger.Infof("Drawing measurements from %s", influx.URL)
		opts = append(opts, forecast.WithMeasurements(influxdb.NewProvider(influx), forecast.Sensors{
			Rain:        influx.RainSensor,
			Temperature: influx.TemperatureSensor,
		}))
	}
	return forecast.NewGenerator(p.Forecasts, p.Renderer, p.Store, opts...)
}

// NewServer creates the API server
func NewServer(cfg *config.Config, gen *forecast.Generator, store *api.ForecastStore, recorder *metrics.Recorder) *api.Server {
	return api.NewServer(gen, store, api.Options{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		Defaults:       cfg.GenerateOptions(),
		MaxForecastAge: cfg.Forecast.MaxAge,
		Metrics:        recorder.Handler(),
	})
}

// NewCollector creates the background collector of the configured zip codes
func NewCollector(cfg *config.Config, gen *forecast.Generator) *collector.ForecastCollector {
	c := collector.NewForecastCollector(gen, cfg.Collector.ZipCodes, cfg.GenerateOptions())
	if cfg.Collector.Interval > 0 {
		c.SetInterval(cfg.Collector.Interval)
	}
	c.SetConcurrency(cfg.Collector.Concurrency)
	if cfg.Collector.Timeout > 0 {
		c.SetFetchTimeout(cfg.Collector.Timeout)
	}
	return c
}

func startServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, server *api.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.Start(); err != nil {
					logger.Errorf("Server stopped: %v", err)
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorf("Failed to shutdown application: %v", err)
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(ctx)
		},
	})
}

func startCollector(lc fx.Lifecycle, cfg *config.Config, c *collector.ForecastCollector, gen *forecast.Generator, store *api.ForecastStore) {
	if len(cfg.Collector.ZipCodes) == 0 {
		logger.Infof("No zip codes configured, background collection disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var stop func()
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Infof("Collecting %v every %v", cfg.Collector.ZipCodes, cfg.Collector.Interval)
			stop = c.Start(ctx)
			go consumeCollector(ctx, c, gen, store)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			if stop != nil {
				stop()
			}
			return nil
		},
	})
}

// consumeCollector keeps the API cache current with the collected forecasts
func consumeCollector(ctx context.Context, c *collector.ForecastCollector, gen *forecast.Generator, store *api.ForecastStore) {
	errs := c.ErrorChannel()
	out := c.OutputChannel()
	for out != nil || errs != nil {
		select {
		case meta, ok := <-out:
			if !ok {
				out = nil
				continue
			}
			store.UpdateMetadata(meta)
			f, err := gen.Forecast(ctx, meta.ZipCode)
			if err != nil {
				logger.Warnf("Could not load collected forecast %d: %v", meta.ZipCode, err)
				continue
			}
			store.UpdateForecast(f)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warnf("%v", err)
		}
	}
}

// warmForecastStore loads the generations found in the storage into the API cache
func warmForecastStore(lc fx.Lifecycle, gen *forecast.Generator, store *api.ForecastStore) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zipCodes, err := gen.GeneratedZipCodes(ctx)
			if err != nil {
				logger.Warnf("Could not load stored forecasts: %v", err)
				return nil
			}
			for _, zip := range zipCodes {
				meta, err := gen.Metadata(ctx, zip)
				if err != nil {
					logger.Warnf("Skipping stored forecast %d: %v", zip, err)
					continue
				}
				store.UpdateMetadata(meta)
				if f, err := gen.Forecast(ctx, zip); err == nil {
					store.UpdateForecast(f)
				}
			}
			if len(zipCodes) > 0 {
				logger.Infof("Loaded %d stored forecasts", len(zipCodes))
			}
			return nil
		},
	})
}

func startPruning(lc fx.Lifecycle, cfg *config.Config, gen *forecast.Generator, store *api.ForecastStore, h history.Store) {
	hc, err := cfg.HistoryConfig()
	if err != nil {
		return
	}

	done := make(chan struct{})
	prune := func() {
		ctx := context.Background()
		if n := store.PruneOldForecasts(forecastPruneAge); n > 0 {
			logger.Infof("Pruned %d cached forecasts", n)
		}
		if retention := cfg.Forecast.ArtifactRetention; retention > 0 {
			pruned, err := gen.PruneArtifacts(ctx, retention)
			if err != nil {
				logger.Warnf("Failed to prune stored forecasts: %v", err)
			}
			for _, zip := range pruned {
				store.Invalidate(zip)
			}
		}
		if hc.Retention > 0 {
			n, err := h.Prune(ctx, time.Now().Add(-hc.Retention))
			if err != nil {
				logger.Warnf("Failed to prune generation history: %v", err)
			} else if n > 0 {
				logger.Infof("Pruned %d generation runs", n)
			}
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(pruneInterval)
				defer ticker.Stop()

				prune()
				for {
					select {
					case <-ticker.C:
						prune()
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			close(done)
			return nil
		},
	})
}
