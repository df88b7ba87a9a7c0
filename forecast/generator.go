// Package forecast generates forecast charts: it fetches the forecast,
// labels and renders it and stores the image, the metadata and the data.
package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"meteoswiss-forecast/chart"
	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/history"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/mark"
	"meteoswiss-forecast/metrics"
	"meteoswiss-forecast/models"
	"meteoswiss-forecast/storage"
	"meteoswiss-forecast/timefmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotGenerated is returned when no forecast was generated for a zip code yet
	ErrNotGenerated = errors.New("forecast has not been generated yet, call /generate-forecast first")
	// ErrForecastTooOld is returned when the stored forecast exceeds the allowed age
	ErrForecastTooOld = errors.New("forecast is too old, update it using /generate-forecast")
	// ErrInvalidParameter is returned for parameters outside their allowed range
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNoRenderableData is returned when the forecast has no temperature values
	ErrNoRenderableData = errors.New("forecast contains no data to render")
	// ErrUpstream marks failures of the forecast source
	ErrUpstream = errors.New("upstream request failed")
)

// Sensors names the measured series drawn over the forecast
type Sensors struct {
	Rain        string
	Temperature string
}

// Generator produces and serves forecast charts
type Generator struct {
	forecasts    datasource.ForecastSource
	locations    datasource.LocationSource
	measurements datasource.MeasurementSource
	sensors      Sensors
	renderer     *chart.Renderer
	store        storage.Store
	history      history.Store
	metrics      *metrics.Recorder
	now          func() time.Time
	group        singleflight.Group
	mutex        sync.Mutex
	zipLocks     map[int]*sync.Mutex
}

// Option configures optional collaborators of the generator
type Option func(*Generator)

// WithLocations resolves city names for the chart and metadata
func WithLocations(src datasource.LocationSource) Option {
	return func(g *Generator) { g.locations = src }
}

// WithMeasurements overlays measured data of the given sensors
func WithMeasurements(src datasource.MeasurementSource, sensors Sensors) Option {
	return func(g *Generator) {
		g.measurements = src
		g.sensors = sensors
	}
}

// WithHistory records every generation
func WithHistory(h history.Store) Option {
	return func(g *Generator) { g.history = h }
}

// WithMetrics reports generations and upstream requests
func WithMetrics(r *metrics.Recorder) Option {
	return func(g *Generator) { g.metrics = r }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a generator writing its artifacts to store
func NewGenerator(forecasts datasource.ForecastSource, renderer *chart.Renderer, store storage.Store, opts ...Option) *Generator {
	g := &Generator{
		forecasts: forecasts,
		renderer:  renderer,
		store:     store,
		history:   history.NopStore{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate fetches and renders the forecast of a zip code and stores the
// artifacts. Concurrent calls for the same zip code and options share one
// generation; generations of one zip code with different options run one
// after the other. Progress is only reported to the caller that started the
// generation and stops once that caller returns.
func (g *Generator) Generate(ctx context.Context, zipCode int, opts GenerateOptions, progress func(string)) (models.Metadata, error) {
	if !ValidZipCode(zipCode) {
		return models.Metadata{}, fmt.Errorf("%w: zip-code must be a four digit postal code, got %d", ErrInvalidParameter, zipCode)
	}
	if err := opts.Validate(); err != nil {
		return models.Metadata{}, err
	}
	key, err := generationKey(zipCode, opts)
	if err != nil {
		return models.Metadata{}, err
	}

	relay := &progressRelay{fn: progress}
	defer relay.detach()

	// the shared work must outlive the caller that happened to start it
	workCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(workCtx, GenerationTimeout)
		defer cancel()

		unlock := g.lockZip(zipCode)
		defer unlock()
		return g.generate(ctx, zipCode, opts, relay.report)
	})

	select {
	case <-ctx.Done():
		return models.Metadata{}, fmt.Errorf("generation of %d abandoned: %w", zipCode, ctx.Err())
	case res := <-ch:
		if res.Shared {
			logger.Debugf("Generation for %d was shared with a concurrent request", zipCode)
		}
		if res.Err != nil {
			return models.Metadata{}, res.Err
		}
		return res.Val.(models.Metadata), nil
	}
}

// generationKey identifies generations that produce identical artifacts
func generationKey(zipCode int, opts GenerateOptions) (string, error) {
	encoded, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode generation options: %w", err)
	}
	return strconv.Itoa(zipCode) + ":" + string(encoded), nil
}

// lockZip serializes writes of the artifacts of one zip code
func (g *Generator) lockZip(zipCode int) func() {
	g.mutex.Lock()
	if g.zipLocks == nil {
		g.zipLocks = make(map[int]*sync.Mutex)
	}
	m, ok := g.zipLocks[zipCode]
	if !ok {
		m = &sync.Mutex{}
		g.zipLocks[zipCode] = m
	}
	g.mutex.Unlock()

	m.Lock()
	return m.Unlock
}

// progressRelay forwards progress messages until it is detached
type progressRelay struct {
	mu sync.Mutex
	fn func(string)
}

func (p *progressRelay) report(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fn != nil {
		p.fn(message)
	}
}

func (p *progressRelay) detach() {
	p.mu.Lock()
	p.fn = nil
	p.mu.Unlock()
}

func (g *Generator) generate(ctx context.Context, zipCode int, opts GenerateOptions, progress func(string)) (models.Metadata, error) {
	start := g.now()
	run := &history.Run{ZipCode: zipCode, Days: opts.Days}

	meta, err := g.build(ctx, zipCode, opts, progress, run)

	duration := g.now().Sub(start)
	run.GeneratedAt = start.UTC()
	run.DurationMillis = duration.Milliseconds()
	run.Status = history.StatusSuccess
	if err != nil {
		run.Status = history.StatusFailed
		run.Error = err.Error()
		logger.Errorf("Generation of forecast %d failed after %v: %v", zipCode, duration, err)
	} else {
		logger.Infof("Generated forecast %d (%s) in %v", zipCode, meta.City, duration)
	}
	if herr := g.history.Record(ctx, run); herr != nil {
		logger.Warnf("Could not record generation of %d: %v", zipCode, herr)
	}
	if g.metrics != nil {
		g.metrics.RecordGeneration(err, duration)
	}
	return meta, err
}

func (g *Generator) build(ctx context.Context, zipCode int, opts GenerateOptions, progress func(string), run *history.Run) (models.Metadata, error) {
	now := g.now()

	city := ""
	if g.locations != nil {
		progress("Looking up city name...")
		name, err := g.locations.CityName(ctx, zipCode)
		g.recordUpstream(g.locations.Name(), err)
		switch {
		case errors.Is(err, datasource.ErrUnknownZipCode):
			return models.Metadata{}, err
		case err != nil:
			logger.Warnf("Could not resolve city name of %d: %v", zipCode, err)
		default:
			city = name
		}
	}
	run.City = city

	progress(fmt.Sprintf("Fetching forecast from %s...", g.forecasts.Name()))
	f, err := g.fetch(ctx, zipCode, opts.Days)
	if err != nil {
		return models.Metadata{}, err
	}
	if f.NoOfDays > opts.Days {
		f = f.Truncate(opts.Days)
	}
	run.Source = f.Source
	run.ModelTimestamp = f.ModelCalculationTimestamp
	if _, ok := f.Temperature.Max(); !ok {
		return models.Metadata{}, fmt.Errorf("%w: %d", ErrNoRenderableData, zipCode)
	}

	f.ZipCode = zipCode
	f.CityName = city
	f.UTCOffset = opts.utcOffset(now)
	label(&f, opts)
	logger.Debugf("Forecast %d: %d days from %s, model calculated %s", zipCode, f.NoOfDays,
		f.Time(0).Format(time.RFC3339), time.Unix(f.ModelCalculationTimestamp, 0).UTC().Format(time.RFC3339))

	overlay := chart.Overlay{CityName: city}
	if g.measurements != nil {
		progress("Fetching measurements...")
		overlay.MeasuredRain = g.measurement(ctx, g.sensors.Rain)
		overlay.MeasuredTemperature = g.measurement(ctx, g.sensors.Temperature)
	}

	progress("Rendering chart...")
	image, meta, err := g.renderer.Render(&f, opts.Chart, overlay)
	if err != nil {
		return models.Metadata{}, fmt.Errorf("failed to render forecast: %w", err)
	}
	meta.ForecastGenerationTimestamp = now.Unix()

	progress("Storing forecast...")
	if err := g.write(ctx, zipCode, image, &f, meta); err != nil {
		return models.Metadata{}, err
	}
	return meta, nil
}

// fetch gets the forecast from the source. A kept forecast older than the
// model of the last stored generation is dropped and fetched again.
func (g *Generator) fetch(ctx context.Context, zipCode int, days int) (models.Forecast, error) {
	f, err := g.fetchOnce(ctx, zipCode, days)
	if err != nil {
		return f, err
	}

	inv, ok := g.forecasts.(datasource.Invalidator)
	if !ok {
		return f, nil
	}
	stored, err := g.Metadata(ctx, zipCode)
	if err != nil || f.ModelCalculationTimestamp >= stored.ModelTimestamp {
		return f, nil
	}
	logger.Infof("Kept forecast of %d is older than the stored model run %s, fetching again", zipCode,
		time.Unix(stored.ModelTimestamp, 0).UTC().Format(time.RFC3339))
	inv.Invalidate(zipCode)
	return g.fetchOnce(ctx, zipCode, days)
}

func (g *Generator) fetchOnce(ctx context.Context, zipCode int, days int) (models.Forecast, error) {
	f, err := g.forecasts.FetchForecast(ctx, zipCode, days)
	g.recordUpstream(g.forecasts.Name(), err)
	if err != nil {
		if errors.Is(err, datasource.ErrUnknownZipCode) {
			return f, err
		}
		return f, fmt.Errorf("%w: failed to fetch forecast: %w", ErrUpstream, err)
	}
	return f, nil
}

// label fills the day names and hour labels in the forecast's zone
func label(f *models.Forecast, opts GenerateOptions) {
	loc, exact := timefmt.ParseLocale(opts.Locale)
	if !exact {
		logger.Warnf("Locale %q is not fully supported, using %s", opts.Locale, loc.Tag)
	}
	f.DayNames = make([]string, f.NoOfDays)
	for day := range f.DayNames {
		f.DayNames[day] = timefmt.Format(f.DayStart(day), opts.DateFormat, loc)
	}
	f.FormattedTime = make([]string, len(f.Timestamps))
	for i := range f.FormattedTime {
		f.FormattedTime[i] = timefmt.Format(f.Time(i), opts.TimeFormat, loc)
	}
}

// measurement returns the measured series of a sensor, or nil when it is unavailable
func (g *Generator) measurement(ctx context.Context, sensor string) *models.Measurement {
	if sensor == "" {
		return nil
	}
	m, err := g.measurements.FetchMeasurement(ctx, sensor)
	g.recordUpstream(g.measurements.Name(), err)
	if err != nil {
		logger.Warnf("Drawing chart without measurement of %s: %v", sensor, err)
		return nil
	}
	if m.Empty() {
		logger.Debugf("No measured values of %s", sensor)
		return nil
	}
	return &m
}

// write stores image, forecast and metadata. The metadata goes last since
// readers take it as the marker of a complete generation.
func (g *Generator) write(ctx context.Context, zipCode int, image []byte, f *models.Forecast, meta models.Metadata) error {
	var result *multierror.Error
	if err := g.store.Put(ctx, storage.ForecastImage(zipCode), image, storage.ContentTypePNG); err != nil {
		result = multierror.Append(result, err)
	}
	if err := storage.PutJSON(ctx, g.store, storage.ForecastData(zipCode), f); err != nil {
		result = multierror.Append(result, err)
	}
	if result.ErrorOrNil() != nil {
		return fmt.Errorf("failed to store forecast %d: %w", zipCode, result)
	}
	if err := storage.PutJSON(ctx, g.store, storage.MetadataFile(zipCode), meta); err != nil {
		return fmt.Errorf("failed to store metadata of %d: %w", zipCode, err)
	}
	return nil
}

func (g *Generator) recordUpstream(source string, err error) {
	if g.metrics != nil {
		g.metrics.RecordUpstream(source, err)
	}
}

// Metadata loads the metadata of the last generation
func (g *Generator) Metadata(ctx context.Context, zipCode int) (models.Metadata, error) {
	var meta models.Metadata
	if err := storage.GetJSON(ctx, g.store, storage.MetadataFile(zipCode), &meta); err != nil {
		return models.Metadata{}, notGenerated(zipCode, err)
	}
	return meta, nil
}

// Forecast loads the forecast data of the last generation
func (g *Generator) Forecast(ctx context.Context, zipCode int) (models.Forecast, error) {
	var f models.Forecast
	if err := storage.GetJSON(ctx, g.store, storage.ForecastData(zipCode), &f); err != nil {
		return models.Forecast{}, notGenerated(zipCode, err)
	}
	return f, nil
}

func notGenerated(zipCode int, err error) error {
	if errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("%w (zip code %d)", ErrNotGenerated, zipCode)
	}
	return err
}

// ImageRequest selects how a stored chart is served
type ImageRequest struct {
	Mark      bool          // draw the current time
	MaxAge    time.Duration // zero disables the age check
	UTCOffset *int          // overrides the offset the chart was generated with
	Now       time.Time     // zero means now
}

// GetImage returns the stored chart, optionally with the time mark. The
// marked image is also stored as markedForecast_<zip>.png.
func (g *Generator) GetImage(ctx context.Context, zipCode int, req ImageRequest) ([]byte, error) {
	now := req.Now
	if now.IsZero() {
		now = g.now()
	}

	meta, err := g.Metadata(ctx, zipCode)
	if err != nil {
		return nil, err
	}
	if age := meta.Age(now); req.MaxAge > 0 && age > req.MaxAge {
		return nil, fmt.Errorf("%w: generated %v ago, allowed %v", ErrForecastTooOld, age.Round(time.Second), req.MaxAge)
	}

	image, err := g.store.Get(ctx, storage.ForecastImage(zipCode))
	if err != nil {
		return nil, notGenerated(zipCode, err)
	}
	if g.metrics != nil {
		g.metrics.RecordImageServed(req.Mark)
	}
	if !req.Mark {
		return image, nil
	}

	geometry := mark.GeometryFromMetadata(meta)
	if req.UTCOffset != nil {
		geometry.UTCOffset = *req.UTCOffset
	}
	marked, err := mark.ApplyPNG(image, geometry, mark.Options{Time: now})
	switch {
	case errors.Is(err, mark.ErrOutOfRange):
		logger.Warnf("Serving forecast %d without time mark: %v", zipCode, err)
	case err != nil:
		return nil, fmt.Errorf("failed to mark forecast %d: %w", zipCode, err)
	}
	if err := g.store.Put(ctx, storage.MarkedImage(zipCode), marked, storage.ContentTypePNG); err != nil {
		logger.Warnf("Could not store marked forecast %d: %v", zipCode, err)
	}
	return marked, nil
}

// NextRain loads the stored forecast and returns the hours until rain
func (g *Generator) NextRain(ctx context.Context, zipCode int) (models.NextRain, error) {
	f, err := g.Forecast(ctx, zipCode)
	if err != nil {
		return models.NextRain{}, err
	}
	return NextRain(&f, g.now()), nil
}

// History returns the latest generation runs of a zip code
func (g *Generator) History(ctx context.Context, zipCode int, limit int) ([]history.Run, error) {
	return g.history.Latest(ctx, zipCode, limit)
}
