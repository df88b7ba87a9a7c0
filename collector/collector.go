package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meteoswiss-forecast/forecast"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Generator produces the forecast of one zip code
type Generator interface {
	Generate(ctx context.Context, zipCode int, opts forecast.GenerateOptions, progress func(string)) (models.Metadata, error)
}

// ForecastCollector regenerates the forecasts of a fixed set of zip codes
type ForecastCollector struct {
	generator    Generator
	zipCodes     []int
	options      forecast.GenerateOptions
	interval     time.Duration
	concurrency  int
	fetchTimeout time.Duration
	outputChan   chan models.Metadata
	errorChan    chan error
}

// NewForecastCollector creates a collector for the given zip codes
func NewForecastCollector(generator Generator, zipCodes []int, options forecast.GenerateOptions) *ForecastCollector {
	return &ForecastCollector{
		generator:    generator,
		zipCodes:     zipCodes,
		options:      options,
		interval:     30 * time.Minute,
		concurrency:  2,
		fetchTimeout: 60 * time.Second,
		outputChan:   make(chan models.Metadata, 100),
		errorChan:    make(chan error, 100),
	}
}

// SetInterval changes the time between two rounds
func (c *ForecastCollector) SetInterval(interval time.Duration) {
	c.interval = interval
}

// SetConcurrency limits how many zip codes are generated at the same time
func (c *ForecastCollector) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	c.concurrency = n
}

// SetFetchTimeout changes the timeout of one generation
func (c *ForecastCollector) SetFetchTimeout(timeout time.Duration) {
	c.fetchTimeout = timeout
}

// OutputChannel returns the channel that emits the metadata of generated forecasts
func (c *ForecastCollector) OutputChannel() <-chan models.Metadata {
	return c.outputChan
}

// ErrorChannel returns the channel that emits generation errors
func (c *ForecastCollector) ErrorChannel() <-chan error {
	return c.errorChan
}

// Start runs a round immediately and then every interval.
// The returned function stops the collection and waits for it to finish.
func (c *ForecastCollector) Start(ctx context.Context) func() {
	collectionCtx, cancelCollection := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.run(collectionCtx)
	}()

	go func() {
		wg.Wait()
		close(c.outputChan)
		close(c.errorChan)
	}()

	return func() {
		cancelCollection()
		wg.Wait()
	}
}

func (c *ForecastCollector) run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logRound(ctx)
	for {
		select {
		case <-ticker.C:
			c.logRound(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (c *ForecastCollector) logRound(ctx context.Context) {
	if err := c.RunOnce(ctx); err != nil {
		logger.Warnf("Collection round finished with errors: %v", err)
	}
}

// RunOnce generates every zip code once. The errors of all zip codes are
// combined into one.
func (c *ForecastCollector) RunOnce(ctx context.Context) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
		group  errgroup.Group
	)
	group.SetLimit(c.concurrency)

	for _, zip := range c.zipCodes {
		zip := zip
		group.Go(func() error {
			if err := c.generateOnce(ctx, zip); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		})
	}
	group.Wait()
	return result.ErrorOrNil()
}

// generateOnce performs a single generation
func (c *ForecastCollector) generateOnce(ctx context.Context, zip int) error {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	meta, err := c.generator.Generate(fetchCtx, zip, c.options, nil)
	if err != nil {
		err = fmt.Errorf("error generating forecast for %d: %w", zip, err)
		select {
		case c.errorChan <- err:
		default:
			// nobody is reading errors; the round result still carries it
		}
		return err
	}

	select {
	case c.outputChan <- meta:
	case <-ctx.Done():
	}
	return nil
}
