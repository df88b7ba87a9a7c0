package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/storage"

	"github.com/hashicorp/go-multierror"
)

// GeneratedZipCodes lists the zip codes with a complete generation in the store
func (g *Generator) GeneratedZipCodes(ctx context.Context) ([]int, error) {
	var zipCodes []int
	err := g.store.List(ctx, "metadata_", func(name string) error {
		var zip int
		if _, err := fmt.Sscanf(name, "metadata_%d.json", &zip); err != nil || !ValidZipCode(zip) {
			logger.Debugf("Ignoring unexpected artifact %s", name)
			return nil
		}
		zipCodes = append(zipCodes, zip)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list generated forecasts: %w", err)
	}
	sort.Ints(zipCodes)
	return zipCodes, nil
}

// PruneArtifacts deletes the artifacts of zip codes whose last generation is
// older than maxAge and returns those zip codes.
func (g *Generator) PruneArtifacts(ctx context.Context, maxAge time.Duration) ([]int, error) {
	zipCodes, err := g.GeneratedZipCodes(ctx)
	if err != nil {
		return nil, err
	}

	var (
		pruned []int
		result *multierror.Error
	)
	for _, zip := range zipCodes {
		deleted, err := g.pruneZip(ctx, zip, maxAge)
		if err != nil {
			result = multierror.Append(result, err)
		}
		if deleted {
			pruned = append(pruned, zip)
		}
	}
	return pruned, result.ErrorOrNil()
}

func (g *Generator) pruneZip(ctx context.Context, zipCode int, maxAge time.Duration) (bool, error) {
	unlock := g.lockZip(zipCode)
	defer unlock()

	modified, err := g.store.ModTime(ctx, storage.MetadataFile(zipCode))
	if err != nil {
		return false, fmt.Errorf("failed to check age of forecast %d: %w", zipCode, err)
	}
	if g.now().Sub(modified) <= maxAge {
		return false, nil
	}

	// metadata first, so that a half pruned zip code counts as not generated
	var result *multierror.Error
	for _, name := range []string{
		storage.MetadataFile(zipCode),
		storage.ForecastImage(zipCode),
		storage.MarkedImage(zipCode),
		storage.ForecastData(zipCode),
	} {
		if err := g.store.Delete(ctx, name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	logger.Infof("Pruned forecast %d, last generated %s", zipCode, modified.UTC().Format(time.RFC3339))
	return true, result.ErrorOrNil()
}
