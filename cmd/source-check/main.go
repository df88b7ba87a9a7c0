// Command source-check queries the configured upstream sources a few times
// to show the effect of rate limiting and caching.
package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"meteoswiss-forecast/app"
	"meteoswiss-forecast/cache"
	"meteoswiss-forecast/config"
	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/metrics"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	zipList := flag.String("zip-codes", "8001,3000", "Comma separated zip codes to query")
	rounds := flag.Int("rounds", 3, "Number of request rounds")
	days := flag.Int("days", 2, "Days to request")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if *verbose {
		logger.SetLogLevel("DEBUG")
	}
	defer logger.Sync()

	cfg, err := config.Load(*configFile, ".env")
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	var zipCodes []int
	for _, s := range strings.Split(*zipList, ",") {
		zip, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			logger.Fatalf("Invalid zip code %q", s)
		}
		zipCodes = append(zipCodes, zip)
	}

	recorder := metrics.NewRecorder()
	forecasts := app.NewForecastSource(cfg, recorder)
	locations := app.NewLocationSource(cfg, recorder)

	fmt.Printf("=== Querying %s and %s ===\n", forecasts.Name(), locations.Name())
	ctx := context.Background()
	start := time.Now()
	for round := 1; round <= *rounds; round++ {
		fmt.Printf("\n*** Round %d ***\n", round)
		makeRequests(ctx, forecasts, locations, zipCodes, *days, start)
	}

	if c, ok := forecasts.(*cache.CachedForecastSource); ok {
		hits, misses := c.CacheStats()
		fmt.Printf("\nStats for %s: %d cache hits, %d cache misses\n", c.Name(), hits, misses)
	}
	if c, ok := locations.(*cache.CachedLocationSource); ok {
		hits, misses := c.CacheStats()
		fmt.Printf("Stats for %s: %d cache hits, %d cache misses\n", c.Name(), hits, misses)
	}
	fmt.Printf("\n=== Done in %v ===\n", time.Since(start).Round(time.Millisecond))
}

func makeRequests(ctx context.Context, forecasts datasource.ForecastSource, locations datasource.LocationSource, zipCodes []int, days int, start time.Time) {
	for _, zip := range zipCodes {
		city, err := locations.CityName(ctx, zip)
		if err != nil {
			fmt.Printf("%8v  %d: %v\n", time.Since(start).Round(time.Millisecond), zip, err)
			continue
		}
		f, err := forecasts.FetchForecast(ctx, zip, days)
		if err != nil {
			fmt.Printf("%8v  %d %s: %v\n", time.Since(start).Round(time.Millisecond), zip, city, err)
			continue
		}
		maxTemp, _ := f.Temperature.Max()
		fmt.Printf("%8v  %d %s: %d days, model %s, max %.1f°C\n", time.Since(start).Round(time.Millisecond),
			zip, city, f.NoOfDays, time.Unix(f.ModelCalculationTimestamp, 0).UTC().Format("2006-01-02 15:04"), maxTemp)
	}
}
