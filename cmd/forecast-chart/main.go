// Command forecast-chart fetches the forecast of one zip code and writes the
// chart, its metadata and the forecast data into a directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meteoswiss-forecast/chart"
	"meteoswiss-forecast/config"
	"meteoswiss-forecast/datasource"
	"meteoswiss-forecast/forecast"
	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/providers/meteoswiss"
	"meteoswiss-forecast/storage"
)

func main() {
	opts := forecast.DefaultGenerateOptions()

	verbose := flag.Bool("v", false, "Verbose output")
	zipCode := flag.Int("zip-code", 0, "Zip Code of the location to be represented")
	file := flag.String("file", "", "Additionally write the graph to this file")
	dataDir := flag.String("data", "./data", "Directory for the forecast, metadata and image files")
	configFile := flag.String("config", "config.yaml", "Path to configuration file for the source settings")
	symbolsDir := flag.String("symbols", "", "Directory of the weather symbols (default: from configuration)")
	useApp := flag.Bool("app", false, "Use the app API instead of the forecast chart documents")
	flag.IntVar(&opts.Days, "days-to-show", opts.Days, "Number of days to show (1..7)")
	flag.IntVar(&opts.Chart.Height, "height", opts.Chart.Height, "Height of the graph in pixel")
	flag.IntVar(&opts.Chart.Width, "width", opts.Chart.Width, "Width of the graph in pixel")
	flag.IntVar(&opts.Chart.TimeDivisions, "time-divisions", opts.Chart.TimeDivisions, "Distance in hours between time labels")
	flag.BoolVar(&opts.Chart.DarkMode, "dark-mode", false, "Use dark colors")
	flag.Float64Var(&opts.Chart.FontSize, "font-size", opts.Chart.FontSize, "Font size")
	flag.BoolVar(&opts.Chart.MinMaxTemperatures, "min-max-temperatures", false, "Show min/max temperature per day")
	flag.BoolVar(&opts.Chart.RainVariance, "rain-variance", false, "Show rain variance")
	flag.BoolVar(&opts.Chart.ShowCityName, "show-city-name", false, "Show the name of the city")
	flag.BoolVar(&opts.Chart.HideDataCopyright, "hide-data-copyright", false, "Hide the data copyright")
	flag.StringVar(&opts.Locale, "locale", opts.Locale, "Used localization of the date, eg. en_US.utf8")
	flag.StringVar(&opts.DateFormat, "date-format", opts.DateFormat, `Format of the dates, eg. "%A, %-d. %B"`)
	flag.StringVar(&opts.TimeFormat, "time-format", opts.TimeFormat, `Format of the times, eg. "%H:%M"`)
	flag.Float64Var(&opts.Chart.SymbolZoom, "symbol-zoom", opts.Chart.SymbolZoom, "Scaling of the symbols")
	flag.IntVar(&opts.Chart.SymbolDivisions, "symbol-divisions", opts.Chart.SymbolDivisions, "Only draw every x symbol (1 equals every 3 hours)")
	utcOffset := flag.Int("utc-offset", 0, "UTC offset in hours (default: system offset)")
	flag.Parse()

	if *verbose {
		logger.SetLogLevel("DEBUG")
	}
	defer logger.Sync()

	if !forecast.ValidZipCode(*zipCode) {
		fmt.Fprintln(os.Stderr, "-zip-code must be a four digit postal code")
		flag.Usage()
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "utc-offset" {
			opts.UTCOffset = utcOffset
		}
	})

	cfg, err := config.Load(*configFile, "")
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if *symbolsDir == "" {
		*symbolsDir = cfg.Forecast.SymbolsDir
	}

	store, err := storage.NewLocalStore(*dataDir)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	var source datasource.ForecastSource = meteoswiss.NewChartProvider(cfg.Source.MeteoSwiss)
	if *useApp {
		zone := time.Local
		if opts.UTCOffset != nil {
			zone = time.FixedZone("", *opts.UTCOffset*3600)
		}
		source = meteoswiss.NewAppProvider(cfg.Source.MeteoSwiss, zone)
	}
	generator := forecast.NewGenerator(source, chart.NewRenderer(chart.NewSymbolSet(*symbolsDir)), store,
		forecast.WithLocations(meteoswiss.NewLocationProvider(cfg.Source.MeteoSwiss)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	meta, err := generator.Generate(ctx, *zipCode, opts, func(message string) {
		logger.Infof("%s", message)
	})
	if err != nil {
		logger.Fatalf("%v", err)
	}

	if *file != "" {
		image, err := store.Get(ctx, storage.ForecastImage(*zipCode))
		if err != nil {
			logger.Fatalf("Failed to read generated image: %v", err)
		}
		if err := os.WriteFile(*file, image, 0o644); err != nil {
			logger.Fatalf("Failed to write %s: %v", *file, err)
		}
		logger.Infof("Image got saved as %s", *file)
	}

	out, _ := json.MarshalIndent(meta, "", "  ")
	fmt.Println(string(out))
}
