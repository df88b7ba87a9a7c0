package main

import (
	"flag"

	"meteoswiss-forecast/app"
	"meteoswiss-forecast/config"
	"meteoswiss-forecast/logger"
)

func main() {
	// Parse command line arguments
	port := flag.Int("port", 8080, "Port to run the server on")
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	enableRateLimiting := flag.Bool("rate-limit", true, "Enable upstream rate limiting")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags given on the command line win over the configuration
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "rate-limit":
			cfg.Source.RateLimit.Enabled = *enableRateLimiting
		}
	})
	if *verbose {
		cfg.LogLevel = "DEBUG"
	}
	logger.SetLogLevel(cfg.LogLevel)
	defer logger.Sync()

	logger.Infof("MeteoSwiss Forecast Generator")
	app.New(cfg).Run()
}
