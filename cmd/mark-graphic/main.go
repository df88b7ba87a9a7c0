// Command mark-graphic draws a line at the current (or a fake) time onto a
// generated forecast image.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/mark"
	"meteoswiss-forecast/models"
)

func main() {
	input := flag.String("i", "", "Input file name of the graph image (png)")
	output := flag.String("o", "", "Output file name of the graph image (png)")
	metaFile := flag.String("m", "", "Metadata file of the graph; replaces -x, -y, -w and -H")
	x := flag.Int("x", 0, "Start x pixel of the first day")
	y := flag.Int("y", 0, "Start y pixel of the first day, from the bottom")
	w := flag.Int("w", 0, "Width of a day in pixel")
	h := flag.Int("H", 0, "Height of a day in pixel")
	utcOffset := flag.Int("utc-offset", 0, "UTC offset in hours (default: offset of the metadata or the system)")
	fakeTime := flag.String("fake-time", "", "Time to fake, in the format hh:mm")
	test := flag.Bool("test", false, "Draw a frame around the first day to test the coordinates")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if *verbose {
		logger.SetLogLevel("DEBUG")
	}
	defer logger.Sync()

	if *input == "" || *output == "" {
		flag.Usage()
		os.Exit(2)
	}

	var geometry mark.Geometry
	if *metaFile != "" {
		meta, err := readMetadata(*metaFile)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		geometry = mark.GeometryFromMetadata(meta)
	} else {
		if *w <= 0 || *h <= 0 {
			logger.Fatalf("-w and -H are required without -m")
		}
		_, offset := time.Now().Zone()
		geometry = mark.Geometry{FirstDayX: *x, FirstDayY: *y, DayWidth: *w, DayHeight: *h, UTCOffset: offset / 3600}
	}

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "utc-offset" {
			geometry.UTCOffset = *utcOffset
		}
	})

	opts := mark.Options{Time: time.Now(), Test: *test}
	if *fakeTime != "" {
		t, err := mark.ParseFakeTime(*fakeTime, time.Now().In(geometry.Zone()))
		if err != nil {
			logger.Fatalf("%v", err)
		}
		opts.Time = t
	}
	logger.Debugf("Marking %s at %s with %+v", *input, opts.Time.In(geometry.Zone()).Format("2006-01-02 15:04"), geometry)

	data, err := os.ReadFile(*input)
	if err != nil {
		logger.Fatalf("Failed to read image: %v", err)
	}
	marked, err := mark.ApplyPNG(data, geometry, opts)
	if errors.Is(err, mark.ErrOutOfRange) {
		logger.Warnf("Image left unmarked: %v", err)
	} else if err != nil {
		logger.Fatalf("Failed to mark image: %v", err)
	}
	if err := os.WriteFile(*output, marked, 0o644); err != nil {
		logger.Fatalf("Failed to write image: %v", err)
	}
	logger.Infof("Marked image written to %s", *output)
}

func readMetadata(path string) (models.Metadata, error) {
	var meta models.Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}
	return meta, nil
}
