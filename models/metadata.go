package models

import (
	"fmt"
	"time"
)

// Metadata describes the layout of a rendered forecast image.
// FirstDayY is measured from the bottom edge of the image.
type Metadata struct {
	City                        string `json:"city"`
	ZipCode                     int    `json:"zipCode"`
	ImageWidth                  int    `json:"imageWidth"`
	ImageHeight                 int    `json:"imageHeight"`
	FirstDayX                   int    `json:"firstDayX"`
	FirstDayY                   int    `json:"firstDayY"`
	DayWidth                    int    `json:"dayWidth"`
	DayHeight                   int    `json:"dayHeight"`
	NoOfDays                    int    `json:"noOfDays"`
	UTCOffset                   int    `json:"utcOffset"`
	FirstDayTimestamp           int64  `json:"firstDayTimestamp"`
	ModelTimestamp              int64  `json:"modelTimestamp"`
	ForecastGenerationTimestamp int64  `json:"forecastGenerationTimestamp"`
}

// Age returns how long ago the forecast was generated
func (m Metadata) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(m.ForecastGenerationTimestamp, 0))
}

// NextRain is the answer of the next-rain lookup. Values are strings for
// compatibility with existing dashboard clients.
type NextRain struct {
	NextRain             string `json:"nextRain"`
	NextPossibleRain     string `json:"nextPossibleRain"`
	NextRainText         string `json:"nextRainText"`
	NextPossibleRainText string `json:"nextPossibleRainText"`
}

// NewNextRain formats hour counts, using ">24" for anything beyond a day
func NewNextRain(hours, possibleHours int) NextRain {
	text := func(h int) string {
		if h > 24 {
			return ">24"
		}
		return fmt.Sprintf("%d", h)
	}
	return NextRain{
		NextRain:             fmt.Sprintf("%d", hours),
		NextPossibleRain:     fmt.Sprintf("%d", possibleHours),
		NextRainText:         text(hours),
		NextPossibleRainText: text(possibleHours),
	}
}
