package models

import (
	"time"
)

// Measurement is a measured sensor time series, e.g. rain or temperature of a home weather station
type Measurement struct {
	Sensor     string    `json:"sensor"`
	Timestamps []int64   `json:"timestamps"` // unix seconds, UTC
	Values     Series    `json:"values"`
	Fetched    time.Time `json:"fetched"`
}

// Empty reports whether the measurement has no samples
func (m Measurement) Empty() bool {
	return len(m.Timestamps) == 0
}
