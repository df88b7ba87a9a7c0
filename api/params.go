package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meteoswiss-forecast/forecast"
)

var errMissingZipCode = fmt.Errorf("%w: zip-code is mandatory", forecast.ErrInvalidParameter)

// parseBool accepts yes, true, t and 1 in any case; everything else is false
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "t", "1":
		return true
	}
	return false
}

func invalid(name string, err error) error {
	return fmt.Errorf("%w: parameter %q: %v", forecast.ErrInvalidParameter, name, err)
}

// query reads typed parameters and keeps the first failure
type query struct {
	values url.Values
	err    error
}

func (q *query) has(name string) bool {
	return q.err == nil && q.values.Has(name)
}

func (q *query) Int(name string, dst *int) {
	if !q.has(name) {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(q.values.Get(name)))
	if err != nil {
		q.err = invalid(name, err)
		return
	}
	*dst = n
}

func (q *query) IntPtr(name string, dst **int) {
	if !q.has(name) {
		return
	}
	var n int
	q.Int(name, &n)
	if q.err == nil {
		*dst = &n
	}
}

func (q *query) Float(name string, dst *float64) {
	if !q.has(name) {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(q.values.Get(name)), 64)
	if err != nil {
		q.err = invalid(name, err)
		return
	}
	*dst = f
}

func (q *query) Bool(name string, dst *bool) {
	if q.has(name) {
		*dst = parseBool(q.values.Get(name))
	}
}

func (q *query) String(name string, dst *string) {
	if q.has(name) {
		*dst = q.values.Get(name)
	}
}

// zipCode parses the mandatory zip-code parameter
func zipCode(values url.Values) (int, error) {
	if !values.Has("zip-code") {
		return 0, errMissingZipCode
	}
	zip, err := strconv.Atoi(strings.TrimSpace(values.Get("zip-code")))
	if err != nil {
		return 0, invalid("zip-code", err)
	}
	if !forecast.ValidZipCode(zip) {
		return 0, invalid("zip-code", fmt.Errorf("%d is not a four digit postal code", zip))
	}
	return zip, nil
}

// generateOptions overlays the request parameters on the defaults
func generateOptions(values url.Values, defaults forecast.GenerateOptions) (forecast.GenerateOptions, error) {
	opts := defaults
	q := &query{values: values}

	q.Int("days-to-show", &opts.Days)
	q.Int("height", &opts.Chart.Height)
	q.Int("width", &opts.Chart.Width)
	q.Int("time-divisions", &opts.Chart.TimeDivisions)
	q.Bool("use-dark-mode", &opts.Chart.DarkMode)
	q.Float("font-size", &opts.Chart.FontSize)
	q.Bool("show-min-max-temperatures", &opts.Chart.MinMaxTemperatures)
	q.Bool("show-rain-variance", &opts.Chart.RainVariance)
	q.String("locale", &opts.Locale)
	q.IntPtr("utc-offset", &opts.UTCOffset)
	q.String("date-format", &opts.DateFormat)
	q.String("time-format", &opts.TimeFormat)
	q.Float("symbol-zoom", &opts.Chart.SymbolZoom)
	q.Int("symbol-divisions", &opts.Chart.SymbolDivisions)
	q.Bool("show-city-name", &opts.Chart.ShowCityName)
	q.Bool("hide-data-copyright", &opts.Chart.HideDataCopyright)

	if q.err != nil {
		return opts, q.err
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// imageRequest parses the parameters of /get-forecast
func imageRequest(values url.Values, maxAge time.Duration) (forecast.ImageRequest, error) {
	req := forecast.ImageRequest{MaxAge: maxAge}
	q := &query{values: values}

	seconds := -1
	q.Int("max-forecast-age", &seconds)
	q.Bool("mark-time", &req.Mark)
	q.IntPtr("utc-offset", &req.UTCOffset)
	if q.err != nil {
		return req, q.err
	}
	if seconds >= 0 {
		req.MaxAge = time.Duration(seconds) * time.Second
	}
	if req.UTCOffset != nil && (*req.UTCOffset < -12 || *req.UTCOffset > 14) {
		return req, invalid("utc-offset", errors.New("must be between -12 and 14"))
	}
	return req, nil
}
