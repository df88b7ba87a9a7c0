package forecast

import (
	"fmt"
	"time"

	"meteoswiss-forecast/chart"
	"meteoswiss-forecast/models"
)

// Defaults of the generation parameters
const (
	DefaultDays       = 2
	DefaultLocale     = "en_US.utf8"
	DefaultDateFormat = "%A, %-d. %B"
	DefaultTimeFormat = "%H:%M"

	// DefaultMaxForecastAge is how old a forecast may be when it is served
	DefaultMaxForecastAge = 4200 * time.Second

	// GenerationTimeout bounds one generation, independent of its callers
	GenerationTimeout = 2 * time.Minute
)

// GenerateOptions are the parameters of one generation
type GenerateOptions struct {
	Days       int
	Chart      chart.Options
	Locale     string
	UTCOffset  *int // hours; nil uses the offset of the system zone
	DateFormat string
	TimeFormat string
}

// DefaultGenerateOptions returns the options used when a caller sets nothing
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Days:       DefaultDays,
		Chart:      chart.DefaultOptions(),
		Locale:     DefaultLocale,
		DateFormat: DefaultDateFormat,
		TimeFormat: DefaultTimeFormat,
	}
}

// Validate checks all parameters
func (o GenerateOptions) Validate() error {
	if o.Days < 1 || o.Days > models.MaxDays {
		return fmt.Errorf("%w: days-to-show must be between 1 and %d, got %d", ErrInvalidParameter, models.MaxDays, o.Days)
	}
	if o.UTCOffset != nil && (*o.UTCOffset < -12 || *o.UTCOffset > 14) {
		return fmt.Errorf("%w: utc-offset must be between -12 and 14, got %d", ErrInvalidParameter, *o.UTCOffset)
	}
	if o.DateFormat == "" || o.TimeFormat == "" {
		return fmt.Errorf("%w: date and time format must not be empty", ErrInvalidParameter)
	}
	if err := o.Chart.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	return nil
}

// utcOffset returns the configured offset or the system offset at t
func (o GenerateOptions) utcOffset(t time.Time) int {
	if o.UTCOffset != nil {
		return *o.UTCOffset
	}
	return SystemUTCOffset(t)
}

// SystemUTCOffset returns the offset of the local zone at t in whole hours
func SystemUTCOffset(t time.Time) int {
	_, seconds := t.In(time.Local).Zone()
	return seconds / 3600
}

// ValidZipCode reports whether zip is a four digit Swiss postal code
func ValidZipCode(zip int) bool {
	return zip >= 1000 && zip <= 9999
}
