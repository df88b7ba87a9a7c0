// Package mark draws the current time onto a rendered forecast image.
package mark

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"meteoswiss-forecast/logger"
	"meteoswiss-forecast/models"

	xdraw "golang.org/x/image/draw"
)

// ErrOutOfRange is returned when the time to mark is not on any shown day
var ErrOutOfRange = errors.New("time is outside the forecast")

// LineWidth is the width of the time mark in pixel
const LineWidth = 2

var red = color.RGBA{R: 255, A: 255}

// Geometry locates the days on the image. FirstDayY is measured from the
// bottom edge of the image.
type Geometry struct {
	FirstDayX int
	FirstDayY int
	DayWidth  int
	DayHeight int
	NoOfDays  int
	// FirstDayTimestamp is the start of the first day (unix seconds); zero
	// means the mark always goes onto the first day.
	FirstDayTimestamp int64
	UTCOffset         int // hours
}

// GeometryFromMetadata takes the geometry of a generated forecast
func GeometryFromMetadata(m models.Metadata) Geometry {
	return Geometry{
		FirstDayX:         m.FirstDayX,
		FirstDayY:         m.FirstDayY,
		DayWidth:          m.DayWidth,
		DayHeight:         m.DayHeight,
		NoOfDays:          m.NoOfDays,
		FirstDayTimestamp: m.FirstDayTimestamp,
		UTCOffset:         m.UTCOffset,
	}
}

// Zone returns the fixed zone the days are drawn in
func (g Geometry) Zone() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", g.UTCOffset), g.UTCOffset*3600)
}

// Options controls what gets drawn
type Options struct {
	Time time.Time // zero means now
	Test bool      // draw a frame around the first day
}

// ParseFakeTime returns hh:mm on the local day of ref
func ParseFakeTime(s string, ref time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected hh:mm: %w", s, err)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour(), t.Minute(), 0, 0, ref.Location()), nil
}

// dayIndex counts local calendar days from the first forecast day to t
func (g Geometry) dayIndex(t time.Time) int {
	if g.FirstDayTimestamp == 0 {
		return 0
	}
	first := time.Unix(g.FirstDayTimestamp, 0).In(g.Zone())
	a := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Position returns the pixel column of t
func Position(g Geometry, t time.Time) (int, error) {
	t = t.In(g.Zone())
	day := g.dayIndex(t)
	if day < 0 || (g.NoOfDays > 0 && day >= g.NoOfDays) {
		return 0, fmt.Errorf("%w: %s is on day %d of %d", ErrOutOfRange, t.Format("2006-01-02 15:04"), day, g.NoOfDays)
	}
	minute := t.Hour()*60 + t.Minute()
	return g.FirstDayX + day*g.DayWidth + g.DayWidth*minute/(24*60), nil
}

// Apply returns a copy of img with the time mark. When the time is not on a
// shown day the copy is returned unmarked together with ErrOutOfRange.
func Apply(img image.Image, g Geometry, opts Options) (*image.RGBA, error) {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	xdraw.Draw(dst, bounds, img, bounds.Min, xdraw.Src)

	bottom := bounds.Max.Y - g.FirstDayY
	top := bottom - g.DayHeight
	logger.Debugf("Marking image %dx%d, first day at x=%d y=%d..%d, day width %d",
		bounds.Dx(), bounds.Dy(), g.FirstDayX, top, bottom, g.DayWidth)

	if opts.Test {
		frame(dst, image.Rect(g.FirstDayX, top, g.FirstDayX+g.DayWidth, bottom))
	}

	at := opts.Time
	if at.IsZero() {
		at = time.Now()
	}
	x, err := Position(g, at)
	if err != nil {
		return dst, err
	}
	fill(dst, image.Rect(x-LineWidth/2, top, x-LineWidth/2+LineWidth, bottom))
	return dst, nil
}

func fill(dst *image.RGBA, r image.Rectangle) {
	xdraw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(red), image.Point{}, xdraw.Src)
}

// frame draws a 1 px outline of r
func frame(dst *image.RGBA, r image.Rectangle) {
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X+1, r.Min.Y+1))
	fill(dst, image.Rect(r.Min.X, r.Max.Y, r.Max.X+1, r.Max.Y+1))
	fill(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y+1))
	fill(dst, image.Rect(r.Max.X, r.Min.Y, r.Max.X+1, r.Max.Y+1))
}

// ApplyPNG decodes a PNG, marks it and encodes it again. The encoded image
// is returned even when the time was out of range.
func ApplyPNG(data []byte, g Geometry, opts Options) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	marked, markErr := Apply(img, g, opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, marked); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), markErr
}
