package mark

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"meteoswiss-forecast/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var zone = time.FixedZone("CEST", 2*3600)

func testGeometry() Geometry {
	return Geometry{
		FirstDayX:         40,
		FirstDayY:         40,
		DayWidth:          480,
		DayHeight:         200,
		NoOfDays:          2,
		FirstDayTimestamp: time.Date(2024, 6, 10, 0, 0, 0, 0, zone).Unix(),
		UTCOffset:         2,
	}
}

func isRed(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return r>>8 == 255 && g == 0 && b == 0
}

func TestPosition(t *testing.T) {
	g := testGeometry()

	x, err := Position(g, time.Date(2024, 6, 10, 12, 0, 0, 0, zone))
	require.NoError(t, err)
	assert.Equal(t, 40+240, x)

	// the second day is shifted by one day width
	x, err = Position(g, time.Date(2024, 6, 11, 6, 0, 0, 0, zone))
	require.NoError(t, err)
	assert.Equal(t, 40+480+120, x)

	// UTC input is converted to the forecast zone
	x, err = Position(g, time.Date(2024, 6, 10, 22, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 40+480+480*30/1440, x)

	_, err = Position(g, time.Date(2024, 6, 12, 1, 0, 0, 0, zone))
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = Position(g, time.Date(2024, 6, 9, 23, 0, 0, 0, zone))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestPositionWithoutFirstDay(t *testing.T) {
	g := testGeometry()
	g.FirstDayTimestamp = 0
	x, err := Position(g, time.Date(2030, 1, 1, 18, 0, 0, 0, zone))
	require.NoError(t, err)
	assert.Equal(t, 40+360, x)
}

func TestApply(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1040, 300))
	g := testGeometry()

	marked, err := Apply(img, g, Options{Time: time.Date(2024, 6, 10, 12, 0, 0, 0, zone)})
	require.NoError(t, err)

	// plot spans rows 60..259
	assert.True(t, isRed(marked, 280, 60))
	assert.True(t, isRed(marked, 279, 259))
	assert.False(t, isRed(marked, 280, 59))
	assert.False(t, isRed(marked, 280, 260))
	assert.False(t, isRed(marked, 282, 150))
	// no frame without test mode
	assert.False(t, isRed(marked, 40, 150))
	// the source stays untouched
	assert.False(t, isRed(img, 280, 100))
}

func TestApplyTestFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1040, 300))
	marked, err := Apply(img, testGeometry(), Options{Time: time.Date(2024, 6, 10, 12, 0, 0, 0, zone), Test: true})
	require.NoError(t, err)
	assert.True(t, isRed(marked, 40, 150))
	assert.True(t, isRed(marked, 520, 150))
	assert.True(t, isRed(marked, 100, 60))
	assert.True(t, isRed(marked, 100, 260))
}

func TestApplyPNGOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1040, 300))))

	out, err := ApplyPNG(buf.Bytes(), testGeometry(), Options{Time: time.Date(2025, 1, 1, 12, 0, 0, 0, zone)})
	assert.ErrorIs(t, err, ErrOutOfRange)
	require.NotNil(t, out)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.False(t, isRed(img, 280, 100))
}

func TestParseFakeTime(t *testing.T) {
	ref := time.Date(2024, 6, 10, 8, 0, 0, 0, zone)
	ft, err := ParseFakeTime("14:35", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 10, 14, 35, 0, 0, zone), ft)

	_, err = ParseFakeTime("2pm", ref)
	assert.Error(t, err)
}

func TestGeometryFromMetadata(t *testing.T) {
	g := GeometryFromMetadata(models.Metadata{FirstDayX: 1, FirstDayY: 2, DayWidth: 3, DayHeight: 4, NoOfDays: 5, FirstDayTimestamp: 6, UTCOffset: 1})
	assert.Equal(t, Geometry{FirstDayX: 1, FirstDayY: 2, DayWidth: 3, DayHeight: 4, NoOfDays: 5, FirstDayTimestamp: 6, UTCOffset: 1}, g)
}
