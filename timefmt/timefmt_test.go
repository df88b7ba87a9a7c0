package timefmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatEnglishDefaults(t *testing.T) {
	ts := time.Date(2024, 6, 9, 7, 5, 3, 0, time.UTC)
	loc, exact := ParseLocale("en_US.utf8")
	assert.True(t, exact)

	assert.Equal(t, "Sunday, 9. June", Format(ts, "%A, %-d. %B", loc))
	assert.Equal(t, "07:05", Format(ts, "%H:%M", loc))
	assert.Equal(t, "7h 09/06/24 100%", Format(ts, "%-Hh %d/%m/%y 100%%", loc))
	assert.Equal(t, "Sun Jun 2024 07 AM", Format(ts, "%a %b %Y %I %p", loc))
}

func TestFormatLocalized(t *testing.T) {
	ts := time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)

	de, exact := ParseLocale("de_CH.UTF-8")
	assert.True(t, exact)
	assert.Equal(t, "Montag, 4. März", Format(ts, "%A, %-d. %B", de))

	fr, _ := ParseLocale("fr_CH")
	assert.Equal(t, "lundi 4 mars", Format(ts, "%A %-d %B", fr))

	it, _ := ParseLocale("it-CH")
	assert.Equal(t, "lunedì", Format(ts, "%A", it))
}

func TestParseLocaleFallsBackToEnglish(t *testing.T) {
	loc, exact := ParseLocale("ja_JP.utf8")
	assert.False(t, exact)
	assert.Equal(t, "Monday", Format(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "%A", loc))

	_, exact = ParseLocale("!!")
	assert.False(t, exact)

	var zero Locale
	assert.Equal(t, "Mon", Format(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "%a", zero))
}

func TestFormatUnknownDirectiveIsCopied(t *testing.T) {
	ts := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "%Q-%", Format(ts, "%Q-%", Locale{}))
}
