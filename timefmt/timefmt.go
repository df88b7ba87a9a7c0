// Package timefmt formats times with strftime-style layouts such as
// "%A, %-d. %B" and localized day and month names.
package timefmt

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Names holds the localized day and month names of one language
type Names struct {
	Days        [7]string // Sunday first
	ShortDays   [7]string
	Months      [12]string
	ShortMonths [12]string
}

var names = []Names{
	{ // English
		Days:        [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
		ShortDays:   [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
		Months:      [12]string{"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
		ShortMonths: [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	},
	{ // German
		Days:        [7]string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"},
		ShortDays:   [7]string{"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
		Months:      [12]string{"Januar", "Februar", "März", "April", "Mai", "Juni", "Juli", "August", "September", "Oktober", "November", "Dezember"},
		ShortMonths: [12]string{"Jan", "Feb", "Mär", "Apr", "Mai", "Jun", "Jul", "Aug", "Sep", "Okt", "Nov", "Dez"},
	},
	{ // French
		Days:        [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
		ShortDays:   [7]string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."},
		Months:      [12]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
		ShortMonths: [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
	},
	{ // Italian
		Days:        [7]string{"domenica", "lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato"},
		ShortDays:   [7]string{"dom", "lun", "mar", "mer", "gio", "ven", "sab"},
		Months:      [12]string{"gennaio", "febbraio", "marzo", "aprile", "maggio", "giugno", "luglio", "agosto", "settembre", "ottobre", "novembre", "dicembre"},
		ShortMonths: [12]string{"gen", "feb", "mar", "apr", "mag", "giu", "lug", "ago", "set", "ott", "nov", "dic"},
	},
}

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.German,
	language.French,
	language.Italian,
})

// Locale selects localized names. The zero value is English.
type Locale struct {
	Tag   language.Tag
	names *Names
}

// ParseLocale accepts POSIX aliases like "de_CH.utf8" as well as BCP 47 tags.
// Unsupported languages fall back to English; exact is false in that case.
func ParseLocale(alias string) (loc Locale, exact bool) {
	s := alias
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")

	tag, err := language.Parse(s)
	if err != nil {
		return Locale{Tag: language.English, names: &names[0]}, false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return Locale{Tag: language.English, names: &names[0]}, false
	}
	return Locale{Tag: tag, names: &names[index]}, true
}

func (l Locale) n() *Names {
	if l.names == nil {
		return &names[0]
	}
	return l.names
}

// Format renders t with a strftime layout. Supported directives:
// %a %A %b %B %d %-d %e %H %-H %I %M %S %m %-m %p %y %Y %j %%.
// Unknown directives are copied verbatim.
func Format(t time.Time, layout string, loc Locale) string {
	n := loc.n()
	var b strings.Builder
	for i := 0; i < len(layout); i++ {
		c := layout[i]
		if c != '%' || i == len(layout)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		noPad := false
		if layout[i] == '-' && i < len(layout)-1 {
			noPad = true
			i++
		}
		num := func(v int) string {
			if noPad {
				return fmt.Sprintf("%d", v)
			}
			return fmt.Sprintf("%02d", v)
		}
		switch layout[i] {
		case 'a':
			b.WriteString(n.ShortDays[t.Weekday()])
		case 'A':
			b.WriteString(n.Days[t.Weekday()])
		case 'b', 'h':
			b.WriteString(n.ShortMonths[t.Month()-1])
		case 'B':
			b.WriteString(n.Months[t.Month()-1])
		case 'd':
			b.WriteString(num(t.Day()))
		case 'e':
			b.WriteString(fmt.Sprintf("%2d", t.Day()))
		case 'H':
			b.WriteString(num(t.Hour()))
		case 'I':
			h := t.Hour() % 12
			if h == 0 {
				h = 12
			}
			b.WriteString(num(h))
		case 'M':
			b.WriteString(num(t.Minute()))
		case 'S':
			b.WriteString(num(t.Second()))
		case 'm':
			b.WriteString(num(int(t.Month())))
		case 'p':
			if t.Hour() < 12 {
				b.WriteString("AM")
			} else {
				b.WriteString("PM")
			}
		case 'y':
			b.WriteString(fmt.Sprintf("%02d", t.Year()%100))
		case 'Y':
			b.WriteString(fmt.Sprintf("%d", t.Year()))
		case 'j':
			if noPad {
				b.WriteString(fmt.Sprintf("%d", t.YearDay()))
			} else {
				b.WriteString(fmt.Sprintf("%03d", t.YearDay()))
			}
		case '%':
			b.WriteByte('%')
		default:
			b.WriteByte('%')
			if noPad {
				b.WriteByte('-')
			}
			b.WriteByte(layout[i])
		}
	}
	return b.String()
}
