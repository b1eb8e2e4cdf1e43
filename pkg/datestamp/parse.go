package datestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Compact film cameras printed the date in a corner of each print, usually as
// three small number groups: year month day or day month year, with the year
// often abbreviated ('98). OCR output is noisy, so parsing is tolerant about
// separators but strict about ranges.

var groupRE = regexp.MustCompile(`'?(\d{1,4})[\s./:-]+(\d{1,2})[\s./:-]+'?(\d{1,4})`)

// ParseStamp attempts to interpret OCR text from a photo corner as a printed
// date stamp. Returns the parsed date, the matched raw substring and whether a
// plausible date was found.
func ParseStamp(text string) (time.Time, string, bool) {
	text = normalize(text)
	for _, m := range groupRE.FindAllStringSubmatch(text, -1) {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])
		// month is always the middle group on date-stamp backs
		if b < 1 || b > 12 {
			continue
		}
		// year-first (98 12 24 / 2003 8 12) or day-first (24 12 98)
		if t, ok := buildDate(a, b, c); ok {
			return t, strings.TrimSpace(m[0]), true
		}
		if t, ok := buildDate(c, b, a); ok {
			return t, strings.TrimSpace(m[0]), true
		}
	}
	return time.Time{}, "", false
}

// buildDate validates year/month/day ranges and expands two-digit years.
func buildDate(year, month, day int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	year = expandYear(year)
	if year < 1950 || year > time.Now().Year() {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject normalized overflow like Feb 30
	if t.Day() != day || t.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return t, true
}

// expandYear maps two-digit years to 19xx/20xx. Date stamps predate 2050.
func expandYear(y int) int {
	if y >= 100 {
		return y
	}
	if y <= time.Now().Year()%100 {
		return 2000 + y
	}
	return 1900 + y
}

// normalize collapses whitespace and fixes common OCR confusions in digit
// context (O->0, l/I->1, S->5).
func normalize(t string) string {
	r := strings.NewReplacer("O", "0", "o", "0", "l", "1", "I", "1", "S", "5", "\n", " ", "\t", " ")
	return strings.Join(strings.Fields(r.Replace(t)), " ")
}
