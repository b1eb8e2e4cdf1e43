package datestamp

import (
	"testing"
	"time"
)

func TestParseStampYearFirst(t *testing.T) {
	ts, raw, ok := ParseStamp("'98 12 24")
	if !ok {
		t.Fatal("no date parsed")
	}
	if ts.Year() != 1998 || ts.Month() != time.December || ts.Day() != 24 {
		t.Fatalf("got %v raw=%s", ts, raw)
	}
}

func TestParseStampDayFirst(t *testing.T) {
	ts, _, ok := ParseStamp("24 12 '98")
	if !ok {
		t.Fatal("no date parsed")
	}
	if ts.Year() != 1998 || ts.Month() != time.December || ts.Day() != 24 {
		t.Fatalf("got %v", ts)
	}
}

func TestParseStampFourDigitYear(t *testing.T) {
	ts, _, ok := ParseStamp("2003/8/12")
	if !ok {
		t.Fatal("no date parsed")
	}
	if ts.Year() != 2003 || ts.Month() != time.August || ts.Day() != 12 {
		t.Fatalf("got %v", ts)
	}
}

func TestParseStampOCRNoise(t *testing.T) {
	// O misread for 0, extra whitespace from sparse segmentation
	ts, _, ok := ParseStamp("  '99  1O   3 ")
	if !ok {
		t.Fatal("no date parsed")
	}
	if ts.Year() != 1999 || ts.Month() != time.October || ts.Day() != 3 {
		t.Fatalf("got %v", ts)
	}
}

func TestParseStampRejectsImplausible(t *testing.T) {
	for _, s := range []string{"", "no digits here", "99 13 24", "12 34", "1890 5 5", "98 2 30"} {
		if _, raw, ok := ParseStamp(s); ok {
			t.Errorf("parsed %q from %q but wanted rejection", raw, s)
		}
	}
}

func TestExpandYear(t *testing.T) {
	if expandYear(98) != 1998 {
		t.Fatalf("98 -> %d", expandYear(98))
	}
	if expandYear(3) != 2003 {
		t.Fatalf("3 -> %d", expandYear(3))
	}
	if expandYear(1987) != 1987 {
		t.Fatalf("1987 -> %d", expandYear(1987))
	}
}
