package util

import (
	"strings"
	"time"
)

const ISODate = "2006-01-02"

var manifestDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04",
}

// ParseManifestDate normalizes a manifest date cell to YYYY-MM-DD.
// Empty cells, the word "pending" and anything unparseable come back as
// ("Pending", false).
func ParseManifestDate(value string) (string, bool) {
	v := strings.TrimSpace(value)
	switch strings.ToLower(v) {
	case "", "pending", "nan", "none":
		return "Pending", false
	}

	for _, layout := range manifestDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(ISODate), true
		}
	}
	return "Pending", false
}

// CompareToToday reports -1/0/1 for a YYYY-MM-DD string against today.
// Non-dates (including the Pending sentinel) report ok=false.
func CompareToToday(date string, today time.Time) (int, bool) {
	t, err := time.Parse(ISODate, date)
	if err != nil {
		return 0, false
	}
	d := t.Format(ISODate)
	ts := today.Format(ISODate)
	switch {
	case d < ts:
		return -1, true
	case d > ts:
		return 1, true
	default:
		return 0, true
	}
}
