package util

import (
	"strings"
	"time"
)

// ConcertDateLayout is the day-first layout the upstream catalog uses ("23-08-2019").
const ConcertDateLayout = "02-01-2006"

// ParseConcertDate parses an upstream concert date. The catalog marks some dates
// with a leading "*", which is ignored.
func ParseConcertDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "*")
	if trimmed == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(ConcertDateLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatConcertDate renders a concert date as ISO 8601 (YYYY-MM-DD), or returns the
// cleaned raw value when it cannot be parsed.
func FormatConcertDate(raw string) string {
	if t, ok := ParseConcertDate(raw); ok {
		return t.Format(time.DateOnly)
	}
	return strings.TrimPrefix(strings.TrimSpace(raw), "*")
}

// YearOf extracts the year from an upstream first-album date, or 0.
func YearOf(raw string) int {
	if t, ok := ParseConcertDate(raw); ok {
		return t.Year()
	}
	return 0
}
