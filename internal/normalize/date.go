package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Date parses s against the configured layouts in order, then falls back to
// generic parsing. The result keeps only calendar precision downstream.
func Date(s string, opts Options) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range opts.DateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// CalendarDate truncates t to its calendar day in UTC, discarding time of day.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
