package replay

import (
	"strings"
	"time"
)

var markerDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z0700",
}

func parseMarkerDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range markerDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// CompareDates orders two marker dates. Dates are compared as instants when
// both parse, and as strings otherwise.
func CompareDates(a, b string) int {
	left, leftOK := parseMarkerDate(a)
	right, rightOK := parseMarkerDate(b)
	if leftOK && rightOK {
		return left.Compare(right)
	}
	return strings.Compare(a, b)
}
