// Package timefmt renders and parses the sortable timestamps carried in
// gate event payloads and feature files.
package timefmt

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the wire layout: ISO-8601 wall clock, optional fractional
// seconds, no zone. Lexicographic order equals chronological order.
const Layout = "2006-01-02T15:04:05.999999999"

var parseLayouts = []string{
	time.RFC3339Nano,
	Layout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

// Format renders t in its own location's wall clock without a zone suffix
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Parse accepts the wire layout, its space-separated variant and RFC 3339.
// Zone-less input is interpreted as UTC; callers that care about the
// producer's wall clock should keep the original text.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
