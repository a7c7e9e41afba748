package exporter

import (
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// formatFloat formats a value with the fewest digits that round-trip.
func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
