package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WatermarkLayout is the wire format of the `since` query parameter: UTC with millisecond precision.
const WatermarkLayout = "2006-01-02T15:04:05.000Z07:00"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp accepts the timestamp shapes the signal backend emits: ISO strings,
// MySQL DATETIME strings (taken as UTC) and epoch milliseconds. The result is UTC,
// truncated to milliseconds.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Truncate(time.Millisecond), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// FormatWatermark renders t for the `since` query parameter.
func FormatWatermark(t time.Time) string {
	return t.UTC().Format(WatermarkLayout)
}

// ToMillis truncates t to millisecond precision in UTC.
func ToMillis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
