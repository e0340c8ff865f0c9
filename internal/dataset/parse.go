package dataset

import (
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing source timestamps. The raw
// exports mix date-only and datetime formats.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTime parses a source timestamp leniently; unparseable values yield nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ParseFloat coerces a source cell to a number; invalid values yield nil.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "na") {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// FloatOr coerces a source cell to a number, substituting def when invalid.
func FloatOr(s string, def float64) float64 {
	if f := ParseFloat(s); f != nil {
		return *f
	}
	return def
}

// ParseIntOr coerces a source cell to an integer, truncating decimals the way
// the raw exports sometimes format location numbers ("3.0").
func ParseIntOr(s string, def int) int {
	f := ParseFloat(s)
	if f == nil {
		return def
	}
	return int(*f)
}

// FormatFloat renders a number the way the published CSVs expect: shortest
// round-trip representation.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
