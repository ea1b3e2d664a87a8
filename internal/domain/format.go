package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NA is the sentinel for "value not available". It is distinct from zero:
// a position exited at no value is 0, a value we could not determine is NA.
func NA() float64 { return math.NaN() }

// IsNA reports whether v carries the not-available sentinel.
func IsNA(v float64) bool { return math.IsNaN(v) }

// valueUnit is one rung of the short-scale display ladder.
type valueUnit struct {
	threshold float64
	suffix    string
}

var valueUnits = []valueUnit{
	{1_000_000_000_000, "T"},
	{1_000_000_000, "B"},
	{1_000_000, "M"},
	{1_000, "K"},
}

func trimZeros(s string) string {
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// FormatValue renders a numeric value as a short-scale string
// (e.g. 1.23B, 45.67M, 8.9K), "N/A" for missing values and "∞" for infinity.
func FormatValue(v float64) string {
	if IsNA(v) {
		return "N/A"
	}
	if math.IsInf(v, 1) {
		return "∞"
	}
	for _, u := range valueUnits {
		if math.Abs(v) >= u.threshold {
			return trimZeros(fmt.Sprintf("%.2f", v/u.threshold)) + u.suffix
		}
	}
	return trimZeros(fmt.Sprintf("%.2f", v))
}

// FormatPercentage renders a percentage with the given precision, trimming
// trailing zeros. Missing values render as "N/A", infinity as "∞" (signed
// when showSign is set), and sub-0.01 positive values as "<.01%" unless a
// sign is requested.
func FormatPercentage(v float64, showSign bool, decimals int) string {
	if IsNA(v) {
		return "N/A"
	}
	if math.IsInf(v, 1) {
		if showSign {
			return "+∞"
		}
		return "∞"
	}
	if v > 0 && v < 0.01 && !showSign {
		return "<.01%"
	}
	var formatted string
	if showSign {
		formatted = fmt.Sprintf("%+.*f", decimals, v)
	} else {
		formatted = fmt.Sprintf("%.*f", decimals, v)
	}
	return trimZeros(formatted) + "%"
}

// FloatJSON maps a float to a JSON-encodable value: NA becomes null and
// infinities become their display strings. encoding/json rejects non-finite
// numbers outright, so every float that can carry a sentinel goes through
// here on the way out.
func FloatJSON(v float64) interface{} {
	switch {
	case IsNA(v):
		return nil
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	default:
		return v
	}
}

// ParseValue parses a short-scale value string back into a number.
// "N/A" yields the NA sentinel, "∞" yields +Inf.
func ParseValue(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "", "N/A":
		return NA()
	case "∞", "+∞":
		return math.Inf(1)
	}
	for _, u := range valueUnits {
		if strings.HasSuffix(s, u.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSuffix(s, u.suffix), 64)
			if err != nil {
				return NA()
			}
			return n * u.threshold
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NA()
	}
	return n
}

// ParsePercentage parses a formatted percentage string back into a number.
// "N/A" yields the NA sentinel, "<.01%" yields 0.
func ParsePercentage(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "", "N/A":
		return NA()
	case "<.01%":
		return 0
	case "∞", "+∞":
		return math.Inf(1)
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return NA()
	}
	return n
}
