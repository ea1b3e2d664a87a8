// Package domain holds the small shared vocabulary of the filing tracker:
// calendar quarters and the display codec for values and percentages.
package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Quarter identifies a calendar quarter in "YYYYQN" form (e.g. "2025Q1").
// Quarters are derived from a filing's reference date by plain calendar
// bucketing: months 1-3 map to Q1, 4-6 to Q2, 7-9 to Q3, 10-12 to Q4.
type Quarter string

var quarterPattern = regexp.MustCompile(`^\d{4}Q[1-4]$`)

// QuarterOf returns the calendar quarter containing t.
func QuarterOf(t time.Time) Quarter {
	q := (int(t.Month())-1)/3 + 1
	return Quarter(fmt.Sprintf("%dQ%d", t.Year(), q))
}

// ParseQuarter validates a "YYYYQN" string.
func ParseQuarter(s string) (Quarter, error) {
	if !quarterPattern.MatchString(s) {
		return "", fmt.Errorf("invalid quarter %q (want YYYYQN)", s)
	}
	return Quarter(s), nil
}

// Valid reports whether q is a well-formed quarter string.
func (q Quarter) Valid() bool {
	return quarterPattern.MatchString(string(q))
}

// Year returns the calendar year of the quarter.
func (q Quarter) Year() int {
	var y int
	fmt.Sscanf(string(q), "%d", &y)
	return y
}

// Num returns the quarter number (1-4).
func (q Quarter) Num() int {
	return int(q[5] - '0')
}

// Previous returns the preceding calendar quarter.
func (q Quarter) Previous() Quarter {
	year, num := q.Year(), q.Num()
	if num == 1 {
		return Quarter(fmt.Sprintf("%dQ4", year-1))
	}
	return Quarter(fmt.Sprintf("%dQ%d", year, num-1))
}

// EndDate returns the last day of the quarter in UTC.
func (q Quarter) EndDate() time.Time {
	year, num := q.Year(), q.Num()
	switch num {
	case 1:
		return time.Date(year, time.March, 31, 0, 0, 0, 0, time.UTC)
	case 2:
		return time.Date(year, time.June, 30, 0, 0, 0, 0, time.UTC)
	case 3:
		return time.Date(year, time.September, 30, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
}
