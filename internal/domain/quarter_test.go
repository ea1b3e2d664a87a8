package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQuarterOf(t *testing.T) {
	assert.Equal(t, Quarter("2023Q1"), QuarterOf(date(2023, time.March, 15)))
	assert.Equal(t, Quarter("2023Q2"), QuarterOf(date(2023, time.April, 1)))
	assert.Equal(t, Quarter("2023Q3"), QuarterOf(date(2023, time.August, 5)))
	assert.Equal(t, Quarter("2023Q3"), QuarterOf(date(2023, time.September, 30)))
	assert.Equal(t, Quarter("2023Q4"), QuarterOf(date(2023, time.November, 10)))
	assert.Equal(t, Quarter("2024Q1"), QuarterOf(date(2024, time.January, 15)))
	assert.Equal(t, Quarter("2024Q4"), QuarterOf(date(2024, time.December, 31)))
}

func TestParseQuarter(t *testing.T) {
	q, err := ParseQuarter("2025Q3")
	assert.NoError(t, err)
	assert.Equal(t, Quarter("2025Q3"), q)

	for _, bad := range []string{"2025Q5", "2025q1", "25Q1", "2025-Q1", ""} {
		_, err := ParseQuarter(bad)
		assert.Error(t, err, bad)
	}
}

func TestQuarterPrevious(t *testing.T) {
	assert.Equal(t, Quarter("2024Q4"), Quarter("2025Q1").Previous())
	assert.Equal(t, Quarter("2025Q1"), Quarter("2025Q2").Previous())
	assert.Equal(t, Quarter("2025Q3"), Quarter("2025Q4").Previous())
}

func TestQuarterEndDate(t *testing.T) {
	assert.Equal(t, date(2024, time.March, 31), Quarter("2024Q1").EndDate())
	assert.Equal(t, date(2024, time.June, 30), Quarter("2024Q2").EndDate())
	assert.Equal(t, date(2024, time.September, 30), Quarter("2024Q3").EndDate())
	assert.Equal(t, date(2024, time.December, 31), Quarter("2024Q4").EndDate())
}
