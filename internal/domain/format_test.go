package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "500", FormatValue(500))
	assert.Equal(t, "1.23K", FormatValue(1230))
	assert.Equal(t, "1.23M", FormatValue(1_230_000))
	assert.Equal(t, "9.87B", FormatValue(9_870_000_000))
	assert.Equal(t, "1.23T", FormatValue(1_230_000_000_000))
	assert.Equal(t, "1M", FormatValue(1_000_000))
	assert.Equal(t, "-2.5M", FormatValue(-2_500_000))
	assert.Equal(t, "N/A", FormatValue(NA()))
	assert.Equal(t, "∞", FormatValue(math.Inf(1)))
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "12.3%", FormatPercentage(12.3, false, 1))
	assert.Equal(t, "+12.3%", FormatPercentage(12.3, true, 1))
	assert.Equal(t, "-5%", FormatPercentage(-5.0, true, 1))
	assert.Equal(t, "100%", FormatPercentage(100, false, 1))
	assert.Equal(t, "<.01%", FormatPercentage(0.005, false, 1))
	assert.Equal(t, "+0%", FormatPercentage(0.005, true, 1))
	assert.Equal(t, "N/A", FormatPercentage(NA(), false, 1))
	assert.Equal(t, "∞", FormatPercentage(math.Inf(1), false, 1))
	assert.Equal(t, "+∞", FormatPercentage(math.Inf(1), true, 1))
	assert.Equal(t, "1.25%", FormatPercentage(1.25, false, 2))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 500.0, ParseValue("500"))
	assert.Equal(t, 1230.0, ParseValue("1.23K"))
	assert.Equal(t, 1_230_000.0, ParseValue("1.23M"))
	assert.Equal(t, 9_880_000_000.0, ParseValue("9.88B"))
	assert.Equal(t, 1_230_000_000_000.0, ParseValue("1.23T"))
	assert.Equal(t, 1_000_000.0, ParseValue("1.00M"))
	assert.True(t, IsNA(ParseValue("N/A")))
	assert.True(t, math.IsInf(ParseValue("∞"), 1))
}

func TestParsePercentage(t *testing.T) {
	assert.Equal(t, 12.3, ParsePercentage("12.3%"))
	assert.Equal(t, 100.0, ParsePercentage("100%"))
	assert.Equal(t, 0.0, ParsePercentage("<.01%"))
	assert.True(t, IsNA(ParsePercentage("N/A")))
	assert.True(t, math.IsInf(ParsePercentage("+∞"), 1))
}

func TestValueRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 12, 1500, 2_250_000, 9_880_000_000} {
		assert.InDelta(t, v, ParseValue(FormatValue(v)), v*0.005+0.01)
	}
}
