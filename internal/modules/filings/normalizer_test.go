package filings

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundscope/fundscope/internal/config"
)

func newNormalizer() *Normalizer {
	return NewNormalizer(config.DefaultScaleConfig(), zerolog.Nop())
}

func TestNormalizeDropsOptionsAndEmptyRows(t *testing.T) {
	snapshot := newNormalizer().Normalize([]Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 5_000_000},
		{CUSIP: "BBB000000", Company: "BETA", Shares: 50, Value: 2_000_000, PutCall: "put"},
		{CUSIP: "CCC000000", Company: "GAMMA", Shares: 0, Value: 1_000_000},
		{CUSIP: "DDD000000", Company: "DELTA", Shares: 10, Value: 0},
	})

	require.Len(t, snapshot, 1)
	assert.Contains(t, snapshot, "AAA000000")
}

func TestNormalizeDeduplicatesByCUSIP(t *testing.T) {
	snapshot := newNormalizer().Normalize([]Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 5_000_000},
		{CUSIP: "AAA000000", Company: "ALPHA HOLDINGS INC", Shares: 50, Value: 2_500_000},
		{CUSIP: "AAA000000", Company: "ALPHA HLD", Shares: 25, Value: 1_250_000},
	})

	require.Len(t, snapshot, 1)
	h := snapshot["AAA000000"]
	assert.Equal(t, int64(175), h.Shares)
	assert.Equal(t, int64(8_750_000), h.Value)
	assert.Equal(t, "ALPHA HOLDINGS INC", h.Company)
}

func TestNormalizeRescalesThousands(t *testing.T) {
	// All positions small and total small: values are in thousands
	snapshot := newNormalizer().Normalize([]Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 500_000},
		{CUSIP: "BBB000000", Company: "BETA", Shares: 50, Value: 300_000},
	})

	assert.Equal(t, int64(500_000_000), snapshot["AAA000000"].Value)
	assert.Equal(t, int64(300_000_000), snapshot["BBB000000"].Value)
}

func TestNormalizeScaleBoundariesAreStrict(t *testing.T) {
	n := newNormalizer()

	// Largest position exactly at the ceiling: no rescale
	snapshot := n.Normalize([]Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 1_000_000},
	})
	assert.Equal(t, int64(1_000_000), snapshot["AAA000000"].Value)

	// Total exactly at the ceiling: no rescale
	snapshot = n.Normalize([]Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 999_999},
		{CUSIP: "BBB000000", Company: "BETA", Shares: 100, Value: 99_000_001},
	})
	assert.Equal(t, int64(999_999), snapshot["AAA000000"].Value)

	// One dollar under both ceilings: rescale
	snapshot = n.Normalize([]Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 999_999},
	})
	assert.Equal(t, int64(999_999_000), snapshot["AAA000000"].Value)
}

func TestNormalizeScaleDecisionIsWholeFiling(t *testing.T) {
	// A single large position vetoes rescaling the whole filing
	snapshot := newNormalizer().Normalize([]Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 5_000_000},
		{CUSIP: "BBB000000", Company: "BETA", Shares: 50, Value: 100},
	})

	assert.Equal(t, int64(5_000_000), snapshot["AAA000000"].Value)
	assert.Equal(t, int64(100), snapshot["BBB000000"].Value)
}

func TestNormalizeIsDeterministic(t *testing.T) {
	positions := []Position{
		{CUSIP: "AAA000000", Company: "ALPHA", Shares: 100, Value: 500_000},
		{CUSIP: "AAA000000", Company: "ALPHA INC", Shares: 20, Value: 100_000},
		{CUSIP: "BBB000000", Company: "BETA", Shares: 50, Value: 300_000},
	}

	first := newNormalizer().Normalize(positions)
	second := newNormalizer().Normalize(positions)
	assert.Equal(t, first, second)
}

func TestSnapshotTotalValue(t *testing.T) {
	s := Snapshot{
		"A": {CUSIP: "A", Shares: 1, Value: 100},
		"B": {CUSIP: "B", Shares: 2, Value: 250},
	}
	assert.Equal(t, int64(350), s.TotalValue())
}
