package comparison

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/filings"
)

type staticResolver struct {
	tickers map[string]string
}

func (r *staticResolver) Resolve(_ context.Context, cusip, hint string) (string, string, error) {
	return r.tickers[cusip], hint, nil
}

func newComparator() *Comparator {
	return NewComparator(&staticResolver{tickers: map[string]string{}}, zerolog.Nop())
}

func snapshot(holdings ...filings.Holding) filings.Snapshot {
	s := filings.Snapshot{}
	for _, h := range holdings {
		s[h.CUSIP] = h
	}
	return s
}

func TestCompareIncreasedPosition(t *testing.T) {
	prev := snapshot(filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 500, Value: 10_000})
	cur := snapshot(filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 1000, Value: 25_000})

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", cur, prev)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, int64(500), row.DeltaShares)
	assert.Equal(t, 12_500.0, row.DeltaValue)
	assert.Equal(t, StatusChanged, row.Status.Kind)
	assert.InDelta(t, 100.0, row.Status.Pct, 1e-9)
}

func TestCompareNewPosition(t *testing.T) {
	cur := snapshot(filings.Holding{CUSIP: "B", Company: "BETA", Shares: 200, Value: 5_000})

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", cur, filings.Snapshot{})
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, StatusNew, row.Status.Kind)
	assert.Equal(t, 5_000.0, row.DeltaValue)
}

func TestCompareClosedPosition(t *testing.T) {
	prev := snapshot(filings.Holding{CUSIP: "C", Company: "GAMMA", Shares: 300, Value: 6_000})

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", filings.Snapshot{}, prev)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, StatusClose, row.Status.Kind)
	assert.Equal(t, int64(-300), row.DeltaShares)
	assert.Equal(t, -6_000.0, row.DeltaValue)
	assert.Equal(t, 0.0, row.Value)
}

func TestCompareNoChange(t *testing.T) {
	prev := snapshot(filings.Holding{CUSIP: "D", Company: "DELTA", Shares: 100, Value: 1_000})
	cur := snapshot(filings.Holding{CUSIP: "D", Company: "DELTA", Shares: 100, Value: 1_200})

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", cur, prev)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, StatusNoChange, report.Rows[0].Status.Kind)
	assert.Equal(t, 0.0, report.Rows[0].DeltaValue)
}

func TestStatusPriority(t *testing.T) {
	for _, tc := range []struct {
		prev, cur int64
		want      StatusKind
	}{
		{0, 100, StatusNew},
		{0, 1, StatusNew},
		{100, 0, StatusClose},
		{100, 100, StatusNoChange},
		{100, 150, StatusChanged},
		{100, 50, StatusChanged},
	} {
		assert.Equal(t, tc.want, classify(tc.cur, tc.prev).Kind, "prev=%d cur=%d", tc.prev, tc.cur)
	}
}

func TestCompareTotalsAreAdditive(t *testing.T) {
	prev := snapshot(
		filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 500, Value: 10_000},
		filings.Holding{CUSIP: "C", Company: "GAMMA", Shares: 300, Value: 6_000},
	)
	cur := snapshot(
		filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 1000, Value: 25_000},
		filings.Holding{CUSIP: "B", Company: "BETA", Shares: 200, Value: 5_000},
	)

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", cur, prev)

	var sum float64
	for _, row := range report.Rows {
		sum += row.DeltaValue
	}
	assert.InDelta(t, sum, report.Total.DeltaValue, 1e-9)
	assert.Equal(t, 30_000.0, report.Total.Value)

	// 11,500 delta over a 16,000 previous portfolio
	assert.InDelta(t, 11_500.0/16_000.0*100, report.Total.DeltaPct, 1e-9)
}

func TestCompareEmptyPreviousYieldsInfiniteDeltaPct(t *testing.T) {
	cur := snapshot(filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 10, Value: 1_000})

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", cur, nil)
	assert.True(t, math.IsInf(report.Total.DeltaPct, 1))
}

func TestComparePortfolioPctUsesCurrentTotal(t *testing.T) {
	cur := snapshot(
		filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 10, Value: 7_500},
		filings.Holding{CUSIP: "B", Company: "BETA", Shares: 10, Value: 2_500},
	)

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", cur, filings.Snapshot{})
	assert.InDelta(t, 75.0, report.Row("A").PortfolioPct, 1e-9)
	assert.InDelta(t, 25.0, report.Row("B").PortfolioPct, 1e-9)
}

func TestCompareSortsByDeltaValueDescending(t *testing.T) {
	prev := snapshot(
		filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 100, Value: 1_000},
		filings.Holding{CUSIP: "B", Company: "BETA", Shares: 100, Value: 1_000},
	)
	cur := snapshot(
		filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 50, Value: 500},
		filings.Holding{CUSIP: "B", Company: "BETA", Shares: 300, Value: 3_000},
		filings.Holding{CUSIP: "C", Company: "GAMMA", Shares: 10, Value: 1_500},
	)

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", cur, prev)
	require.Len(t, report.Rows, 3)
	assert.Equal(t, "B", report.Rows[0].CUSIP)
	assert.Equal(t, "C", report.Rows[1].CUSIP)
	assert.Equal(t, "A", report.Rows[2].CUSIP)
}

func TestSortPartialDisclosureAheadOfEqualNew(t *testing.T) {
	rows := []Delta{
		{CUSIP: "A", Value: 5_000, DeltaValue: 5_000, Status: Status{Kind: StatusNew}},
		{CUSIP: "B", Value: 5_000, DeltaValue: 5_000, Status: Status{Kind: StatusNew}, ViaPartialDisclosure: true},
	}
	sortRows(rows)
	assert.Equal(t, "B", rows[0].CUSIP)
}

func TestCompareKeepsCompanyFromPreviousOnClose(t *testing.T) {
	prev := snapshot(filings.Holding{CUSIP: "C", Company: "GAMMA CORP", Shares: 300, Value: 6_000})

	report := newComparator().Compare(context.Background(), "fund", "2024Q2", filings.Snapshot{}, prev)
	assert.Equal(t, "GAMMA CORP", report.Rows[0].Company)
}

func TestCompareResolvesTickers(t *testing.T) {
	resolver := &staticResolver{tickers: map[string]string{"A": "ALPH"}}
	comparator := NewComparator(resolver, zerolog.Nop())

	cur := snapshot(filings.Holding{CUSIP: "A", Company: "ALPHA", Shares: 10, Value: 1_000})
	report := comparator.Compare(context.Background(), "fund", "2024Q2", cur, nil)
	assert.Equal(t, "ALPH", report.Rows[0].Ticker)
}

func TestNASentinelNeverEqualsZero(t *testing.T) {
	assert.True(t, domain.IsNA(domain.NA()))
	assert.False(t, domain.IsNA(0))
}
