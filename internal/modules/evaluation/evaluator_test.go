package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/comparison"
)

type fakeReports struct {
	reports map[string]*comparison.Report
}

func (f *fakeReports) LoadReport(fund string, quarter domain.Quarter) (*comparison.Report, error) {
	return f.reports[fund+"/"+string(quarter)], nil
}

type fakePrices struct {
	prices map[string]float64
	calls  int
}

func (p *fakePrices) AveragePrice(_ context.Context, ticker string, _ time.Time) (float64, error) {
	p.calls++
	if price, ok := p.prices[ticker]; ok {
		return price, nil
	}
	return 0, errors.New("no price data")
}

func newEvaluatorFixture(prices *fakePrices) *Evaluator {
	reports := &fakeReports{reports: map[string]*comparison.Report{
		"fund/2024Q1": {
			Fund:    "fund",
			Quarter: "2024Q1",
			Rows: []comparison.Delta{
				// 100 shares at 10
				{CUSIP: "A", Ticker: "AAA", Company: "Alpha", Shares: 100, Value: 1_000},
				// 50 shares at 20
				{CUSIP: "B", Ticker: "BBB", Company: "Beta", Shares: 50, Value: 1_000},
			},
			Total: comparison.Total{Value: 2_000},
		},
		"fund/2024Q2": {
			Fund:    "fund",
			Quarter: "2024Q2",
			Rows: []comparison.Delta{
				// A now priced at 12
				{CUSIP: "A", Ticker: "AAA", Company: "Alpha", Shares: 200, Value: 2_400},
				// B closed; end price comes from the lookup
				{CUSIP: "B", Ticker: "BBB", Company: "Beta", Shares: 0, Value: 0,
					Status: comparison.Status{Kind: comparison.StatusClose}},
			},
			Total: comparison.Total{Value: 2_400},
		},
	}}
	return NewEvaluator(reports, prices, zerolog.Nop())
}

func TestEvaluateHoldingBasedReturn(t *testing.T) {
	prices := &fakePrices{prices: map[string]float64{"BBB": 25}}
	evaluator := newEvaluatorFixture(prices)

	perf, err := evaluator.Evaluate(context.Background(), "fund", "2024Q2")
	require.NoError(t, err)

	// A: weight 0.5, return +20%; B: weight 0.5, return +25%
	assert.InDelta(t, 22.5, perf.PortfolioReturn, 1e-9)
	assert.Equal(t, 2_000.0, perf.StartValue)
	assert.InDelta(t, 2_450.0, perf.EndValue, 1e-9)
	assert.Equal(t, 1, prices.calls)

	require.NotEmpty(t, perf.TopContributors)
	assert.Equal(t, "B", perf.TopContributors[0].CUSIP)
	assert.True(t, perf.TopContributors[0].PricedExternally)
	assert.Equal(t, "A", perf.TopDetractors[0].CUSIP)
}

func TestEvaluateClosedPositionWithoutPriceReturnsZero(t *testing.T) {
	prices := &fakePrices{}
	evaluator := newEvaluatorFixture(prices)

	perf, err := evaluator.Evaluate(context.Background(), "fund", "2024Q2")
	require.NoError(t, err)

	// Only A contributes: 0.5 * 20%
	assert.InDelta(t, 10.0, perf.PortfolioReturn, 1e-9)
}

func TestEvaluateMissingPreviousQuarter(t *testing.T) {
	evaluator := NewEvaluator(&fakeReports{reports: map[string]*comparison.Report{}}, &fakePrices{}, zerolog.Nop())

	_, err := evaluator.Evaluate(context.Background(), "fund", "2024Q2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2024Q1")
}
