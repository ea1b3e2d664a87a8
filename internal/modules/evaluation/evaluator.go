// Package evaluation computes holding-based returns per fund: the return a
// fund's start-of-quarter portfolio would have earned from price moves
// alone, isolating stock picking from capital flows.
package evaluation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/comparison"
)

// topPositions caps how many start-of-quarter positions are evaluated, to
// bound price-lookup calls for closed positions.
const topPositions = 100

const topMovers = 10

// ReportLoader is the slice of the delta store the evaluator needs.
type ReportLoader interface {
	LoadReport(fund string, quarter domain.Quarter) (*comparison.Report, error)
}

// PositionReturn is one holding's contribution to the quarter's return.
type PositionReturn struct {
	CUSIP            string  `json:"cusip"`
	Ticker           string  `json:"ticker"`
	Company          string  `json:"company"`
	Weight           float64 `json:"weight"`
	ReturnPct        float64 `json:"return_pct"`
	WeightedReturn   float64 `json:"weighted_return"`
	PricedExternally bool    `json:"priced_externally"` // closed position, end price fetched
}

// Performance is a fund's holding-based return for one quarter.
type Performance struct {
	Fund            string           `json:"fund"`
	Quarter         domain.Quarter   `json:"quarter"`
	PortfolioReturn float64          `json:"portfolio_return"`
	StartValue      float64          `json:"start_value"`
	EndValue        float64          `json:"end_value"`
	TopContributors []PositionReturn `json:"top_contributors"`
	TopDetractors   []PositionReturn `json:"top_detractors"`
}

// Evaluator computes holding-based returns from stored reports and, for
// closed positions, historical prices.
type Evaluator struct {
	reports ReportLoader
	prices  comparison.PriceLookup
	log     zerolog.Logger
}

func NewEvaluator(reports ReportLoader, prices comparison.PriceLookup, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		reports: reports,
		prices:  prices,
		log:     log.With().Str("component", "evaluator").Logger(),
	}
}

// Evaluate computes the holding-based return of fund over quarter: each
// start-of-quarter position is weighted by its share of the start
// portfolio and priced at quarter end from the fund's own reported values,
// falling back to a historical price lookup for positions closed during
// the quarter.
func (e *Evaluator) Evaluate(ctx context.Context, fund string, quarter domain.Quarter) (*Performance, error) {
	previous, err := e.reports.LoadReport(fund, quarter.Previous())
	if err != nil {
		return nil, err
	}
	if previous == nil || len(previous.Rows) == 0 {
		return nil, fmt.Errorf("no holdings for %s in %s, cannot evaluate %s", fund, quarter.Previous(), quarter)
	}

	current, err := e.reports.LoadReport(fund, quarter)
	if err != nil {
		return nil, err
	}

	start := make([]comparison.Delta, 0, len(previous.Rows))
	for _, row := range previous.Rows {
		if row.Shares > 0 && !domain.IsNA(row.Value) && row.Value > 0 {
			start = append(start, row)
		}
	}
	sort.Slice(start, func(i, j int) bool { return start[i].Value > start[j].Value })
	if len(start) > topPositions {
		start = start[:topPositions]
	}

	var startValue float64
	for _, row := range start {
		startValue += row.Value
	}
	if startValue == 0 {
		return nil, fmt.Errorf("start portfolio value is zero for %s in %s", fund, quarter.Previous())
	}

	endDate := quarter.EndDate()
	weights := make([]float64, len(start))
	returns := make([]float64, len(start))
	positions := make([]PositionReturn, len(start))

	for i, row := range start {
		weights[i] = row.Value / startValue

		priceStart := row.Value / float64(row.Shares)
		priceEnd, external := e.endPrice(ctx, current, row, endDate)

		ret := 0.0
		if priceStart > 0 && priceEnd > 0 {
			ret = (priceEnd/priceStart - 1) * 100
		}
		returns[i] = ret

		positions[i] = PositionReturn{
			CUSIP:            row.CUSIP,
			Ticker:           row.Ticker,
			Company:          row.Company,
			Weight:           weights[i],
			ReturnPct:        ret,
			WeightedReturn:   weights[i] * ret,
			PricedExternally: external,
		}
	}

	portfolioReturn := floats.Dot(weights, returns)

	byContribution := make([]PositionReturn, len(positions))
	copy(byContribution, positions)
	sort.SliceStable(byContribution, func(i, j int) bool {
		return byContribution[i].WeightedReturn > byContribution[j].WeightedReturn
	})

	perf := &Performance{
		Fund:            fund,
		Quarter:         quarter,
		PortfolioReturn: portfolioReturn,
		StartValue:      startValue,
		EndValue:        startValue * (1 + portfolioReturn/100),
		TopContributors: headPositions(byContribution, topMovers),
	}
	reversed := make([]PositionReturn, len(byContribution))
	for i, p := range byContribution {
		reversed[len(byContribution)-1-i] = p
	}
	perf.TopDetractors = headPositions(reversed, topMovers)
	return perf, nil
}

// endPrice derives the position's end-of-quarter price: from the current
// report when the position survived, from the price lookup when it was
// closed. A zero result means no price could be determined.
func (e *Evaluator) endPrice(ctx context.Context, current *comparison.Report, row comparison.Delta, endDate time.Time) (float64, bool) {
	if current != nil {
		if cur := current.Row(row.CUSIP); cur != nil && cur.Shares > 0 && !domain.IsNA(cur.Value) && cur.Value > 0 {
			return cur.Value / float64(cur.Shares), false
		}
	}

	if e.prices == nil || row.Ticker == "" {
		return 0, true
	}
	price, err := e.prices.AveragePrice(ctx, row.Ticker, endDate)
	if err != nil {
		e.log.Warn().Str("ticker", row.Ticker).Err(err).Msg("No end-of-quarter price for closed position")
		return 0, true
	}
	return price, true
}

func headPositions(positions []PositionReturn, n int) []PositionReturn {
	if len(positions) <= n {
		return positions
	}
	return positions[:n]
}
