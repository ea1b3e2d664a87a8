package scoring

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundscope/fundscope/internal/modules/aggregation"
)

func TestDefaultWeightsAreValid(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
}

func TestValidateRejectsBadWeights(t *testing.T) {
	assert.Error(t, Weights{}.Validate())
	assert.Error(t, Weights{"Made_Up_Metric": 1.0}.Validate())
	assert.Error(t, Weights{"Buyer_Count": 0.5}.Validate(), "sum far from 1.0")
	assert.Error(t, Weights{"Buyer_Count": 0.8, "Seller_Count": 0.2}.Validate(), "positive seller weight")
	assert.Error(t, Weights{"Buyer_Count": 1.2, "Close_Count": 0.1}.Validate(), "positive close weight")

	assert.NoError(t, Weights{"Buyer_Count": 0.6, "New_Holder_Count": 0.5, "Seller_Count": -0.1}.Validate())
	// Tolerance band: 1.04 passes, 1.06 does not
	assert.NoError(t, Weights{"Buyer_Count": 1.04}.Validate())
	assert.Error(t, Weights{"Buyer_Count": 1.06}.Validate())
}

func TestPercentileRanks(t *testing.T) {
	ranks := PercentileRanks([]float64{10, 20, 30, 40})
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.0}, ranks)
}

func TestPercentileRanksAverageTies(t *testing.T) {
	// Ranks 2 and 3 are tied, both get 2.5/4
	ranks := PercentileRanks([]float64{10, 20, 20, 40})
	assert.InDelta(t, 0.25, ranks[0], 1e-9)
	assert.InDelta(t, 0.625, ranks[1], 1e-9)
	assert.InDelta(t, 0.625, ranks[2], 1e-9)
	assert.InDelta(t, 1.0, ranks[3], 1e-9)
}

func TestPercentileRanksInfinityIsMaximal(t *testing.T) {
	ranks := PercentileRanks([]float64{1, math.Inf(1), 2})
	assert.InDelta(t, 1.0, ranks[1], 1e-9)
	assert.InDelta(t, 1.0/3, ranks[0], 1e-9)
}

func stocksForScoring() []aggregation.StockAggregate {
	return []aggregation.StockAggregate{
		{CUSIP: "A", Ticker: "AAA", BuyerCount: 10, NewHolderCount: 5, TotalValue: 1000},
		{CUSIP: "B", Ticker: "BBB", BuyerCount: 5, NewHolderCount: 2, TotalValue: 2000},
		{CUSIP: "C", Ticker: "CCC", BuyerCount: 1, NewHolderCount: 0, TotalValue: 500},
	}
}

func TestScoreRanksByWeightedPercentiles(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())
	weights := Weights{"Buyer_Count": 0.6, "New_Holder_Count": 0.4}

	scored := scorer.Score(stocksForScoring(), weights)
	require.Len(t, scored, 3)

	assert.Equal(t, "A", scored[0].CUSIP)
	assert.Equal(t, "B", scored[1].CUSIP)
	assert.Equal(t, "C", scored[2].CUSIP)

	// A is top percentile on both metrics: (1.0*0.6 + 1.0*0.4) * 100
	assert.InDelta(t, 100.0, scored[0].PromiseScore, 1e-9)
}

func TestScoreSkipsUnknownMetric(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())
	weights := Weights{"Buyer_Count": 0.6, "Nonexistent": 0.4}

	scored := scorer.Score(stocksForScoring(), weights)
	require.Len(t, scored, 3)
	// Only Buyer_Count contributes
	assert.InDelta(t, 60.0, scored[0].PromiseScore, 1e-9)
}

func TestScoreMonotonicInPositiveWeights(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())
	weights := Weights{"Buyer_Count": 1.0}

	base := stocksForScoring()
	before := scorer.Score(base, weights)

	bumped := stocksForScoring()
	bumped[2].BuyerCount = 20 // C overtakes everyone
	after := scorer.Score(bumped, weights)

	var beforeC, afterC float64
	for _, s := range before {
		if s.CUSIP == "C" {
			beforeC = s.PromiseScore
		}
	}
	for _, s := range after {
		if s.CUSIP == "C" {
			afterC = s.PromiseScore
		}
	}
	assert.Greater(t, afterC, beforeC)
	assert.Equal(t, "C", after[0].CUSIP)
}

func TestTopN(t *testing.T) {
	scorer := NewScorer(zerolog.Nop())
	scored := scorer.Score(stocksForScoring(), Weights{"Buyer_Count": 1.0})

	assert.Len(t, TopN(scored, 2), 2)
	assert.Len(t, TopN(scored, 10), 3)
	assert.Len(t, TopN(scored, 0), 3)
}

func TestGrowthPotentialBoundaries(t *testing.T) {
	for _, tc := range []struct {
		change float64
		want   float64
	}{
		{-150, 100},
		{-100, 100},
		{-40, 90},
		{-15, 75},
		{-2, 66},
		{2, 55},
		{15, 40},
		{40, 11},
		{60, 1},
	} {
		assert.InDelta(t, tc.want, GrowthPotentialScore(tc.change), 1e-9, "change=%v", tc.change)
	}
}

func TestGrowthPotentialInterpolates(t *testing.T) {
	// Midpoint of the [-100, -40] segment
	assert.InDelta(t, 95.0, GrowthPotentialScore(-70), 1e-9)
	// Midpoint of the (+2, +15] segment
	assert.InDelta(t, 47.0, GrowthPotentialScore(8.5), 1e-9)
}

func TestGrowthPotentialMonotonicallyDecreasing(t *testing.T) {
	prev := math.Inf(1)
	for change := -120.0; change <= 120; change += 0.5 {
		score := GrowthPotentialScore(change)
		assert.LessOrEqual(t, score, prev, "change=%v", change)
		prev = score
	}
}
