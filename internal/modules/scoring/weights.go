// Package scoring ranks aggregated stocks by a weighted composite of
// percentile ranks (the promise score) and provides the growth-potential
// mapping used by the performance evaluator.
package scoring

import (
	"fmt"
	"math"
)

// Weights maps metric names to their share of the composite score.
// Negative weights penalize; they are only allowed on the selling metrics.
type Weights map[string]float64

// KnownMetrics is the contract with the aggregation layer: only these
// names can be weighted.
var KnownMetrics = map[string]struct{}{
	"Total_Value":       {},
	"Total_Delta_Value": {},
	"Max_Portfolio_Pct": {},
	"Buyer_Count":       {},
	"Seller_Count":      {},
	"Close_Count":       {},
	"Holder_Count":      {},
	"New_Holder_Count":  {},
	"Net_Buyers":        {},
}

// weightSumTolerance allows for the rounding slack of externally supplied
// weights; anything further from 1.0 is rejected.
const weightSumTolerance = 0.05

// DefaultWeights is the built-in strategy used when no weighting provider
// is available: conviction and fresh accumulation up, exits down.
func DefaultWeights() Weights {
	return Weights{
		"New_Holder_Count":  0.25,
		"Buyer_Count":       0.20,
		"Total_Delta_Value": 0.20,
		"Total_Value":       0.20,
		"Net_Buyers":        0.15,
		"Max_Portfolio_Pct": 0.15,
		"Holder_Count":      0.10,
		"Seller_Count":      -0.10,
		"Close_Count":       -0.15,
	}
}

// Validate rejects weight mappings that cannot safely drive a ranking:
// unknown metrics, sums away from 1.0, or positive weights on selling
// metrics.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("empty weight mapping")
	}

	var sum float64
	for metric, weight := range w {
		if _, ok := KnownMetrics[metric]; !ok {
			return fmt.Errorf("unknown metric %q", metric)
		}
		if (metric == "Seller_Count" || metric == "Close_Count") && weight > 0 {
			return fmt.Errorf("metric %q must have a non-positive weight, got %v", metric, weight)
		}
		sum += weight
	}

	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights sum to %.2f, expected 1.0 within %.2f", sum, weightSumTolerance)
	}
	return nil
}
