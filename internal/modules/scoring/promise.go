package scoring

import (
	"encoding/json"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/modules/aggregation"
)

// ScoredStock is an aggregated stock with its composite promise score.
type ScoredStock struct {
	aggregation.StockAggregate
	PromiseScore float64
}

// MarshalJSON splices the score into the aggregate's fields; without it the
// embedded aggregate's marshaller would be promoted and the score dropped.
func (s ScoredStock) MarshalJSON() ([]byte, error) {
	base, err := s.StockAggregate.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	fields["promise_score"] = s.PromiseScore
	return json.Marshal(fields)
}

// PercentileRanks returns each value's percentile rank in (0, 1], with
// tied values receiving the average of the ranks they span. Infinities
// participate in the ordering like any other value.
func PercentileRanks(values []float64) []float64 {
	n := len(values)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}
		// 1-based ranks i+1..j+1 averaged across the tie
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg / float64(n)
		}
		i = j + 1
	}
	return ranks
}

// Scorer computes promise scores over an aggregated quarter.
type Scorer struct {
	log zerolog.Logger
}

func NewScorer(log zerolog.Logger) *Scorer {
	return &Scorer{log: log.With().Str("component", "scorer").Logger()}
}

// Score computes the composite score for every stock: for each weighted
// metric, the stock's percentile rank times the weight, summed, times 100.
// Weighted metrics absent from the table are skipped with a warning.
// The result is sorted by score descending.
func (s *Scorer) Score(stocks []aggregation.StockAggregate, weights Weights) []ScoredStock {
	scored := make([]ScoredStock, len(stocks))
	for i, stock := range stocks {
		scored[i] = ScoredStock{StockAggregate: stock}
	}
	if len(scored) == 0 {
		return scored
	}

	metricNames := make([]string, 0, len(weights))
	for metric := range weights {
		metricNames = append(metricNames, metric)
	}
	sort.Strings(metricNames)

	tables := make([]map[string]float64, len(stocks))
	for i := range stocks {
		tables[i] = stocks[i].Metrics()
	}

	for _, metric := range metricNames {
		if _, ok := tables[0][metric]; !ok {
			s.log.Warn().Str("metric", metric).Msg("Weighted metric not present in analysis data, skipping")
			continue
		}

		column := make([]float64, len(stocks))
		for i := range tables {
			column[i] = tables[i][metric]
		}
		ranks := PercentileRanks(column)
		for i := range scored {
			scored[i].PromiseScore += ranks[i] * weights[metric]
		}
	}

	for i := range scored {
		scored[i].PromiseScore *= 100
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].PromiseScore != scored[j].PromiseScore {
			return scored[i].PromiseScore > scored[j].PromiseScore
		}
		return scored[i].CUSIP < scored[j].CUSIP
	})
	return scored
}

// TopN truncates a scored list to its n best entries.
func TopN(scored []ScoredStock, n int) []ScoredStock {
	if n <= 0 || n >= len(scored) {
		return scored
	}
	return scored[:n]
}
