// Package aggregation rolls all funds' quarterly delta reports up into one
// record per security, the input table of the ranking layer.
package aggregation

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/comparison"
	"github.com/fundscope/fundscope/internal/modules/universe"
)

// FundRow is one fund's delta row together with that fund's total portfolio
// value, needed for the portfolio-impact weighting.
type FundRow struct {
	Fund           string
	FundTotalValue float64
	Row            comparison.Delta
}

// FundRows flattens a set of per-fund reports into one logical table.
func FundRows(reports []*comparison.Report) []FundRow {
	var rows []FundRow
	for _, report := range reports {
		for _, row := range report.Rows {
			rows = append(rows, FundRow{
				Fund:           report.Fund,
				FundTotalValue: report.Total.Value,
				Row:            row,
			})
		}
	}
	return rows
}

// StockAggregate is the cross-fund view of one security for a quarter.
type StockAggregate struct {
	CUSIP   string
	Ticker  string
	Company string

	TotalValue      float64
	TotalDeltaValue float64
	// Sum of each fund's delta as a percentage of that fund's portfolio.
	// A $1M move matters ten times more in a $10M fund than in a $100M one.
	TotalWeightedDeltaPct float64
	MaxPortfolioPct       float64
	AvgPortfolioPct       float64

	BuyerCount     int
	SellerCount    int
	HolderCount    int
	NewHolderCount int
	CloseCount     int
	NetBuyers      int

	DeltaPct         float64 // +Inf when every holder is new and nothing closed
	BuyerSellerRatio float64 // +Inf when there are no sellers
}

// Metrics exposes the aggregate as the flat metric table the scoring layer
// consumes. Key names are part of the weight-mapping contract.
func (a *StockAggregate) Metrics() map[string]float64 {
	return map[string]float64{
		"Total_Value":       a.TotalValue,
		"Total_Delta_Value": a.TotalDeltaValue,
		"Max_Portfolio_Pct": a.MaxPortfolioPct,
		"Buyer_Count":       float64(a.BuyerCount),
		"Seller_Count":      float64(a.SellerCount),
		"Close_Count":       float64(a.CloseCount),
		"Holder_Count":      float64(a.HolderCount),
		"New_Holder_Count":  float64(a.NewHolderCount),
		"Net_Buyers":        float64(a.NetBuyers),
	}
}

// MarshalJSON maps the sentinel-bearing floats through domain.FloatJSON;
// DeltaPct and BuyerSellerRatio can legitimately be +Inf, which
// encoding/json refuses to emit as numbers.
func (a StockAggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"cusip":                    a.CUSIP,
		"ticker":                   a.Ticker,
		"company":                  a.Company,
		"total_value":              domain.FloatJSON(a.TotalValue),
		"total_delta_value":        domain.FloatJSON(a.TotalDeltaValue),
		"total_weighted_delta_pct": domain.FloatJSON(a.TotalWeightedDeltaPct),
		"max_portfolio_pct":        domain.FloatJSON(a.MaxPortfolioPct),
		"avg_portfolio_pct":        domain.FloatJSON(a.AvgPortfolioPct),
		"buyer_count":              a.BuyerCount,
		"seller_count":             a.SellerCount,
		"holder_count":             a.HolderCount,
		"new_holder_count":         a.NewHolderCount,
		"close_count":              a.CloseCount,
		"net_buyers":               a.NetBuyers,
		"delta_pct":                domain.FloatJSON(a.DeltaPct),
		"buyer_seller_ratio":       domain.FloatJSON(a.BuyerSellerRatio),
	})
}

// MarshalJSON keeps the row shape flat for API consumers; the embedded
// delta row carries its own marshaller.
func (r FundRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"fund":             r.Fund,
		"fund_total_value": domain.FloatJSON(r.FundTotalValue),
		"row":              r.Row,
	})
}

// CatalogLookup is the slice of the security catalog the aggregator needs.
type CatalogLookup interface {
	Get(cusip string) (*universe.Security, error)
}

// Aggregator computes per-security aggregates across funds.
type Aggregator struct {
	catalog CatalogLookup
	log     zerolog.Logger
}

func NewAggregator(catalog CatalogLookup, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		catalog: catalog,
		log:     log.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate builds one record per distinct security. Unresolvable
// securities are kept, not dropped; they just stay without a ticker.
func (a *Aggregator) Aggregate(rows []FundRow) []StockAggregate {
	byCUSIP := make(map[string]*StockAggregate)
	pctSums := make(map[string]float64)
	pctCounts := make(map[string]int)

	for _, fr := range rows {
		row := fr.Row
		agg, ok := byCUSIP[row.CUSIP]
		if !ok {
			agg = &StockAggregate{CUSIP: row.CUSIP, Ticker: row.Ticker, Company: row.Company}
			byCUSIP[row.CUSIP] = agg
		}

		if !domain.IsNA(row.Value) {
			agg.TotalValue += row.Value
		}
		if !domain.IsNA(row.DeltaValue) {
			agg.TotalDeltaValue += row.DeltaValue
			if row.DeltaValue > 0 {
				agg.BuyerCount++
			}
			if row.DeltaValue < 0 {
				agg.SellerCount++
			}
			// CLOSE rows count too: a fund that exited contributes its
			// outflow to the weighted delta
			if fr.FundTotalValue > 0 {
				agg.TotalWeightedDeltaPct += row.DeltaValue / fr.FundTotalValue * 100
			}
		}
		if !domain.IsNA(row.PortfolioPct) {
			if row.PortfolioPct > agg.MaxPortfolioPct {
				agg.MaxPortfolioPct = row.PortfolioPct
			}
			pctSums[row.CUSIP] += row.PortfolioPct
			pctCounts[row.CUSIP]++
		}

		switch row.Status.Kind {
		case comparison.StatusClose:
			agg.CloseCount++
		case comparison.StatusNew:
			agg.NewHolderCount++
			agg.HolderCount++
		default:
			agg.HolderCount++
		}
	}

	result := make([]StockAggregate, 0, len(byCUSIP))
	for cusip, agg := range byCUSIP {
		if n := pctCounts[cusip]; n > 0 {
			agg.AvgPortfolioPct = pctSums[cusip] / float64(n)
		}
		agg.NetBuyers = agg.BuyerCount - agg.SellerCount
		agg.DeltaPct = deltaPct(agg)
		agg.BuyerSellerRatio = math.Inf(1)
		if agg.SellerCount > 0 {
			agg.BuyerSellerRatio = float64(agg.BuyerCount) / float64(agg.SellerCount)
		}
		a.attachIdentity(agg)
		result = append(result, *agg)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalValue != result[j].TotalValue {
			return result[i].TotalValue > result[j].TotalValue
		}
		return result[i].CUSIP < result[j].CUSIP
	})
	return result
}

// deltaPct is the security's overall percentage change against its implied
// previous-quarter value. A security held only through brand-new positions
// has no previous value to divide by.
func deltaPct(agg *StockAggregate) float64 {
	if agg.NewHolderCount == agg.HolderCount && agg.CloseCount == 0 {
		return math.Inf(1)
	}
	previous := agg.TotalValue - agg.TotalDeltaValue
	if previous == 0 {
		return math.Inf(1)
	}
	return agg.TotalDeltaValue / previous * 100
}

func (a *Aggregator) attachIdentity(agg *StockAggregate) {
	if a.catalog == nil {
		return
	}
	sec, err := a.catalog.Get(agg.CUSIP)
	if err != nil {
		a.log.Warn().Str("cusip", agg.CUSIP).Err(err).Msg("Catalog lookup failed")
		return
	}
	if sec == nil {
		return
	}
	if sec.Ticker != "" {
		agg.Ticker = sec.Ticker
	}
	if sec.Company != "" {
		agg.Company = sec.Company
	}
}
