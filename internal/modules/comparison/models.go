// Package comparison computes quarter-over-quarter position deltas per fund
// and overlays newer partial disclosures onto the latest quarterly snapshot.
package comparison

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fundscope/fundscope/internal/domain"
)

// StatusKind classifies how a position changed between two quarters.
type StatusKind string

const (
	StatusNew      StatusKind = "NEW"
	StatusClose    StatusKind = "CLOSE"
	StatusNoChange StatusKind = "NO_CHANGE"
	StatusChanged  StatusKind = "CHANGED"
)

// Status is the classified change of a position. Pct carries the share-count
// percentage change and is only meaningful for StatusChanged.
type Status struct {
	Kind StatusKind
	Pct  float64
}

// Label renders the status the way reports display it: the kind name for
// NEW/CLOSE/NO_CHANGE, the signed share-count percentage for CHANGED.
func (s Status) Label() string {
	if s.Kind == StatusChanged {
		return domain.FormatPercentage(s.Pct, true, 2)
	}
	return string(s.Kind)
}

// Delta is one security's quarter-over-quarter change for a fund.
// Value, DeltaValue and PortfolioPct can carry the N/A sentinel when a
// market value could not be determined (partial disclosures with no price).
type Delta struct {
	CUSIP                string
	Ticker               string
	Company              string
	Shares               int64
	DeltaShares          int64
	Value                float64
	DeltaValue           float64
	PortfolioPct         float64
	Status               Status
	ViaPartialDisclosure bool
}

// Total is the portfolio-level summary of a report. DeltaValue is the sum
// of the per-row delta values, so the total always reconciles with the rows.
type Total struct {
	Value      float64
	DeltaValue float64
	DeltaPct   float64 // +Inf when the previous quarter had no value
}

// MarshalJSON emits the row with sentinel-bearing floats mapped through
// domain.FloatJSON, since encoding/json cannot represent NaN or Inf.
func (d Delta) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"cusip":         d.CUSIP,
		"ticker":        d.Ticker,
		"company":       d.Company,
		"shares":        d.Shares,
		"delta_shares":  d.DeltaShares,
		"value":         domain.FloatJSON(d.Value),
		"delta_value":   domain.FloatJSON(d.DeltaValue),
		"portfolio_pct": domain.FloatJSON(d.PortfolioPct),
		"status":        d.Status.Label(),
		"via_partial":   d.ViaPartialDisclosure,
	})
}

func (t Total) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"value":       domain.FloatJSON(t.Value),
		"delta_value": domain.FloatJSON(t.DeltaValue),
		"delta_pct":   domain.FloatJSON(t.DeltaPct),
	})
}

// Report is the full Delta Record set of one fund for one quarter.
type Report struct {
	Fund    string
	Quarter domain.Quarter
	Rows    []Delta
	Total   Total
}

// Row returns the report row for the given CUSIP, or nil.
func (r *Report) Row(cusip string) *Delta {
	for i := range r.Rows {
		if r.Rows[i].CUSIP == cusip {
			return &r.Rows[i]
		}
	}
	return nil
}

// TickerResolver maps a CUSIP to its ticker and canonical company name.
// Resolution is idempotent; failure to resolve is not an error for the
// caller, the row simply keeps what the filing carried.
type TickerResolver interface {
	Resolve(ctx context.Context, cusip, companyHint string) (ticker, company string, err error)
}

// PriceLookup fetches a historical average price for a trading day.
// Any error is treated as "price unavailable".
type PriceLookup interface {
	AveragePrice(ctx context.Context, ticker string, day time.Time) (float64, error)
}

// AlertSink receives operator-visible notifications for data-attribution
// problems. Implementations never block and never fail the caller.
type AlertSink interface {
	RaiseAlert(subject, detail string)
}
