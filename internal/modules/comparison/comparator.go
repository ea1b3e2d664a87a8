package comparison

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/filings"
)

// Comparator joins two normalized snapshots of the same fund and classifies
// every position's change.
type Comparator struct {
	resolver TickerResolver
	log      zerolog.Logger
}

func NewComparator(resolver TickerResolver, log zerolog.Logger) *Comparator {
	return &Comparator{
		resolver: resolver,
		log:      log.With().Str("component", "comparator").Logger(),
	}
}

// Compare produces the Delta Record set for current against previous.
// A nil previous snapshot is a first-ever filing: every position is NEW.
func (c *Comparator) Compare(ctx context.Context, fund string, quarter domain.Quarter, current, previous filings.Snapshot) *Report {
	if previous == nil {
		previous = filings.Snapshot{}
	}

	cusips := make(map[string]struct{}, len(current)+len(previous))
	for cusip := range current {
		cusips[cusip] = struct{}{}
	}
	for cusip := range previous {
		cusips[cusip] = struct{}{}
	}

	rows := make([]Delta, 0, len(cusips))
	for cusip := range cusips {
		cur := current[cusip]
		prev := previous[cusip]

		company := cur.Company
		if company == "" {
			company = prev.Company
		}

		// The current side's implied price is preferred so repriced
		// share deltas reflect the latest known market value.
		price := domain.NA()
		switch {
		case cur.Shares > 0:
			price = float64(cur.Value) / float64(cur.Shares)
		case prev.Shares > 0:
			price = float64(prev.Value) / float64(prev.Shares)
		}

		deltaShares := cur.Shares - prev.Shares

		row := Delta{
			CUSIP:       cusip,
			Company:     company,
			Shares:      cur.Shares,
			DeltaShares: deltaShares,
			Value:       float64(cur.Value),
			DeltaValue:  float64(deltaShares) * price,
			Status:      classify(cur.Shares, prev.Shares),
		}

		if c.resolver != nil {
			if ticker, resolved, err := c.resolver.Resolve(ctx, cusip, company); err == nil {
				row.Ticker = ticker
				if resolved != "" {
					row.Company = resolved
				}
			} else {
				c.log.Debug().Str("cusip", cusip).Err(err).Msg("Ticker resolution failed")
			}
		}

		rows = append(rows, row)
	}

	report := &Report{Fund: fund, Quarter: quarter, Rows: rows}
	previousTotal := float64(previous.TotalValue())
	finalizeReport(report, previousTotal)
	return report
}

func classify(curShares, prevShares int64) Status {
	switch {
	case prevShares == 0:
		return Status{Kind: StatusNew}
	case curShares == 0:
		return Status{Kind: StatusClose}
	case curShares == prevShares:
		return Status{Kind: StatusNoChange}
	default:
		pct := float64(curShares-prevShares) / float64(prevShares) * 100
		return Status{Kind: StatusChanged, Pct: pct}
	}
}

// finalizeReport recomputes totals, portfolio percentages and row order.
// Shared with the overlay, which mutates rows and then re-finalizes.
func finalizeReport(report *Report, previousTotal float64) {
	var totalValue, totalDelta float64
	for _, row := range report.Rows {
		if !domain.IsNA(row.Value) {
			totalValue += row.Value
		}
		if !domain.IsNA(row.DeltaValue) {
			totalDelta += row.DeltaValue
		}
	}

	for i := range report.Rows {
		row := &report.Rows[i]
		if totalValue == 0 || domain.IsNA(row.Value) {
			row.PortfolioPct = domain.NA()
			continue
		}
		row.PortfolioPct = row.Value / totalValue * 100
	}

	deltaPct := math.Inf(1)
	if previousTotal != 0 {
		deltaPct = totalDelta / previousTotal * 100
	}
	report.Total = Total{Value: totalValue, DeltaValue: totalDelta, DeltaPct: deltaPct}

	sortRows(report.Rows)
}

// sortKey treats an unknown delta as zero for ordering purposes only.
func sortKey(v float64) float64 {
	if domain.IsNA(v) {
		return 0
	}
	return v
}

func sortRows(rows []Delta) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		ka, kb := sortKey(a.DeltaValue), sortKey(b.DeltaValue)
		if ka != kb {
			return ka > kb
		}
		// Freshly disclosed stakes surface ahead of ordinary new
		// positions of equal delta value.
		if a.ViaPartialDisclosure != b.ViaPartialDisclosure {
			return a.ViaPartialDisclosure
		}
		va, vb := sortKey(a.Value), sortKey(b.Value)
		if va != vb {
			return va > vb
		}
		return a.CUSIP < b.CUSIP
	})
}
