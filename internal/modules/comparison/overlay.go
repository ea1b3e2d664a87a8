package comparison

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/filings"
)

// Overlay merges partial disclosures (13D/G, Form 4) filed after a quarter's
// reference date into that quarter's report. Share counts come from the
// disclosure; prices are never re-fetched for positions the fund still
// holds, so a share-count update is not conflated with a price move.
type Overlay struct {
	prices PriceLookup
	log    zerolog.Logger
}

func NewOverlay(prices PriceLookup, log zerolog.Logger) *Overlay {
	return &Overlay{
		prices: prices,
		log:    log.With().Str("component", "overlay").Logger(),
	}
}

// Apply merges partials into report and recomputes totals, percentages and
// ordering. previousTotal is the prior quarter's portfolio value, used for
// the overall delta percentage. Amendments are collapsed first: only the
// latest disclosure per security survives, ordered by event date and then
// by EDGAR acceptance time.
func (o *Overlay) Apply(ctx context.Context, report *Report, partials []filings.PartialHolding, previousTotal float64) {
	for _, p := range latestPerCUSIP(partials) {
		if row := report.Row(p.CUSIP); row != nil {
			o.updateExisting(ctx, row, p)
			continue
		}

		if p.Shares == 0 {
			// Nothing held before or after; no row to show
			continue
		}

		value := domain.NA()
		if p.AvgPrice > 0 {
			value = float64(p.Shares) * p.AvgPrice
		}
		report.Rows = append(report.Rows, Delta{
			CUSIP:                p.CUSIP,
			Company:              p.Company,
			Shares:               p.Shares,
			DeltaShares:          p.Shares,
			Value:                value,
			DeltaValue:           value,
			Status:               Status{Kind: StatusNew},
			ViaPartialDisclosure: true,
		})
	}

	finalizeReport(report, previousTotal)
}

func (o *Overlay) updateExisting(ctx context.Context, row *Delta, p filings.PartialHolding) {
	oldShares := row.Shares

	price := domain.NA()
	if oldShares > 0 && !domain.IsNA(row.Value) {
		price = row.Value / float64(oldShares)
	}

	row.DeltaShares = p.Shares - oldShares
	row.Shares = p.Shares
	row.ViaPartialDisclosure = true
	row.Status = classify(p.Shares, oldShares)

	if p.Shares == 0 {
		// Exited entirely. The exit is priced at the disclosure date;
		// without a price the loss of value is unknown, never zero.
		row.Value = 0
		row.DeltaValue = domain.NA()
		if o.prices != nil && row.Ticker != "" {
			if avg, err := o.prices.AveragePrice(ctx, row.Ticker, p.Date); err == nil && avg > 0 {
				row.DeltaValue = -float64(oldShares) * avg
			} else if err != nil {
				o.log.Warn().Str("ticker", row.Ticker).Err(err).Msg("No price for closed position")
			}
		}
		return
	}

	if domain.IsNA(price) {
		row.Value = domain.NA()
		row.DeltaValue = domain.NA()
		return
	}
	row.Value = float64(p.Shares) * price
	row.DeltaValue = float64(row.DeltaShares) * price
}

// latestPerCUSIP collapses amendments: the newest disclosure per security
// wins, by event date first and acceptance time second.
func latestPerCUSIP(partials []filings.PartialHolding) []filings.PartialHolding {
	sorted := make([]filings.PartialHolding, len(partials))
	copy(sorted, partials)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.AcceptedOn.After(b.AcceptedOn)
	})

	seen := make(map[string]struct{}, len(sorted))
	latest := make([]filings.PartialHolding, 0, len(sorted))
	for _, p := range sorted {
		if _, ok := seen[p.CUSIP]; ok {
			continue
		}
		seen[p.CUSIP] = struct{}{}
		latest = append(latest, p)
	}
	return latest
}
