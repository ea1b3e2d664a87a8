package filings

import (
	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/config"
)

// Normalizer turns raw 13F rows into a clean Snapshot: options dropped,
// empty rows dropped, misreported thousands rescaled, duplicates merged.
type Normalizer struct {
	scale config.ScaleConfig
	log   zerolog.Logger
}

func NewNormalizer(scale config.ScaleConfig, log zerolog.Logger) *Normalizer {
	return &Normalizer{
		scale: scale,
		log:   log.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize builds a snapshot from raw information-table rows.
// The result is deterministic: normalizing the same rows twice yields the
// same snapshot.
func (n *Normalizer) Normalize(positions []Position) Snapshot {
	// Options out, empty rows out. Parsing already uppercased CUSIPs and
	// collapsed whitespace in issuer names.
	kept := make([]Position, 0, len(positions))
	for _, pos := range positions {
		if pos.PutCall != "" {
			continue
		}
		if pos.Value == 0 || pos.Shares == 0 {
			continue
		}
		kept = append(kept, pos)
	}

	// 13F instructions require whole dollars, but some filers still report
	// thousands. Rescale only when both the largest position and the total
	// are implausibly small for an institutional portfolio; this is a
	// whole-filing decision, never per row.
	var maxValue, totalValue float64
	for _, pos := range kept {
		v := float64(pos.Value)
		totalValue += v
		if v > maxValue {
			maxValue = v
		}
	}
	if len(kept) > 0 && maxValue < n.scale.MaxPositionThreshold && totalValue < n.scale.TotalValueThreshold {
		n.log.Info().
			Float64("max_position", maxValue).
			Float64("total_value", totalValue).
			Msg("Filing values appear to be in thousands, rescaling")
		for i := range kept {
			kept[i].Value = int64(float64(kept[i].Value) * n.scale.Multiplier)
		}
	}

	// Merge duplicate CUSIPs: sum shares and value, keep the longest
	// company name (first seen wins ties).
	snapshot := make(Snapshot, len(kept))
	for _, pos := range kept {
		existing, ok := snapshot[pos.CUSIP]
		if !ok {
			snapshot[pos.CUSIP] = Holding{
				CUSIP:   pos.CUSIP,
				Company: pos.Company,
				Shares:  pos.Shares,
				Value:   pos.Value,
			}
			continue
		}
		existing.Shares += pos.Shares
		existing.Value += pos.Value
		if len(pos.Company) > len(existing.Company) {
			existing.Company = pos.Company
		}
		snapshot[pos.CUSIP] = existing
	}

	return snapshot
}
