// Package filings parses and normalizes SEC ownership filings: quarterly
// 13F-HR holdings reports, Schedule 13D/G beneficial-ownership disclosures,
// and Form 4 insider transactions.
package filings

import "time"

// Kind identifies the filing type as reported by EDGAR.
type Kind string

const (
	Kind13F      Kind = "13F-HR"
	KindSchedule Kind = "SCHEDULE"
	KindForm4    Kind = "4"
)

// RawFiling is an unparsed filing document as fetched from EDGAR.
type RawFiling struct {
	Accession     string
	FundCIK       string
	Kind          Kind
	FilingDate    time.Time
	ReferenceDate time.Time // period of report (13F) or event date (13D/G, Form 4)
	AcceptedOn    time.Time
	Content       []byte
}

// Holding is a single aggregated position in a normalized snapshot.
// Value is in whole dollars, as required by 13F instructions.
type Holding struct {
	CUSIP   string
	Company string
	Shares  int64
	Value   int64
}

// Snapshot is a normalized point-in-time portfolio keyed by CUSIP.
type Snapshot map[string]Holding

// TotalValue returns the sum of all position values in the snapshot.
func (s Snapshot) TotalValue() int64 {
	var total int64
	for _, h := range s {
		total += h.Value
	}
	return total
}

// PartialHolding is a position disclosed outside the quarterly cycle,
// extracted from a Schedule 13D/G or a Form 4. Unlike 13F holdings it
// carries no market value; AvgPrice is only set when the filing reports
// transaction prices.
type PartialHolding struct {
	Fund       string
	CUSIP      string
	Company    string
	Shares     int64
	AvgPrice   float64 // 0 when the filing carries no price
	Kind       Kind
	Date       time.Time // event date the share count is effective at
	AcceptedOn time.Time
}

// Attribution identifies who a non-quarterly filing belongs to. Filings
// surface under a fund's EDGAR index even when the reporting person is a
// different entity; the overlay uses this to reject misattributed rows.
type Attribution struct {
	OwnerName string
	OwnerCIK  string
	IssuerCIK string
}
