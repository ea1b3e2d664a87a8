// Package reports persists per-fund quarterly delta reports and the partial
// holdings disclosed between quarters.
package reports

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/database"
	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/comparison"
	"github.com/fundscope/fundscope/internal/modules/filings"
)

// Store is the persisted delta store. A report is keyed by (fund, quarter)
// and overwritten wholesale on recomputation, never patched row by row.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("repo", "reports").Logger(),
	}
}

// nullable maps the N/A sentinel to SQL NULL.
func nullable(v float64) interface{} {
	if domain.IsNA(v) {
		return nil
	}
	return v
}

func scanNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return domain.NA()
	}
	return v.Float64
}

// SaveReport replaces the stored report for the report's fund and quarter.
func (s *Store) SaveReport(report *comparison.Report) error {
	return database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM delta_reports WHERE fund = ? AND quarter = ?`,
			report.Fund, string(report.Quarter)); err != nil {
			return fmt.Errorf("failed to clear previous report rows: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO delta_reports
				(fund, quarter, cusip, ticker, company, shares, delta_shares,
				 value, delta_value, portfolio_pct, status_kind, status_pct, via_partial, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare report insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range report.Rows {
			viaPartial := 0
			if row.ViaPartialDisclosure {
				viaPartial = 1
			}
			if _, err := stmt.Exec(
				report.Fund, string(report.Quarter), row.CUSIP, row.Ticker, row.Company,
				row.Shares, row.DeltaShares,
				nullable(row.Value), nullable(row.DeltaValue), nullable(row.PortfolioPct),
				string(row.Status.Kind), nullable(row.Status.Pct), viaPartial, i,
			); err != nil {
				return fmt.Errorf("failed to insert report row %s: %w", row.CUSIP, err)
			}
		}

		if _, err := tx.Exec(`
			INSERT INTO report_totals (fund, quarter, value, delta_value, delta_pct, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(fund, quarter) DO UPDATE SET
				value = excluded.value,
				delta_value = excluded.delta_value,
				delta_pct = excluded.delta_pct,
				updated_at = excluded.updated_at`,
			report.Fund, string(report.Quarter),
			nullable(report.Total.Value), nullable(report.Total.DeltaValue), nullable(report.Total.DeltaPct),
			time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to upsert report totals: %w", err)
		}

		return nil
	})
}

// LoadReport returns the stored report for (fund, quarter), or nil when no
// report has been computed yet.
func (s *Store) LoadReport(fund string, quarter domain.Quarter) (*comparison.Report, error) {
	var total comparison.Total
	var value, deltaValue, deltaPct sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT value, delta_value, delta_pct FROM report_totals
		WHERE fund = ? AND quarter = ?`, fund, string(quarter)).
		Scan(&value, &deltaValue, &deltaPct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report totals: %w", err)
	}
	total = comparison.Total{
		Value:      scanNullable(value),
		DeltaValue: scanNullable(deltaValue),
		DeltaPct:   scanNullable(deltaPct),
	}

	rows, err := s.db.Query(`
		SELECT cusip, ticker, company, shares, delta_shares,
		       value, delta_value, portfolio_pct, status_kind, status_pct, via_partial
		FROM delta_reports
		WHERE fund = ? AND quarter = ?
		ORDER BY position`, fund, string(quarter))
	if err != nil {
		return nil, fmt.Errorf("failed to query report rows: %w", err)
	}
	defer rows.Close()

	report := &comparison.Report{Fund: fund, Quarter: quarter, Total: total}
	for rows.Next() {
		row, err := scanDelta(rows)
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, row)
	}
	return report, rows.Err()
}

func scanDelta(rows *sql.Rows) (comparison.Delta, error) {
	var (
		row                          comparison.Delta
		value, deltaValue, pct, spct sql.NullFloat64
		statusKind                   string
		viaPartial                   int
	)
	if err := rows.Scan(&row.CUSIP, &row.Ticker, &row.Company, &row.Shares, &row.DeltaShares,
		&value, &deltaValue, &pct, &statusKind, &spct, &viaPartial); err != nil {
		return row, fmt.Errorf("failed to scan report row: %w", err)
	}
	row.Value = scanNullable(value)
	row.DeltaValue = scanNullable(deltaValue)
	row.PortfolioPct = scanNullable(pct)
	row.Status = comparison.Status{Kind: comparison.StatusKind(statusKind)}
	if spct.Valid {
		row.Status.Pct = spct.Float64
	}
	row.ViaPartialDisclosure = viaPartial != 0
	return row, nil
}

// LoadQuarter returns every fund's report for a quarter.
func (s *Store) LoadQuarter(quarter domain.Quarter) ([]*comparison.Report, error) {
	funds, err := s.fundsInQuarter(quarter)
	if err != nil {
		return nil, err
	}

	result := make([]*comparison.Report, 0, len(funds))
	for _, fund := range funds {
		report, err := s.LoadReport(fund, quarter)
		if err != nil {
			return nil, err
		}
		if report != nil {
			result = append(result, report)
		}
	}
	return result, nil
}

func (s *Store) fundsInQuarter(quarter domain.Quarter) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT fund FROM report_totals WHERE quarter = ? ORDER BY fund`, string(quarter))
	if err != nil {
		return nil, fmt.Errorf("failed to query funds for quarter: %w", err)
	}
	defer rows.Close()

	var funds []string
	for rows.Next() {
		var fund string
		if err := rows.Scan(&fund); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, fund)
	}
	return funds, rows.Err()
}

// Quarters lists all quarters with stored reports, most recent first.
func (s *Store) Quarters() ([]domain.Quarter, error) {
	rows, err := s.db.Query(`SELECT DISTINCT quarter FROM report_totals ORDER BY quarter DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quarters: %w", err)
	}
	defer rows.Close()

	var quarters []domain.Quarter
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("failed to scan quarter: %w", err)
		}
		quarters = append(quarters, domain.Quarter(q))
	}
	return quarters, rows.Err()
}

// LastQuarter returns the most recent quarter with stored reports, or ""
// when nothing has been stored yet.
func (s *Store) LastQuarter() (domain.Quarter, error) {
	var q string
	err := s.db.QueryRow(`SELECT quarter FROM report_totals ORDER BY quarter DESC LIMIT 1`).Scan(&q)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load last quarter: %w", err)
	}
	return domain.Quarter(q), nil
}

// SavePartials stores partial disclosures; amendments with the same key are
// replaced, everything else accumulates.
func (s *Store) SavePartials(partials []filings.PartialHolding) error {
	if len(partials) == 0 {
		return nil
	}
	return database.WithTransaction(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO partial_holdings
				(fund, cusip, company, shares, avg_price, kind, event_date, accepted_on)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(fund, cusip, kind, event_date, accepted_on) DO UPDATE SET
				company = excluded.company,
				shares = excluded.shares,
				avg_price = excluded.avg_price`)
		if err != nil {
			return fmt.Errorf("failed to prepare partial insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range partials {
			var avgPrice interface{}
			if p.AvgPrice > 0 {
				avgPrice = p.AvgPrice
			}
			if _, err := stmt.Exec(
				p.Fund, p.CUSIP, p.Company, p.Shares, avgPrice, string(p.Kind),
				p.Date.UTC().Format("2006-01-02"),
				p.AcceptedOn.UTC().Format(time.RFC3339),
			); err != nil {
				return fmt.Errorf("failed to insert partial holding %s: %w", p.CUSIP, err)
			}
		}
		return nil
	})
}

// LoadPartials returns a fund's partial disclosures dated strictly after
// the given date. A zero time loads everything.
func (s *Store) LoadPartials(fund string, after time.Time) ([]filings.PartialHolding, error) {
	rows, err := s.db.Query(`
		SELECT fund, cusip, company, shares, avg_price, kind, event_date, accepted_on
		FROM partial_holdings
		WHERE fund = ? AND event_date > ?
		ORDER BY event_date DESC, accepted_on DESC`,
		fund, after.UTC().Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query partial holdings: %w", err)
	}
	defer rows.Close()

	var partials []filings.PartialHolding
	for rows.Next() {
		var (
			p          filings.PartialHolding
			avgPrice   sql.NullFloat64
			kind       string
			eventDate  string
			acceptedOn string
		)
		if err := rows.Scan(&p.Fund, &p.CUSIP, &p.Company, &p.Shares, &avgPrice,
			&kind, &eventDate, &acceptedOn); err != nil {
			return nil, fmt.Errorf("failed to scan partial holding: %w", err)
		}
		if avgPrice.Valid {
			p.AvgPrice = avgPrice.Float64
		}
		p.Kind = filings.Kind(kind)
		if d, err := time.Parse("2006-01-02", eventDate); err == nil {
			p.Date = d
		}
		if d, err := time.Parse(time.RFC3339, acceptedOn); err == nil {
			p.AcceptedOn = d
		}
		partials = append(partials, p)
	}
	return partials, rows.Err()
}
