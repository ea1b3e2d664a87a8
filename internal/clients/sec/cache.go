package sec

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fundscope/fundscope/internal/modules/filings"
)

// Cache stores downloaded filings keyed by accession number. Filings are
// immutable once published, so cached entries never expire.
type Cache struct {
	db *sql.DB
}

func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// Get returns the cached filing, or nil when the accession is unknown.
func (c *Cache) Get(accession string) (*filings.RawFiling, error) {
	row := c.db.QueryRow(`
		SELECT accession, fund_cik, kind, filing_date, reference_date, accepted_on, content
		FROM raw_filings WHERE accession = ?`, accession)

	var filing filings.RawFiling
	var kind, filingDate, referenceDate, accepted string
	err := row.Scan(&filing.Accession, &filing.FundCIK, &kind, &filingDate, &referenceDate, &accepted, &filing.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached filing: %w", err)
	}

	filing.Kind = filings.Kind(kind)
	if filing.FilingDate, err = time.Parse("2006-01-02", filingDate); err != nil {
		return nil, fmt.Errorf("failed to parse cached filing date: %w", err)
	}
	if filing.ReferenceDate, err = time.Parse("2006-01-02", referenceDate); err != nil {
		return nil, fmt.Errorf("failed to parse cached reference date: %w", err)
	}
	if filing.AcceptedOn, err = time.Parse(time.RFC3339, accepted); err != nil {
		return nil, fmt.Errorf("failed to parse cached accepted timestamp: %w", err)
	}
	return &filing, nil
}

// Put stores a filing; re-storing the same accession is a no-op.
func (c *Cache) Put(filing filings.RawFiling) error {
	_, err := c.db.Exec(`
		INSERT INTO raw_filings (accession, fund_cik, kind, filing_date, reference_date, accepted_on, content, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(accession) DO NOTHING`,
		filing.Accession,
		filing.FundCIK,
		string(filing.Kind),
		filing.FilingDate.Format("2006-01-02"),
		filing.ReferenceDate.Format("2006-01-02"),
		filing.AcceptedOn.Format(time.RFC3339),
		filing.Content,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to cache filing %s: %w", filing.Accession, err)
	}
	return nil
}
