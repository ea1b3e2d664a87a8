// Package universe maintains the security master catalog and resolves
// security identities (CUSIP, ticker, company name) through an ordered
// chain of lookup strategies.
package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Security is one catalog entry. The catalog is the single source of truth
// the cross-fund aggregator joins against.
type Security struct {
	CUSIP     string
	Ticker    string
	Company   string
	UpdatedAt time.Time
}

// CatalogRepository handles security catalog database operations.
// Writes are serialized: concurrent fund pipelines may discover the same
// security at once, and it must be appended exactly once.
type CatalogRepository struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

func NewCatalogRepository(db *sql.DB, log zerolog.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  db,
		log: log.With().Str("repo", "catalog").Logger(),
	}
}

// Get returns the catalog entry for a CUSIP, or nil when unknown.
func (r *CatalogRepository) Get(cusip string) (*Security, error) {
	return r.scanOne(`SELECT cusip, ticker, company, updated_at FROM securities WHERE cusip = ?`,
		strings.ToUpper(strings.TrimSpace(cusip)))
}

// GetByTicker returns the catalog entry for a ticker, or nil when unknown.
// Tickers are not unique in principle; the oldest entry wins.
func (r *CatalogRepository) GetByTicker(ticker string) (*Security, error) {
	return r.scanOne(`SELECT cusip, ticker, company, updated_at FROM securities
		WHERE ticker = ? ORDER BY updated_at LIMIT 1`,
		strings.ToUpper(strings.TrimSpace(ticker)))
}

func (r *CatalogRepository) scanOne(query string, arg string) (*Security, error) {
	var (
		sec       Security
		updatedAt string
	)
	err := r.db.QueryRow(query, arg).Scan(&sec.CUSIP, &sec.Ticker, &sec.Company, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query security: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		sec.UpdatedAt = t
	}
	return &sec, nil
}

// Save appends a newly resolved security. An existing entry for the same
// CUSIP is kept as-is: resolution is idempotent, so the first resolution
// wins and repeated saves are no-ops.
func (r *CatalogRepository) Save(sec Security) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`
		INSERT INTO securities (cusip, ticker, company, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cusip) DO NOTHING`,
		strings.ToUpper(strings.TrimSpace(sec.CUSIP)),
		strings.ToUpper(strings.TrimSpace(sec.Ticker)),
		sec.Company,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save security %s: %w", sec.CUSIP, err)
	}
	return nil
}

// All returns the full catalog ordered by ticker.
func (r *CatalogRepository) All() ([]Security, error) {
	rows, err := r.db.Query(`SELECT cusip, ticker, company, updated_at FROM securities ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	var result []Security
	for rows.Next() {
		var (
			sec       Security
			updatedAt string
		)
		if err := rows.Scan(&sec.CUSIP, &sec.Ticker, &sec.Company, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
			sec.UpdatedAt = t
		}
		result = append(result, sec)
	}
	return result, rows.Err()
}
