package reports

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/fundscope/fundscope/internal/domain"
	"github.com/fundscope/fundscope/internal/modules/comparison"
	"github.com/fundscope/fundscope/internal/modules/filings"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE delta_reports (
			id INTEGER PRIMARY KEY,
			fund TEXT NOT NULL,
			quarter TEXT NOT NULL,
			cusip TEXT NOT NULL,
			ticker TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL,
			shares INTEGER NOT NULL,
			delta_shares INTEGER NOT NULL,
			value REAL,
			delta_value REAL,
			portfolio_pct REAL,
			status_kind TEXT NOT NULL,
			status_pct REAL,
			via_partial INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			UNIQUE(fund, quarter, cusip)
		);
		CREATE TABLE report_totals (
			fund TEXT NOT NULL,
			quarter TEXT NOT NULL,
			value REAL,
			delta_value REAL,
			delta_pct REAL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (fund, quarter)
		);
		CREATE TABLE partial_holdings (
			id INTEGER PRIMARY KEY,
			fund TEXT NOT NULL,
			cusip TEXT NOT NULL,
			company TEXT NOT NULL,
			shares INTEGER NOT NULL,
			avg_price REAL,
			kind TEXT NOT NULL,
			event_date TEXT NOT NULL,
			accepted_on TEXT NOT NULL,
			UNIQUE(fund, cusip, kind, event_date, accepted_on)
		);
	`)
	require.NoError(t, err)
	return db
}

func sampleReport(fund string, quarter domain.Quarter) *comparison.Report {
	return &comparison.Report{
		Fund:    fund,
		Quarter: quarter,
		Rows: []comparison.Delta{
			{CUSIP: "A", Ticker: "ALPH", Company: "ALPHA", Shares: 1000, DeltaShares: 500,
				Value: 25_000, DeltaValue: 12_500, PortfolioPct: 83.33,
				Status: comparison.Status{Kind: comparison.StatusChanged, Pct: 100}},
			{CUSIP: "B", Company: "BETA", Shares: 200, DeltaShares: 200,
				Value: 5_000, DeltaValue: 5_000, PortfolioPct: 16.67,
				Status: comparison.Status{Kind: comparison.StatusNew}, ViaPartialDisclosure: true},
		},
		Total: comparison.Total{Value: 30_000, DeltaValue: 17_500, DeltaPct: 109.375},
	}
}

func TestStoreSaveAndLoadReport(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	require.NoError(t, store.SaveReport(sampleReport("fund-a", "2024Q2")))

	loaded, err := store.LoadReport("fund-a", "2024Q2")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Rows, 2)

	assert.Equal(t, "A", loaded.Rows[0].CUSIP)
	assert.Equal(t, comparison.StatusChanged, loaded.Rows[0].Status.Kind)
	assert.Equal(t, "ALPH", loaded.Rows[0].Ticker)
	assert.Equal(t, "", loaded.Rows[1].Ticker)
	assert.InDelta(t, 100.0, loaded.Rows[0].Status.Pct, 1e-9)
	assert.True(t, loaded.Rows[1].ViaPartialDisclosure)
	assert.InDelta(t, 30_000.0, loaded.Total.Value, 1e-9)
}

func TestStoreLoadMissingReport(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	loaded, err := store.LoadReport("nobody", "2024Q2")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStoreOverwritesWholesale(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	require.NoError(t, store.SaveReport(sampleReport("fund-a", "2024Q2")))

	smaller := &comparison.Report{
		Fund:    "fund-a",
		Quarter: "2024Q2",
		Rows: []comparison.Delta{
			{CUSIP: "C", Company: "GAMMA", Shares: 10, Value: 100,
				Status: comparison.Status{Kind: comparison.StatusNew}},
		},
		Total: comparison.Total{Value: 100, DeltaValue: 100, DeltaPct: 1},
	}
	require.NoError(t, store.SaveReport(smaller))

	loaded, err := store.LoadReport("fund-a", "2024Q2")
	require.NoError(t, err)
	require.Len(t, loaded.Rows, 1)
	assert.Equal(t, "C", loaded.Rows[0].CUSIP)
}

func TestStoreNARoundTrip(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	report := sampleReport("fund-a", "2024Q2")
	report.Rows[0].Value = domain.NA()
	report.Rows[0].DeltaValue = domain.NA()
	report.Rows[0].PortfolioPct = domain.NA()
	require.NoError(t, store.SaveReport(report))

	loaded, err := store.LoadReport("fund-a", "2024Q2")
	require.NoError(t, err)
	assert.True(t, domain.IsNA(loaded.Rows[0].Value))
	assert.True(t, domain.IsNA(loaded.Rows[0].DeltaValue))
	assert.True(t, domain.IsNA(loaded.Rows[0].PortfolioPct))
	assert.False(t, domain.IsNA(loaded.Rows[1].Value))
}

func TestStoreQuartersDescending(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	require.NoError(t, store.SaveReport(sampleReport("fund-a", "2023Q4")))
	require.NoError(t, store.SaveReport(sampleReport("fund-a", "2024Q2")))
	require.NoError(t, store.SaveReport(sampleReport("fund-b", "2024Q1")))

	quarters, err := store.Quarters()
	require.NoError(t, err)
	assert.Equal(t, []domain.Quarter{"2024Q2", "2024Q1", "2023Q4"}, quarters)

	last, err := store.LastQuarter()
	require.NoError(t, err)
	assert.Equal(t, domain.Quarter("2024Q2"), last)
}

func TestStoreLastQuarterEmpty(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	last, err := store.LastQuarter()
	require.NoError(t, err)
	assert.Equal(t, domain.Quarter(""), last)
}

func TestStoreLoadQuarterAllFunds(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	require.NoError(t, store.SaveReport(sampleReport("fund-a", "2024Q2")))
	require.NoError(t, store.SaveReport(sampleReport("fund-b", "2024Q2")))
	require.NoError(t, store.SaveReport(sampleReport("fund-c", "2024Q1")))

	loaded, err := store.LoadQuarter("2024Q2")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "fund-a", loaded[0].Fund)
	assert.Equal(t, "fund-b", loaded[1].Fund)
}

func TestStorePartials(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())

	d1 := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 8, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SavePartials([]filings.PartialHolding{
		{Fund: "fund-a", CUSIP: "A", Company: "ALPHA", Shares: 100, AvgPrice: 12.5,
			Kind: filings.KindSchedule, Date: d1, AcceptedOn: d1},
		{Fund: "fund-a", CUSIP: "B", Company: "BETA", Shares: 50,
			Kind: filings.KindForm4, Date: d2, AcceptedOn: d2},
	}))

	// Saving the same rows again is a no-op, not a duplicate
	require.NoError(t, store.SavePartials([]filings.PartialHolding{
		{Fund: "fund-a", CUSIP: "A", Company: "ALPHA", Shares: 100, AvgPrice: 12.5,
			Kind: filings.KindSchedule, Date: d1, AcceptedOn: d1},
	}))

	partials, err := store.LoadPartials("fund-a", time.Time{})
	require.NoError(t, err)
	require.Len(t, partials, 2)
	assert.Equal(t, "B", partials[0].CUSIP)
	assert.Equal(t, 12.5, partials[1].AvgPrice)
	assert.Equal(t, 0.0, partials[0].AvgPrice)

	after, err := store.LoadPartials("fund-a", d1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "B", after[0].CUSIP)
}
