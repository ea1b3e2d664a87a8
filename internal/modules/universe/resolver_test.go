package universe

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupCatalog(t *testing.T) *CatalogRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE securities (
			cusip TEXT PRIMARY KEY,
			ticker TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);
	`)
	require.NoError(t, err)
	return NewCatalogRepository(db, zerolog.Nop())
}

type fakeStrategy struct {
	name    string
	results map[string]*Security
	byTick  map[string]*Security
	err     error
	calls   int
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Lookup(_ context.Context, cusip, _ string) (*Security, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results[cusip], nil
}

func (s *fakeStrategy) LookupByTicker(_ context.Context, ticker string) (*Security, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byTick[ticker], nil
}

func TestCatalogSaveIsAppendOnce(t *testing.T) {
	catalog := setupCatalog(t)

	require.NoError(t, catalog.Save(Security{CUSIP: "abc123456", Ticker: "abc", Company: "Abc Corp"}))
	require.NoError(t, catalog.Save(Security{CUSIP: "ABC123456", Ticker: "XYZ", Company: "Other"}))

	sec, err := catalog.Get("ABC123456")
	require.NoError(t, err)
	require.NotNil(t, sec)
	assert.Equal(t, "ABC", sec.Ticker)
	assert.Equal(t, "Abc Corp", sec.Company)

	all, err := catalog.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCatalogConcurrentSaves(t *testing.T) {
	catalog := setupCatalog(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = catalog.Save(Security{CUSIP: "AAA000000", Ticker: "AAA", Company: "Alpha"})
		}()
	}
	wg.Wait()

	all, err := catalog.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolverPrefersCatalog(t *testing.T) {
	catalog := setupCatalog(t)
	require.NoError(t, catalog.Save(Security{CUSIP: "AAA000000", Ticker: "AAA", Company: "Alpha"}))

	strategy := &fakeStrategy{name: "fake", results: map[string]*Security{}}
	resolver := NewResolver(catalog, []Strategy{strategy}, zerolog.Nop())

	ticker, company, err := resolver.Resolve(context.Background(), "AAA000000", "")
	require.NoError(t, err)
	assert.Equal(t, "AAA", ticker)
	assert.Equal(t, "Alpha", company)
	assert.Zero(t, strategy.calls)
}

func TestResolverFallsThroughStrategies(t *testing.T) {
	catalog := setupCatalog(t)

	failing := &fakeStrategy{name: "down", err: errors.New("unreachable")}
	knowing := &fakeStrategy{name: "up", results: map[string]*Security{
		"BBB000000": {Ticker: "BBB", Company: "Beta Inc"},
	}}
	resolver := NewResolver(catalog, []Strategy{failing, knowing}, zerolog.Nop())

	ticker, company, err := resolver.Resolve(context.Background(), "BBB000000", "BETA")
	require.NoError(t, err)
	assert.Equal(t, "BBB", ticker)
	assert.Equal(t, "Beta Inc", company)

	// Resolution is cached in the catalog
	cached, err := catalog.Get("BBB000000")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "BBB", cached.Ticker)

	// Second resolve hits the catalog, not the strategies
	knowing.calls = 0
	_, _, err = resolver.Resolve(context.Background(), "BBB000000", "")
	require.NoError(t, err)
	assert.Zero(t, knowing.calls)
}

func TestResolverUnknownSecurityIsNotAnError(t *testing.T) {
	catalog := setupCatalog(t)
	resolver := NewResolver(catalog, []Strategy{&fakeStrategy{name: "fake"}}, zerolog.Nop())

	ticker, company, err := resolver.Resolve(context.Background(), "ZZZ000000", "MYSTERY")
	require.NoError(t, err)
	assert.Empty(t, ticker)
	assert.Empty(t, company)
}

func TestResolverResolveCUSIP(t *testing.T) {
	catalog := setupCatalog(t)
	require.NoError(t, catalog.Save(Security{CUSIP: "AAA000000", Ticker: "AAA", Company: "Alpha"}))

	strategy := &fakeStrategy{name: "fake", byTick: map[string]*Security{
		"BBB": {CUSIP: "BBB000000", Ticker: "BBB", Company: "Beta"},
	}}
	resolver := NewResolver(catalog, []Strategy{strategy}, zerolog.Nop())

	cusip, err := resolver.ResolveCUSIP(context.Background(), "aaa")
	require.NoError(t, err)
	assert.Equal(t, "AAA000000", cusip)

	cusip, err = resolver.ResolveCUSIP(context.Background(), "BBB")
	require.NoError(t, err)
	assert.Equal(t, "BBB000000", cusip)

	cusip, err = resolver.ResolveCUSIP(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Empty(t, cusip)
}
