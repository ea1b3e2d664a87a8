package universe

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Strategy is one external lookup in the resolution chain. A nil result
// with a nil error means "this source does not know the security".
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, cusip, companyHint string) (*Security, error)
}

// ReverseStrategy is the optional ticker-to-CUSIP capability, needed for
// insider filings that identify the issuer only by trading symbol.
type ReverseStrategy interface {
	LookupByTicker(ctx context.Context, ticker string) (*Security, error)
}

// Resolver maps CUSIPs to tickers and company names. The catalog is
// consulted first; unknown securities go through the strategies in order
// and the first hit is appended to the catalog.
type Resolver struct {
	catalog    *CatalogRepository
	strategies []Strategy
	log        zerolog.Logger
}

func NewResolver(catalog *CatalogRepository, strategies []Strategy, log zerolog.Logger) *Resolver {
	return &Resolver{
		catalog:    catalog,
		strategies: strategies,
		log:        log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the ticker and canonical company name for a CUSIP.
// An unknown security yields empty strings, not an error: callers keep
// whatever the filing carried.
func (r *Resolver) Resolve(ctx context.Context, cusip, companyHint string) (string, string, error) {
	cusip = strings.ToUpper(strings.TrimSpace(cusip))
	if cusip == "" {
		return "", "", nil
	}

	if cached, err := r.catalog.Get(cusip); err != nil {
		return "", "", err
	} else if cached != nil {
		return cached.Ticker, cached.Company, nil
	}

	for _, strategy := range r.strategies {
		sec, err := strategy.Lookup(ctx, cusip, companyHint)
		if err != nil {
			r.log.Warn().Str("strategy", strategy.Name()).Str("cusip", cusip).Err(err).
				Msg("Lookup strategy failed, trying next")
			continue
		}
		if sec == nil {
			continue
		}
		sec.CUSIP = cusip
		if sec.Company == "" {
			sec.Company = companyHint
		}
		if err := r.catalog.Save(*sec); err != nil {
			return "", "", err
		}
		return sec.Ticker, sec.Company, nil
	}

	r.log.Debug().Str("cusip", cusip).Msg("No strategy resolved security")
	return "", "", nil
}

// ResolveCUSIP maps a trading symbol back to a CUSIP. Only the catalog and
// reverse-capable strategies participate.
func (r *Resolver) ResolveCUSIP(ctx context.Context, ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return "", nil
	}

	if cached, err := r.catalog.GetByTicker(ticker); err != nil {
		return "", err
	} else if cached != nil {
		return cached.CUSIP, nil
	}

	for _, strategy := range r.strategies {
		reverse, ok := strategy.(ReverseStrategy)
		if !ok {
			continue
		}
		sec, err := reverse.LookupByTicker(ctx, ticker)
		if err != nil {
			r.log.Warn().Str("strategy", strategy.Name()).Str("ticker", ticker).Err(err).
				Msg("Reverse lookup failed, trying next")
			continue
		}
		if sec == nil || sec.CUSIP == "" {
			continue
		}
		if err := r.catalog.Save(*sec); err != nil {
			return "", err
		}
		return strings.ToUpper(sec.CUSIP), nil
	}

	return "", nil
}
