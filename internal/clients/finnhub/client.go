// Package finnhub provides a client for the Finnhub stock API, used for
// ticker resolution by CUSIP and for historical daily prices.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/modules/universe"
	"github.com/fundscope/fundscope/internal/reliability"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// maxQueryLength truncates company-name fallback queries; Finnhub's search
// degrades with long issuer names full of legal suffixes.
const maxQueryLength = 20

// Client is the Finnhub API client. It implements the resolver strategy
// and price-lookup contracts.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      reliability.RetryPolicy
	log        zerolog.Logger
}

func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: reliability.DefaultRetryPolicy(),
		log:   log.With().Str("component", "finnhub").Logger(),
	}
}

func (c *Client) Name() string { return "finnhub" }

type searchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
		Type        string `json:"type"`
	} `json:"result"`
}

// Lookup resolves a CUSIP to a ticker and company name, falling back to a
// truncated company-name search when the CUSIP itself is unknown.
func (c *Client) Lookup(ctx context.Context, cusip, companyHint string) (*universe.Security, error) {
	sec, err := c.search(ctx, cusip)
	if err != nil {
		return nil, err
	}
	if sec != nil {
		sec.CUSIP = cusip
		return sec, nil
	}

	if companyHint == "" {
		return nil, nil
	}
	query := companyHint
	if len(query) > maxQueryLength {
		query = query[:maxQueryLength]
	}
	sec, err = c.search(ctx, query)
	if err != nil || sec == nil {
		return sec, err
	}
	sec.CUSIP = cusip
	// Name search confirms the ticker only; keep the filing's company name
	sec.Company = companyHint
	return sec, nil
}

// LookupByTicker resolves a trading symbol back to a security. Finnhub
// does not expose CUSIPs, so this only confirms ticker and company; the
// CUSIP stays empty and the catalog cannot be populated from it.
func (c *Client) LookupByTicker(ctx context.Context, ticker string) (*universe.Security, error) {
	sec, err := c.search(ctx, ticker)
	if err != nil || sec == nil {
		return nil, err
	}
	if !strings.EqualFold(sec.Ticker, ticker) {
		return nil, nil
	}
	return sec, nil
}

func (c *Client) search(ctx context.Context, query string) (*universe.Security, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	var parsed searchResponse
	err := c.retry.Do(ctx, func() error {
		return c.getJSON(ctx, "/search", url.Values{"q": {query}}, &parsed)
	})
	if err != nil {
		return nil, err
	}

	// Prefer plain equity listings over notes, warrants and ADRs
	for _, item := range parsed.Result {
		switch item.Type {
		case "Common Stock", "Equity", "STOCK":
			return &universe.Security{Ticker: item.Symbol, Company: item.Description}, nil
		}
	}
	if len(parsed.Result) > 0 {
		first := parsed.Result[0]
		return &universe.Security{Ticker: first.Symbol, Company: first.Description}, nil
	}
	return nil, nil
}

type candleResponse struct {
	Status string    `json:"s"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
}

// AveragePrice returns the mid of a day's high and low.
func (c *Client) AveragePrice(ctx context.Context, ticker string, day time.Time) (float64, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	var parsed candleResponse
	err := c.retry.Do(ctx, func() error {
		return c.getJSON(ctx, "/stock/candle", url.Values{
			"symbol":     {ticker},
			"resolution": {"D"},
			"from":       {fmt.Sprintf("%d", from.Unix())},
			"to":         {fmt.Sprintf("%d", to.Unix())},
		}, &parsed)
	})
	if err != nil {
		return 0, err
	}

	if parsed.Status != "ok" || len(parsed.High) == 0 || len(parsed.Low) == 0 {
		return 0, fmt.Errorf("no candle data for %s on %s", ticker, from.Format("2006-01-02"))
	}
	return (parsed.High[0] + parsed.Low[0]) / 2, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limited by finnhub")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from finnhub", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
