// Package openfigi provides a client for Bloomberg's OpenFIGI API, used as
// a resolver strategy for mapping CUSIPs to exchange ticker symbols.
package openfigi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/modules/universe"
	"github.com/fundscope/fundscope/internal/reliability"
)

// Rate limits: 25 requests/minute without an API key, far higher with one.
const defaultBaseURL = "https://api.openfigi.com/v3"

// mappingRequest is one item of an OpenFIGI /mapping request.
type mappingRequest struct {
	IDType    string `json:"idType"`
	IDValue   string `json:"idValue"`
	ExchCode  string `json:"exchCode,omitempty"`
	MarketSec string `json:"marketSecDes,omitempty"`
}

type mappingResult struct {
	FIGI         string `json:"figi"`
	Ticker       string `json:"ticker"`
	ExchCode     string `json:"exchCode"`
	Name         string `json:"name"`
	MarketSector string `json:"marketSector"`
	SecurityType string `json:"securityType"`
}

type mappingResponse struct {
	Data    []mappingResult `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// Client is the OpenFIGI API client. It implements the resolver strategy
// contract; resolved securities are persisted by the resolver's catalog, so
// the client itself keeps no cache.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      reliability.RetryPolicy
	log        zerolog.Logger
}

// NewClient creates an OpenFIGI client. The API key is optional; without
// one the service allows 25 requests per minute.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: reliability.DefaultRetryPolicy(),
		log:   log.With().Str("component", "openfigi").Logger(),
	}
}

func (c *Client) Name() string { return "openfigi" }

// Lookup maps a CUSIP to a ticker via OpenFIGI's ID_CUSIP id type. US
// listings are preferred when a security trades on multiple exchanges.
// The company hint is unused; OpenFIGI returns the listing name itself.
func (c *Client) Lookup(ctx context.Context, cusip, companyHint string) (*universe.Security, error) {
	responses, err := c.mapIdentifiers(ctx, []mappingRequest{{
		IDType:    "ID_CUSIP",
		IDValue:   cusip,
		MarketSec: "Equity",
	}})
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, nil
	}
	if responses[0].Error != "" {
		c.log.Debug().Str("cusip", cusip).Str("reason", responses[0].Error).
			Msg("OpenFIGI could not map identifier")
		return nil, nil
	}

	best := pickListing(responses[0].Data)
	if best == nil {
		return nil, nil
	}
	return &universe.Security{
		CUSIP:   cusip,
		Ticker:  best.Ticker,
		Company: best.Name,
	}, nil
}

// pickListing prefers the US composite listing; securities trading on
// multiple exchanges come back with one result per listing.
func pickListing(results []mappingResult) *mappingResult {
	for i := range results {
		if results[i].ExchCode == "US" && results[i].Ticker != "" {
			return &results[i]
		}
	}
	for i := range results {
		if results[i].Ticker != "" {
			return &results[i]
		}
	}
	return nil
}

func (c *Client) mapIdentifiers(ctx context.Context, requests []mappingRequest) ([]mappingResponse, error) {
	body, err := json.Marshal(requests)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mapping request: %w", err)
	}

	var responses []mappingResponse
	err = c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mapping", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-OPENFIGI-APIKEY", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("unexpected status %d from openfigi: %s", resp.StatusCode, payload)
		}

		responses = responses[:0]
		return json.NewDecoder(resp.Body).Decode(&responses)
	})
	if err != nil {
		return nil, err
	}
	return responses, nil
}
