// Package sec provides the EDGAR filing fetcher: full-text search pages
// are walked to the filing's primary XML document. EDGAR requires an
// identifying User-Agent with contact details; requests without one are
// rejected.
package sec

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/modules/filings"
	"github.com/fundscope/fundscope/internal/reliability"
)

const defaultBaseURL = "https://www.sec.gov"

// requestPause spaces consecutive EDGAR requests; the published fair-use
// limit is 10 requests per second.
const requestPause = 150 * time.Millisecond

// xmlLinkIndex selects which XML link on a filing's document page is the
// primary data document; the 13F pages list the stylesheet variants first.
var xmlLinkIndex = map[filings.Kind]int{
	filings.Kind13F:      3,
	filings.KindSchedule: 1,
	filings.KindForm4:    1,
}

// Client fetches filings from EDGAR.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	retry      reliability.RetryPolicy
	cache      *Cache
	log        zerolog.Logger
}

// NewClient creates an EDGAR client. cache is optional; when present,
// previously downloaded documents are served from it.
func NewClient(userAgent string, cache *Cache, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   defaultBaseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retry: reliability.DefaultRetryPolicy(),
		cache: cache,
		log:   log.With().Str("component", "edgar").Logger(),
	}
}

var (
	documentsButtonRe = regexp.MustCompile(`href="([^"]+)"[^>]*id="documentsbutton"`)
	accessionRe       = regexp.MustCompile(`(\d{10}-\d{2}-\d{6})`)
	filingDateRe      = regexp.MustCompile(`(?s)Filing Date</div>\s*<div class="info[^"]*">\s*([0-9-]+)`)
	reportDateRe      = regexp.MustCompile(`(?s)Period of Report</div>\s*<div class="info[^"]*">\s*([0-9-]+)`)
	acceptedRe        = regexp.MustCompile(`(?s)Accepted</div>\s*<div class="info[^"]*">\s*([0-9-]+\s+[0-9:]+)`)
	xmlLinkRe         = regexp.MustCompile(`href="(/Archives/[^"]+\.[xX][mM][lL])"`)
)

// Fetch returns up to limit most recent filings of the given kind for a
// fund, newest first. Filings EDGAR lists after the since date are
// included; a zero since fetches regardless of age. An empty result is a
// legitimate outcome, not an error.
func (c *Client) Fetch(ctx context.Context, cik string, kind filings.Kind, since time.Time, limit int) ([]filings.RawFiling, error) {
	searchURL := fmt.Sprintf("%s/cgi-bin/browse-edgar?%s", c.baseURL, url.Values{
		"action": {"getcompany"},
		"CIK":    {cik},
		"type":   {string(kind)},
	}.Encode())
	if !since.IsZero() {
		searchURL += "&datea=" + since.Format("20060102")
	}

	page, err := c.get(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch filing index for CIK %s: %w", cik, err)
	}

	matches := documentsButtonRe.FindAllStringSubmatch(string(page), -1)
	var result []filings.RawFiling
	for _, m := range matches {
		if limit > 0 && len(result) >= limit {
			break
		}
		filing, err := c.fetchFiling(ctx, cik, kind, m[1])
		if err != nil {
			c.log.Warn().Str("cik", cik).Str("page", m[1]).Err(err).Msg("Skipping unreadable filing")
			continue
		}
		if filing != nil {
			result = append(result, *filing)
		}
		time.Sleep(requestPause)
	}

	c.log.Info().Str("cik", cik).Str("kind", string(kind)).Int("filings", len(result)).Msg("Fetched filings")
	return result, nil
}

func (c *Client) fetchFiling(ctx context.Context, cik string, kind filings.Kind, pagePath string) (*filings.RawFiling, error) {
	accession := ""
	if m := accessionRe.FindStringSubmatch(pagePath); m != nil {
		accession = m[1]
	}

	if c.cache != nil && accession != "" {
		if cached, err := c.cache.Get(accession); err == nil && cached != nil {
			return cached, nil
		}
	}

	page, err := c.get(ctx, c.baseURL+pagePath)
	if err != nil {
		return nil, err
	}
	html := string(page)

	filingDate, err := extractDate(filingDateRe, html, "2006-01-02")
	if err != nil {
		return nil, fmt.Errorf("no filing date on document page: %w", err)
	}
	referenceDate, err := extractDate(reportDateRe, html, "2006-01-02")
	if err != nil {
		// Schedules occasionally omit the period; the filing date is
		// the best remaining anchor
		referenceDate = filingDate
	}
	acceptedOn, err := extractDate(acceptedRe, html, "2006-01-02 15:04:05")
	if err != nil {
		acceptedOn = filingDate
	}

	links := xmlLinkRe.FindAllStringSubmatch(html, -1)
	index := xmlLinkIndex[kind]
	if len(links) <= index {
		return nil, fmt.Errorf("document page lists %d XML links, need index %d", len(links), index)
	}

	content, err := c.get(ctx, c.baseURL+links[index][1])
	if err != nil {
		return nil, fmt.Errorf("failed to download primary document: %w", err)
	}

	filing := &filings.RawFiling{
		Accession:     accession,
		FundCIK:       cik,
		Kind:          kind,
		FilingDate:    filingDate,
		ReferenceDate: referenceDate,
		AcceptedOn:    acceptedOn,
		Content:       content,
	}

	if c.cache != nil && accession != "" {
		if err := c.cache.Put(*filing); err != nil {
			c.log.Warn().Str("accession", accession).Err(err).Msg("Failed to cache filing")
		}
	}
	return filing, nil
}

func extractDate(re *regexp.Regexp, html, layout string) (time.Time, error) {
	m := re.FindStringSubmatch(html)
	if m == nil {
		return time.Time{}, fmt.Errorf("pattern not found")
	}
	return time.Parse(layout, strings.TrimSpace(m[1]))
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, rawURL)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	return body, err
}
