package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://data.sec.gov"
	DefaultTickersURL  = "https://www.sec.gov/files/company_tickers.json"
	DefaultMinInterval = 150 * time.Millisecond // SEC asks for at most 10 requests/sec

	companyFactsPath = "/api/xbrl/companyfacts/CIK%s.json"
	submissionsPath  = "/submissions/CIK%s.json"
)

var (
	// ErrTickerNotFound is returned when a ticker is absent from company_tickers.json.
	ErrTickerNotFound = errors.New("ticker not found in SEC company tickers")
	// ErrUnexpectedStatus matches any *StatusError via errors.Is.
	ErrUnexpectedStatus = errors.New("unexpected SEC API status")
)

// StatusError carries a non-200 SEC response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("SEC API returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// ClientConfig configures the SEC client.
type ClientConfig struct {
	UserAgent   string
	BaseURL     string
	TickersURL  string
	CacheDir    string
	MinInterval time.Duration
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Client handles SEC EDGAR API requests. All requests made through one Client
// share a single rate limiter.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	cache      *ResponseCache
	limiter    *rate.Limiter
	logger     *slog.Logger

	tickerMutex sync.Mutex
	tickerCache map[string]CompanyInfo
}

// NewClient creates a new SEC EDGAR API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TickersURL == "" {
		cfg.TickersURL = DefaultTickersURL
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		cache:      NewResponseCache(cfg.CacheDir),
		limiter:    rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		logger:     logger.With(slog.String("component", "sec_client")),
	}
}

// CompanyFactsURL returns the companyfacts document URL for a CIK.
func (c *Client) CompanyFactsURL(cik string) string {
	return c.cfg.BaseURL + fmt.Sprintf(companyFactsPath, padCIK(cik))
}

// SubmissionsURL returns the submissions document URL for a CIK.
func (c *Client) SubmissionsURL(cik string) string {
	return c.cfg.BaseURL + fmt.Sprintf(submissionsPath, padCIK(cik))
}

// FetchCompanyFacts retrieves the XBRL company facts for a CIK.
func (c *Client) FetchCompanyFacts(ctx context.Context, cik string) (*CompanyFacts, error) {
	var facts CompanyFacts
	if err := c.FetchJSON(ctx, c.CompanyFactsURL(cik), &facts); err != nil {
		return nil, fmt.Errorf("failed to fetch company facts: %w", err)
	}
	return &facts, nil
}

// FetchSubmissions retrieves filing submissions metadata for a CIK.
func (c *Client) FetchSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	var subs Submissions
	if err := c.FetchJSON(ctx, c.SubmissionsURL(cik), &subs); err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	return &subs, nil
}

// FetchJSON decodes the document at url into v, serving from the disk cache when possible.
func (c *Client) FetchJSON(ctx context.Context, url string, v any) error {
	body, err := c.fetch(ctx, url, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", url, err)
	}
	return nil
}

// RefreshJSON bypasses the cached body but still revalidates with a stored ETag.
func (c *Client) RefreshJSON(ctx context.Context, url string, v any) error {
	body, err := c.fetch(ctx, url, false)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", url, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string, useCache bool) ([]byte, error) {
	cached, hasCached := c.cache.Get(url)
	if useCache && hasCached {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// SEC requires User-Agent header. gzip is negotiated by the transport.
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	if etag := c.cache.ETag(url); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SEC API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && hasCached {
		return cached, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url, Body: truncate(string(body), 200)}
	}

	if err := c.cache.Set(url, body, resp.Header.Get("ETag")); err != nil {
		c.logger.Warn("failed to cache SEC response", slog.String("url", url), slog.String("error", err.Error()))
	}
	c.logger.Debug("fetched SEC document", slog.String("url", url), slog.Int("bytes", len(body)))
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
