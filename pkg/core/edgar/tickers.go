package edgar

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// tickerEntry is one row of company_tickers.json.
// Format: {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// ResolveCIK resolves a ticker symbol to its company record using SEC's company_tickers.json
func (c *Client) ResolveCIK(ctx context.Context, ticker string) (CompanyInfo, error) {
	normalizedTicker := strings.ToUpper(strings.TrimSpace(ticker))

	c.tickerMutex.Lock()
	defer c.tickerMutex.Unlock()

	// Lazy load
	if len(c.tickerCache) == 0 {
		if err := c.loadTickerCache(ctx); err != nil {
			return CompanyInfo{}, err
		}
	}

	info, ok := c.tickerCache[normalizedTicker]
	if !ok {
		return CompanyInfo{}, fmt.Errorf("%w: %q", ErrTickerNotFound, ticker)
	}
	return info, nil
}

// loadTickerCache fetches the full ticker list from SEC. Caller holds tickerMutex.
func (c *Client) loadTickerCache(ctx context.Context) error {
	var resp map[string]tickerEntry
	if err := c.FetchJSON(ctx, c.cfg.TickersURL, &resp); err != nil {
		return fmt.Errorf("failed to fetch company tickers: %w", err)
	}

	cache := make(map[string]CompanyInfo, len(resp))
	for _, entry := range resp {
		t := strings.ToUpper(entry.Ticker)
		cache[t] = CompanyInfo{
			CIK:    padCIK(strconv.FormatInt(entry.CIK, 10)),
			Title:  entry.Title,
			Ticker: t,
		}
	}
	c.tickerCache = cache

	c.logger.Info("loaded SEC ticker map", slog.Int("tickers", len(cache)))
	return nil
}

// padCIK zero-pads a CIK to the 10 digits SEC URLs expect.
func padCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}
