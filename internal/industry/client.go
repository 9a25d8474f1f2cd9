// Package industry resolves industry labels for US stocks from an
// external reference source and caches them on the stock record.
package industry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"themeradar/internal/config"
)

// Source looks up an industry label for a ticker. Best effort: an empty
// label with a nil error means the source knows nothing about it.
type Source interface {
	Lookup(ctx context.Context, ticker string) (string, error)
}

// Client fetches industry labels from a Yahoo-style quote-summary
// endpoint.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates an industry source client.
func NewClient(cfg config.IndustryConfig) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	retryDelayBase := cfg.RetryDelayBase
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Industry string `json:"industry"`
			} `json:"assetProfile"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// Lookup fetches the industry label for one ticker, retrying transient
// failures with linear backoff.
func (c *Client) Lookup(ctx context.Context, ticker string) (string, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=assetProfile",
		c.baseURL, url.PathEscape(ticker))

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(attempt)):
			}
		}

		industry, err := c.fetch(ctx, endpoint)
		if err == nil {
			return industry, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("industry lookup failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) fetch(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", "themeradar/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil // unknown ticker, nothing to cache
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var payload quoteSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(payload.QuoteSummary.Result) == 0 {
		return "", nil
	}
	return payload.QuoteSummary.Result[0].AssetProfile.Industry, nil
}
