// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

// Package fetch provides the HTTP client for the paginated, rate-limited
// government APIs the pipeline ingests from.
//
// Resilience rules, applied to every fetch in the system:
//   - HTTP 401 is a credential error: permanent, never retried.
//   - HTTP 429 is retried on the same page with exponential backoff
//     (base delay doubling per attempt, Retry-After honored), bounded by a
//     retry cap; exhaustion degrades the page instead of blocking forever.
//   - Pagination stops on an empty page or at a hard page-count ceiling,
//     protecting against APIs that never signal completion.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/mandatolab/reconcilia/internal/logging"
)

// maxBodySize bounds response reads so a misbehaving endpoint cannot force
// unbounded allocation.
const maxBodySize = 16 << 20 // 16MB

// Sentinel errors for fetch failure classification.
var (
	// ErrUnauthorized marks an invalid or missing API key (HTTP 401).
	// Permanent: aborts the source instead of retrying.
	ErrUnauthorized = errors.New("invalid API key (HTTP 401)")

	// ErrRateLimited marks rate-limit retry exhaustion for one request.
	ErrRateLimited = errors.New("rate limit retries exhausted (HTTP 429)")
)

// Config tunes a Client.
type Config struct {
	BaseURL string
	// APIKeyHeader is the header name carrying APIKey; both empty for
	// unauthenticated APIs.
	APIKeyHeader string
	APIKey       string
	// MaxRetries bounds 429 retries per request.
	MaxRetries int
	// RetryBaseDelay is the first backoff delay; it doubles per retry.
	RetryBaseDelay time.Duration
	// PageCap is the hard pagination ceiling for ForEachPage.
	PageCap int
	Timeout time.Duration
}

// Client is an HTTP client for one external API. Safe for concurrent use;
// each request carries its own state.
type Client struct {
	baseURL        string
	apiKeyHeader   string
	apiKey         string
	client         *http.Client
	maxRetries     int
	retryBaseDelay time.Duration
	pageCap        int
}

// New creates a Client from cfg, applying defaults for unset tuning fields.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryBaseDelay := cfg.RetryBaseDelay
	if retryBaseDelay <= 0 {
		retryBaseDelay = 1 * time.Second
	}
	pageCap := cfg.PageCap
	if pageCap <= 0 {
		pageCap = 500
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		apiKeyHeader:   cfg.APIKeyHeader,
		apiKey:         cfg.APIKey,
		client:         &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: retryBaseDelay,
		pageCap:        pageCap,
	}
}

// get performs one GET with rate-limit backoff and returns the response
// body. 401 returns ErrUnauthorized immediately; 429 retries the same URL
// up to maxRetries times with doubling delays (Retry-After wins when
// present), then returns ErrRateLimited.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKeyHeader != "" {
			req.Header.Set(c.apiKeyHeader, c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			_ = resp.Body.Close()
			return nil, ErrUnauthorized

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := resp.Header.Get("Retry-After")
			_ = resp.Body.Close()

			if attempt == c.maxRetries {
				return nil, fmt.Errorf("%w after %d retries", ErrRateLimited, c.maxRetries)
			}

			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
			if retryAfter != "" {
				if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))

		default:
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, fmt.Errorf("failed to read response body: %w", readErr)
			}
			return body, nil
		}
	}
}

// GetJSON performs one GET against path (with query) and decodes the JSON
// response into result.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	body, err := c.get(ctx, reqURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// PageFunc consumes one page body and reports how many items it contained.
// Zero items stops pagination.
type PageFunc func(body []byte) (items int, err error)

// PageStats summarizes one ForEachPage walk.
type PageStats struct {
	Pages   int // pages successfully handled
	Skipped int // pages degraded after rate-limit retry exhaustion
}

// ForEachPage walks a paginated endpoint, requesting page 1, 2, ... with
// pageParam until handle reports an empty page or the page cap is reached.
//
// A page whose retries are exhausted is skipped and counted rather than
// aborting the walk; a 401 aborts immediately. Errors returned by handle
// (decode or shape failures) abort the walk.
func (c *Client) ForEachPage(ctx context.Context, path string, query url.Values, pageParam string, handle PageFunc) (PageStats, error) {
	stats := PageStats{}

	for page := 1; page <= c.pageCap; page++ {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set(pageParam, strconv.Itoa(page))
		reqURL := c.baseURL + path + "?" + q.Encode()

		body, err := c.get(ctx, reqURL)
		if err != nil {
			if errors.Is(err, ErrRateLimited) {
				stats.Skipped++
				logging.Warn().Int("page", page).Err(err).Msg("Skipping page after rate-limit retry exhaustion")
				continue
			}
			return stats, fmt.Errorf("page %d: %w", page, err)
		}

		items, err := handle(body)
		if err != nil {
			return stats, fmt.Errorf("page %d: %w", page, err)
		}
		stats.Pages++
		if items == 0 {
			return stats, nil
		}
	}

	logging.Warn().Int("page_cap", c.pageCap).Msg("Pagination stopped at page cap; source may have more data")
	return stats, nil
}
