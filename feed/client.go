/*
Package feed implements the fetch, extraction and normalization stages of the
job ingestion pipeline.

A sweep fetches raw XML from every configured feed URL in parallel, locates
the repeating item structure across the known feed shapes, and maps each raw
item into a canonical Job candidate ready for queued reconciliation.
*/
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/monitoring"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FetchResult is the outcome of fetching a single feed URL. Failures never
// cross the client boundary as errors; they collapse into Success=false with
// a human-readable message.
type FetchResult struct {
	URL     string
	Success bool
	Body    []byte
	Error   string
}

// Client fetches raw feed documents over HTTP.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *logrus.Logger
}

// NewClient creates a feed client with the given per-URL timeout and
// User-Agent header.
func NewClient(timeout time.Duration, userAgent string, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Fetch retrieves the raw body of one feed URL. Network errors, timeouts,
// non-2xx responses and empty bodies all report as unsuccessful results.
func (c *Client) Fetch(ctx context.Context, url string) FetchResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c.failure(url, fmt.Sprintf("invalid feed URL: %v", err), start)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/xml, application/rss+xml, application/atom+xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failure(url, fmt.Sprintf("request failed: %v", err), start)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.failure(url, fmt.Sprintf("unexpected status %d", resp.StatusCode), start)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.failure(url, fmt.Sprintf("reading body failed: %v", err), start)
	}
	if len(body) == 0 {
		return c.failure(url, "empty response body", start)
	}

	monitoring.RecordFeedFetch(url, "success", time.Since(start).Seconds())
	c.logger.WithFields(logrus.Fields{
		"url":         url,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Feed fetched")

	return FetchResult{URL: url, Success: true, Body: body}
}

// FetchAll fetches every URL fully in parallel. One URL's failure never
// blocks or fails another's result. Result order follows completion, not
// submission.
func (c *Client) FetchAll(ctx context.Context, urls []string) []FetchResult {
	results := make(chan FetchResult, len(urls))

	var g errgroup.Group
	for _, url := range urls {
		url := url
		g.Go(func() error {
			results <- c.Fetch(ctx, url)
			return nil // best-effort: don't cancel siblings
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]FetchResult, 0, len(urls))
	for res := range results {
		out = append(out, res)
	}
	return out
}

func (c *Client) failure(url, reason string, start time.Time) FetchResult {
	monitoring.RecordFeedFetch(url, "failed", time.Since(start).Seconds())
	c.logger.WithFields(logrus.Fields{
		"url":         url,
		"error":       reason,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Warn("Feed fetch failed")
	return FetchResult{URL: url, Success: false, Error: reason}
}
