// Package httpclient is the rate-limited JSON client shared by the API-backed sources.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pricelens/backend/internal/domain"
)

const (
	maxAttempts  = 3
	maxBodyBytes = 8 << 20
	userAgent    = "PriceLens/1.0"
)

// Client executes GET requests against one upstream API
type Client struct {
	name        string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zap.Logger
	headers     map[string]string
	debug       bool
}

// New creates a client. rps <= 0 disables rate limiting.
func New(name string, rps float64, logger *zap.Logger) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		name: name,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		rateLimiter: rate.NewLimiter(limit, 2),
		logger:      logger.With(zap.String("upstream", name)),
		headers:     map[string]string{},
	}
}

// SetHeader adds a header sent with every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetDebug enables logging of response bodies on failure
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns the wait before retry number attempt: 500ms, 1s, 2s
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// doRequest executes an HTTP GET request with proper headers
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceFailure, err)
	}
	return resp, nil
}

// GetJSON fetches reqURL and decodes the body into out. Transport errors and
// non-200 responses are retried up to three times; 404 maps to
// domain.ErrProductNotFound and is not retried.
func (c *Client) GetJSON(ctx context.Context, reqURL string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return contextErr(ctx, err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return contextErr(ctx, ctx.Err())
			}
			c.logger.Debug("request failed", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			if !c.sleep(ctx, attempt) {
				return contextErr(ctx, ctx.Err())
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return domain.ErrProductNotFound
		}
		if resp.StatusCode != http.StatusOK {
			fields := []zap.Field{zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode)}
			if c.debug {
				fields = append(fields, zap.ByteString("body", body))
			}
			c.logger.Warn("upstream error", fields...)
			lastErr = fmt.Errorf("%w: %s status %d", domain.ErrSourceFailure, c.name, resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("%w: %s", domain.ErrRateLimited, c.name)
			}
			if !c.sleep(ctx, attempt) {
				return contextErr(ctx, ctx.Err())
			}
			continue
		}
		if readErr != nil {
			return fmt.Errorf("%w: read body: %v", domain.ErrSourceFailure, readErr)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", domain.ErrSourceFailure, err)
		}
		return nil
	}

	c.logger.Warn("all retries failed", zap.Error(lastErr))
	return lastErr
}

// sleep waits out the backoff for attempt, returning false if ctx ends first
func (c *Client) sleep(ctx context.Context, attempt int) bool {
	if attempt >= maxAttempts {
		return true
	}
	timer := time.NewTimer(exponentialBackoff(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func contextErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	// The limiter refuses early when the wait would overrun the deadline
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", domain.ErrSourceTimeout, err)
	}
	return err
}
