// Package api is a client for the router's management API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/tgin/internal/route"
)

// Client interface for testability
type Client interface {
	Health(ctx context.Context) (Health, error)
	ListRoutes(ctx context.Context) (route.Description, error)
	AddRoute(ctx context.Context, req AddRouteRequest) (route.Description, error)
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

func NewClient(baseURL string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(limit, max(ratePerSec*2, 1)),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Health fetches GET /api/health.
func (c *HTTPClient) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &h)
	return h, err
}

// ListRoutes fetches the route tree description.
func (c *HTTPClient) ListRoutes(ctx context.Context) (route.Description, error) {
	var d route.Description
	err := c.do(ctx, http.MethodGet, "/api/routes", nil, &d)
	return d, err
}

// AddRoute adds a route and returns the new leaf's description. It is
// never retried, since a timed-out add may still have been applied.
func (c *HTTPClient) AddRoute(ctx context.Context, req AddRouteRequest) (route.Description, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return route.Description{}, fmt.Errorf("encoding request: %w", err)
	}
	var d route.Description
	err = c.do(ctx, http.MethodPost, "/api/routes", payload, &d)
	return d, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload []byte, out any) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	retries := c.retryCount
	if method != http.MethodGet {
		retries = 0
	}

	url := c.baseURL + path
	c.logger.Debug("requesting", zap.String("method", method), zap.String("url", url))

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing for error messages
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 400 {
			apiErr := decodeError(resp.StatusCode, respBody)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				lastErr = apiErr
				continue
			}
			return apiErr
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func decodeError(status int, body []byte) error {
	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Description == "" {
		apiErr = Error{ErrorCode: status, Description: strings.TrimSpace(string(body))}
	}
	if apiErr.ErrorCode == 0 {
		apiErr.ErrorCode = status
	}
	return &apiErr
}

// Compile-time interface verification
var _ Client = (*HTTPClient)(nil)
