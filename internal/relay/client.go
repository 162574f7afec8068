package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DeliveryIDHeader carries a unique id per relayed update.
const DeliveryIDHeader = "X-Tgin-Delivery-Id"

var (
	ErrRejected    = errors.New("relay target rejected the update")
	ErrRateLimited = errors.New("relay target rate limited the update")
)

// Sender pushes a JSON payload to a remote target.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// Client relays updates to one remote URL.
type Client struct {
	httpClient *http.Client
	target     string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewClient creates a relay client for target.
func NewClient(target string, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond*2)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		target:     target,
		limiter:    limiter,
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// Send posts payload to the target, retrying transport errors, 429 and 5xx
// with exponential backoff. Any other non-2xx status is terminal.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	deliveryID := uuid.New().String()

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Debug("retrying relay",
				zap.String("target", c.target),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retry, err := c.sendOnce(ctx, deliveryID, payload)
		if err == nil {
			c.logger.Debug("update relayed",
				zap.String("target", c.target),
				zap.String("deliveryID", deliveryID),
			)
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) sendOnce(ctx context.Context, deliveryID string, payload []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryIDHeader, deliveryID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("sending update: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain response body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, ErrRateLimited
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("server error: %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
}

// Compile-time interface verification
var _ Sender = (*Client)(nil)
