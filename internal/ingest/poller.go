// Package ingest produces updates from Telegram and delivers them to the
// root of the route tree.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/config"
	"github.com/dgnsrekt/tgin/internal/route"
	"github.com/dgnsrekt/tgin/internal/update"
)

// DefaultAPIURL is the Telegram Bot API base URL.
const DefaultAPIURL = "https://api.telegram.org"

const (
	defaultPollTimeout = 30 * time.Second
	defaultErrorSleep  = 5 * time.Second
)

// ErrAPI is wrapped by errors reported in a getUpdates response body.
var ErrAPI = errors.New("telegram api error")

// apiResponse is the Bot API response envelope with opaque updates.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      []update.Update `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Poller fetches updates for one bot with getUpdates and delivers them to
// the route tree, advancing its offset past every update it has seen.
type Poller struct {
	baseURL      string
	token        string
	timeout      time.Duration
	defaultSleep time.Duration
	errorSleep   time.Duration

	client *http.Client
	target route.Route
	logger *zap.Logger

	offset int64
	count  atomic.Int64
}

// NewPoller creates a poller for cfg delivering to target.
func NewPoller(cfg config.UpdateConfig, target route.Route, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	errorSleep := cfg.ErrorTimeoutSleep
	if errorSleep <= 0 {
		errorSleep = defaultErrorSleep
	}

	return &Poller{
		baseURL:      baseURL,
		token:        cfg.Token,
		timeout:      timeout,
		defaultSleep: cfg.DefaultTimeoutSleep,
		errorSleep:   errorSleep,
		client: &http.Client{
			Timeout: timeout + 10*time.Second,
		},
		target: target,
		logger: logger.With(zap.String("source", "longpoll")),
	}
}

// Count returns the number of updates delivered so far.
func (p *Poller) Count() int64 {
	return p.count.Load()
}

// Bind schedules the polling loop on b.
func (p *Poller) Bind(b route.Binder) error {
	b.Go("poller", p.Run)
	return nil
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("polling started", zap.String("url", p.baseURL))
	defer p.logger.Info("polling stopped")

	for {
		sleep := p.defaultSleep

		n, err := p.pollOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var retry *retryAfterError
			if errors.As(err, &retry) {
				sleep = retry.after
			} else {
				sleep = p.errorSleep
			}
			p.logger.Warn("getUpdates failed",
				zap.Error(err),
				zap.Duration("sleep", sleep),
			)
		} else if n > 0 {
			p.logger.Debug("updates ingested", zap.Int("count", n), zap.Int64("offset", p.offset))
		}

		if sleep <= 0 {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

type retryAfterError struct {
	after time.Duration
	err   error
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

// pollOnce performs one getUpdates call and delivers what it returns.
func (p *Poller) pollOnce(ctx context.Context) (int, error) {
	payload, err := json.Marshal(map[string]any{
		"offset":  p.offset,
		"timeout": int(p.timeout / time.Second),
	})
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates", p.baseURL, p.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// The URL embeds the token; report only the transport failure.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return 0, fmt.Errorf("fetching updates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		apiErr := fmt.Errorf("%w: %d %s", ErrAPI, out.ErrorCode, out.Description)
		if out.Parameters != nil && out.Parameters.RetryAfter > 0 {
			return 0, &retryAfterError{after: time.Duration(out.Parameters.RetryAfter) * time.Second, err: apiErr}
		}
		return 0, apiErr
	}

	for _, u := range out.Result {
		if id, ok := u.ID(); ok && id >= p.offset {
			p.offset = id + 1
		}
		if err := p.target.Deliver(ctx, u); err != nil {
			p.logger.Warn("delivery failed", zap.Error(err))
		}
		p.count.Add(1)
	}
	return len(out.Result), nil
}
