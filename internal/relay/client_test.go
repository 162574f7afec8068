package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testConfig(retries int) Config {
	return Config{
		Timeout:    5 * time.Second,
		RetryCount: retries,
		RetryDelay: 10 * time.Millisecond,
	}
}

func TestSend_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if r.Header.Get(DeliveryIDHeader) == "" {
			t.Error("expected delivery id header")
		}

		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"update_id":1}` {
			t.Errorf("unexpected body: %s", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig(0), zap.NewNop())
	if err := client.Send(context.Background(), []byte(`{"update_id":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig(2), zap.NewNop())
	if err := client.Send(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestSend_RateLimitedExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig(2), zap.NewNop())
	err := client.Send(context.Background(), []byte(`{}`))
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}

	// Should have attempted 3 times (initial + 2 retries)
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestSend_ClientErrorIsTerminal(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(server.URL, testConfig(3), zap.NewNop())
	err := client.Send(context.Background(), []byte(`{}`))
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", attempts.Load())
	}
}

func TestValidateTarget(t *testing.T) {
	cases := map[string]bool{
		"http://localhost:3001/bot": true,
		"https://example.com/hook":  true,
		"ftp://example.com":         false,
		"/relative":                 false,
		"http://":                   false,
	}
	for target, ok := range cases {
		err := ValidateTarget(target)
		if ok && err != nil {
			t.Errorf("%s: unexpected error %v", target, err)
		}
		if !ok && err == nil {
			t.Errorf("%s: expected error", target)
		}
	}
}
