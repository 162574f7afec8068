package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/config"
	"github.com/dgnsrekt/tgin/internal/route"
	"github.com/dgnsrekt/tgin/internal/update"
)

// sink is a route recording every delivered update.
type sink struct {
	mu  sync.Mutex
	got []update.Update
	ch  chan struct{}
}

func newSink() *sink { return &sink{ch: make(chan struct{}, 64)} }

func (s *sink) Deliver(_ context.Context, u update.Update) error {
	s.mu.Lock()
	s.got = append(s.got, u)
	s.mu.Unlock()
	s.ch <- struct{}{}
	return nil
}

func (s *sink) Describe() route.Description { return route.Description{Type: "sink"} }

func (s *sink) Bind(route.Binder) error { return nil }

func (s *sink) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d deliveries, got %d", n, i)
		}
	}
}

func TestPoller_DeliversAndAdvancesOffset(t *testing.T) {
	var (
		mu      sync.Mutex
		offsets []int64
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/getUpdates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Offset int64 `json:"offset"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		mu.Lock()
		offsets = append(offsets, req.Offset)
		first := len(offsets) == 1
		mu.Unlock()

		if first {
			io.WriteString(w, `{"ok":true,"result":[{"update_id":10,"x":1},{"update_id":11}]}`)
			return
		}
		io.WriteString(w, `{"ok":true,"result":[]}`)
	}))
	defer api.Close()

	target := newSink()
	p := NewPoller(config.UpdateConfig{
		Token:               "TOKEN",
		URL:                 api.URL,
		PollTimeout:         time.Second,
		DefaultTimeoutSleep: 10 * time.Millisecond,
	}, target, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	target.wait(t, 2)
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(offsets)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(offsets) < 2 || offsets[0] != 0 || offsets[1] != 12 {
		t.Errorf("expected offsets [0 12 ...], got %v", offsets)
	}
	if string(target.got[0]) != `{"update_id":10,"x":1}` {
		t.Errorf("expected update forwarded verbatim, got %s", target.got[0])
	}
	if p.Count() != 2 {
		t.Errorf("expected count 2, got %d", p.Count())
	}
}

func TestPoller_APIError(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`)
	}))
	defer api.Close()

	p := NewPoller(config.UpdateConfig{Token: "T", URL: api.URL}, newSink(), nil)
	_, err := p.pollOnce(context.Background())

	var retry *retryAfterError
	if err == nil || !strings.Contains(err.Error(), "Too Many Requests") {
		t.Fatalf("expected api error, got %v", err)
	}
	if !errors.As(err, &retry) || retry.after != 3*time.Second {
		t.Errorf("expected retry after 3s, got %v", err)
	}
}

func TestWebhook_ServeHTTP(t *testing.T) {
	target := newSink()
	h := NewWebhook(config.UpdateConfig{Path: "/in", SecretToken: "s3cret"}, target, nil)

	tests := []struct {
		name   string
		method string
		secret string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "s3cret", "", http.StatusMethodNotAllowed},
		{"bad secret", http.MethodPost, "nope", `{}`, http.StatusForbidden},
		{"invalid json", http.MethodPost, "s3cret", `{`, http.StatusBadRequest},
		{"accepted", http.MethodPost, "s3cret", `{"update_id":1}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/in", strings.NewReader(tt.body))
			req.Header.Set(SecretTokenHeader, tt.secret)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}

	target.wait(t, 1)
	if h.Count() != 1 {
		t.Errorf("expected 1 ingested update, got %d", h.Count())
	}
}

func TestWebhook_Register(t *testing.T) {
	var body string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/setWebhook" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	defer api.Close()

	h := NewWebhook(config.UpdateConfig{
		Path:        "/in",
		SecretToken: "s3cret",
		Registration: &config.RegistrationConfig{
			Token:     "TOKEN",
			PublicURL: "https://bots.example.com/in",
			APIURL:    api.URL,
		},
	}, newSink(), nil)

	if err := h.Register(context.Background()); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !strings.Contains(body, "https://bots.example.com/in") || !strings.Contains(body, "s3cret") {
		t.Errorf("expected url and secret in request, got %s", body)
	}
}

func TestBuild(t *testing.T) {
	sources, err := Build([]config.UpdateConfig{
		{Type: config.TypeLongPoll, Token: "T"},
		{Type: config.TypeWebhook, Path: "/in"},
	}, newSink(), nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if _, ok := sources[0].(*Poller); !ok {
		t.Errorf("expected poller, got %T", sources[0])
	}
	if sources.Count() != 0 {
		t.Errorf("expected zero count, got %d", sources.Count())
	}

	if _, err := Build([]config.UpdateConfig{{Type: "carrier-pigeon"}}, newSink(), nil); err == nil {
		t.Error("expected error for unknown type")
	}
}
