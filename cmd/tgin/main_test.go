package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/config"
)

func TestBaseURL(t *testing.T) {
	if got := baseURL(":3000"); got != "http://127.0.0.1:3000" {
		t.Errorf("unexpected url: %s", got)
	}
	if got := baseURL("10.0.0.1:80"); got != "http://10.0.0.1:80" {
		t.Errorf("unexpected url: %s", got)
	}
}

func TestSetupLogger(t *testing.T) {
	l, err := setupLogger(false, &config.LoggingConfig{Level: "warn"})
	if err != nil {
		t.Fatalf("setupLogger failed: %v", err)
	}
	if l.Core().Enabled(zap.InfoLevel) {
		t.Error("expected info to be disabled at warn level")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().String()
}

func TestServe_EndToEnd(t *testing.T) {
	addr := freeAddr(t)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Addr:            addr,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 2 * time.Second,
			MaxPollTimeout:  5 * time.Second,
			CommandTimeout:  time.Second,
		},
		Relay: config.RelayConfig{Timeout: time.Second},
		Updates: []config.UpdateConfig{
			{Type: config.TypeWebhook, Path: "/telegram"},
		},
		Route: config.RouteConfig{
			Type:   config.TypeRoundRobin,
			Routes: []config.RouteConfig{{Type: config.TypeLongPoll, Path: "/bot1"}},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zap.NewNop()) }()

	base := "http://" + addr
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(base + "/api/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Ingest through the webhook source, fetch through the long-poll leaf.
	resp, err := http.Post(base+"/telegram", "application/json", strings.NewReader(`{"update_id":77}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected webhook 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/bot1?timeout=2")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		OK     bool              `json:"ok"`
		Result []json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(body.Result) != 1 || string(body.Result[0]) != `{"update_id":77}` {
		t.Errorf("expected ingested update, got %+v", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
