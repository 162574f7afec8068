package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tgin.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults to load, got error: %v", err)
	}

	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected default addr ':3000', got '%s'", cfg.Server.Addr)
	}
	if cfg.Server.MaxPollTimeout != 60*time.Second {
		t.Errorf("expected 60s max poll timeout, got %s", cfg.Server.MaxPollTimeout)
	}
	if cfg.Route.Type != TypeRoundRobin {
		t.Errorf("expected round-robin root, got '%s'", cfg.Route.Type)
	}
	if cfg.Relay.RetryCount != 2 {
		t.Errorf("expected 2 relay retries by default, got %d", cfg.Relay.RetryCount)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TGIN_TEST_TOKEN", "123:abc")

	path := writeConfig(t, `
server:
  addr: ":8080"
updates:
  - type: longpoll
    token: ${TGIN_TEST_TOKEN}
  - type: webhook
    path: /hook
route:
  type: all
  routes:
    - type: longpoll
      path: /bot1
    - type: round-robin
      routes:
        - type: webhook
          url: http://localhost:9000/hook
        - type: stream
          path: /ws
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr ':8080', got '%s'", cfg.Server.Addr)
	}
	if len(cfg.Updates) != 2 {
		t.Fatalf("expected 2 update sources, got %d", len(cfg.Updates))
	}
	if cfg.Updates[0].Token != "123:abc" {
		t.Errorf("expected substituted token, got '%s'", cfg.Updates[0].Token)
	}
	if cfg.Route.Type != TypeAll || len(cfg.Route.Routes) != 2 {
		t.Fatalf("unexpected root route: %+v", cfg.Route)
	}
	nested := cfg.Route.Routes[1]
	if nested.Type != TypeRoundRobin || len(nested.Routes) != 2 {
		t.Fatalf("unexpected nested route: %+v", nested)
	}
	if nested.Routes[1].Path != "/ws" {
		t.Errorf("expected stream path /ws, got '%s'", nested.Routes[1].Path)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TGIN_SERVER_ADDR", ":9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected env override ':9999', got '%s'", cfg.Server.Addr)
	}
}

func TestLoadMissingEnvVar(t *testing.T) {
	path := writeConfig(t, `
updates:
  - type: longpoll
    token: ${TGIN_DOES_NOT_EXIST}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unset variable")
	}
	if !strings.Contains(err.Error(), "TGIN_DOES_NOT_EXIST") {
		t.Errorf("expected error to name the variable, got: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSubstituteEnv(t *testing.T) {
	t.Setenv("TGIN_A", "one")
	t.Setenv("TGIN_B", "")

	got, err := SubstituteEnv("a=${TGIN_A} b=${TGIN_B} c=$TGIN_A")
	if err != nil {
		t.Fatalf("SubstituteEnv failed: %v", err)
	}
	if got != "a=one b= c=$TGIN_A" {
		t.Errorf("unexpected substitution: %q", got)
	}

	_, err = SubstituteEnv("${TGIN_MISSING_2} ${TGIN_MISSING_1} ${TGIN_MISSING_1}")
	if err == nil {
		t.Fatal("expected error for missing variables")
	}
	if !strings.Contains(err.Error(), "TGIN_MISSING_1, TGIN_MISSING_2") {
		t.Errorf("expected sorted unique names, got: %v", err)
	}
}
