package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Relay   RelayConfig    `mapstructure:"relay"`
	Updates []UpdateConfig `mapstructure:"updates"`
	Route   RouteConfig    `mapstructure:"route"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxPollTimeout  time.Duration `mapstructure:"max_poll_timeout"`
	CommandTimeout  time.Duration `mapstructure:"command_timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type RelayConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	RatePerSecond int           `mapstructure:"rate_per_second"`
}

// UpdateConfig describes one ingestion source.
type UpdateConfig struct {
	Type string `mapstructure:"type"` // "longpoll" or "webhook"

	// longpoll
	Token               string        `mapstructure:"token"`
	URL                 string        `mapstructure:"url"`
	PollTimeout         time.Duration `mapstructure:"poll_timeout"`
	DefaultTimeoutSleep time.Duration `mapstructure:"default_timeout_sleep"`
	ErrorTimeoutSleep   time.Duration `mapstructure:"error_timeout_sleep"`

	// webhook
	Path         string              `mapstructure:"path"`
	SecretToken  string              `mapstructure:"secret_token"`
	Registration *RegistrationConfig `mapstructure:"registration"`
}

// RegistrationConfig registers a webhook ingestion path with Telegram.
type RegistrationConfig struct {
	Token     string `mapstructure:"token"`
	PublicURL string `mapstructure:"public_url"`
	APIURL    string `mapstructure:"api_url"`
}

// RouteConfig is one node of the route tree. Strategies ("round-robin",
// "all") carry Routes; leaves carry Path or URL.
type RouteConfig struct {
	Type   string        `mapstructure:"type"`
	Path   string        `mapstructure:"path"`
	URL    string        `mapstructure:"url"`
	Routes []RouteConfig `mapstructure:"routes"`
}

// Route node types.
const (
	TypeRoundRobin = "round-robin"
	TypeAll        = "all"
	TypeLongPoll   = "longpoll"
	TypeWebhook    = "webhook"
	TypeStream     = "stream"
)

// Load reads the config file at configPath (or the default search
// locations when empty), substitutes ${VAR} references, applies TGIN_*
// environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_poll_timeout", "60s")
	v.SetDefault("server.command_timeout", "5s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("relay.timeout", "10s")
	v.SetDefault("relay.retry_count", 2)
	v.SetDefault("relay.retry_delay", "500ms")
	v.SetDefault("relay.rate_per_second", 0)
	v.SetDefault("route.type", TypeRoundRobin)

	// Environment variable support
	v.SetEnvPrefix("TGIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		expanded, err := SubstituteEnv(string(raw))
		if err != nil {
			return nil, fmt.Errorf("expanding config: %w", err)
		}
		v.SetConfigType(configType(path))
		if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var searchPaths = []string{
	"configs/default.yaml",
	"tgin.yaml",
}

// resolvePath returns configPath, or the first default location that
// exists, or "" when there is none.
func resolvePath(configPath string) (string, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return configPath, nil
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func configType(path string) string {
	switch {
	case strings.HasSuffix(path, ".json"):
		return "json"
	case strings.HasSuffix(path, ".toml"):
		return "toml"
	default:
		return "yaml"
	}
}
