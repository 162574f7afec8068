package relay

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds outbound relay settings shared by every webhook route.
type Config struct {
	Timeout       time.Duration // Per-attempt HTTP timeout
	RetryCount    int           // Retries after the first attempt
	RetryDelay    time.Duration // Base delay, doubled per retry
	RatePerSecond int           // Requests per second per target (0 = unlimited)
}

// DefaultConfig returns the relay defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Second,
		RetryCount:    2,
		RetryDelay:    500 * time.Millisecond,
		RatePerSecond: 0,
	}
}

// Validate checks the relay settings.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("relay timeout must be > 0")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("invalid relay retry_count: %d (must be >= 0)", c.RetryCount)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("invalid relay rate_per_second: %d (must be >= 0)", c.RatePerSecond)
	}
	return nil
}

// ValidateTarget checks that target is an absolute http(s) URL.
func ValidateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid relay url %q: %w", target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid relay url %q: scheme must be http or https", target)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid relay url %q: missing host", target)
	}
	return nil
}
