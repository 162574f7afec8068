package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ReservedPrefixes are served by the router itself and cannot be used as
// long-poll, stream or webhook ingestion paths.
var ReservedPrefixes = []string{"/api", "/openapi.yaml", "/docs"}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	Problems []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Problems) > 0
}

func (e *ValidationErrors) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, p := range e.Problems {
		sb.WriteString(fmt.Sprintf("  - %s\n", p))
	}
	return sb.String()
}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	if c.Server.Addr == "" {
		errs.add("server.addr is required")
	}
	if c.Server.MaxPollTimeout < 0 {
		errs.add("server.max_poll_timeout must be >= 0")
	}
	if c.Server.WriteTimeout > 0 && c.Server.MaxPollTimeout > 0 && c.Server.WriteTimeout <= c.Server.MaxPollTimeout {
		errs.add("server.write_timeout (%s) must exceed server.max_poll_timeout (%s)",
			c.Server.WriteTimeout, c.Server.MaxPollTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs.add("server.shutdown_timeout must be > 0")
	}
	if c.Server.CommandTimeout <= 0 {
		errs.add("server.command_timeout must be > 0")
	}

	if c.Relay.Timeout <= 0 {
		errs.add("relay.timeout must be > 0")
	}
	if c.Relay.RetryCount < 0 {
		errs.add("relay.retry_count must be >= 0")
	}
	if c.Relay.RatePerSecond < 0 {
		errs.add("relay.rate_per_second must be >= 0")
	}

	claimed := make(pathClaims)
	for i, u := range c.Updates {
		validateUpdate(errs, claimed, fmt.Sprintf("updates[%d]", i), u)
	}

	validateRoute(errs, claimed, "route", c.Route, true)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// pathClaims maps each served path to the config location that serves it.
// A long-poll queue sharing a path with a mounted handler would never be
// fetched, so every path may be claimed once.
type pathClaims map[string]string

func (pc pathClaims) claim(errs *ValidationErrors, where, path string) {
	if path == "" {
		return
	}
	if owner, ok := pc[path]; ok {
		errs.add("%s: path %s is already served by %s", where, path, owner)
		return
	}
	pc[path] = where
}

func validateUpdate(errs *ValidationErrors, claimed pathClaims, where string, u UpdateConfig) {
	switch u.Type {
	case TypeLongPoll:
		if u.Token == "" {
			errs.add("%s: token is required for longpoll updates", where)
		}
		if u.URL != "" {
			validateURL(errs, where, u.URL)
		}
		if u.PollTimeout < 0 || u.DefaultTimeoutSleep < 0 || u.ErrorTimeoutSleep < 0 {
			errs.add("%s: timeouts must be >= 0", where)
		}
	case TypeWebhook:
		validatePath(errs, where, u.Path)
		claimed.claim(errs, where, u.Path)
		if r := u.Registration; r != nil {
			if r.Token == "" {
				errs.add("%s.registration: token is required", where)
			}
			if r.PublicURL == "" {
				errs.add("%s.registration: public_url is required", where)
			} else {
				validateURL(errs, where+".registration", r.PublicURL)
			}
		}
	default:
		errs.add("%s: unknown update type %q (valid: longpoll, webhook)", where, u.Type)
	}
}

func validateRoute(errs *ValidationErrors, claimed pathClaims, where string, r RouteConfig, root bool) {
	switch r.Type {
	case TypeRoundRobin, TypeAll:
		for i, child := range r.Routes {
			validateRoute(errs, claimed, fmt.Sprintf("%s.routes[%d]", where, i), child, false)
		}
	case TypeLongPoll, TypeStream:
		if root {
			errs.add("%s: root route must be a strategy (round-robin, all)", where)
		}
		validatePath(errs, where, r.Path)
		claimed.claim(errs, where, r.Path)
	case TypeWebhook:
		if root {
			errs.add("%s: root route must be a strategy (round-robin, all)", where)
		}
		validateURL(errs, where, r.URL)
	default:
		errs.add("%s: unknown route type %q (valid: round-robin, all, longpoll, webhook, stream)", where, r.Type)
	}
}

// ValidatePath reports whether path can be served by a route.
func ValidatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must start with /", path)
	}
	for _, prefix := range ReservedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return fmt.Errorf("path %q collides with reserved prefix %s", path, prefix)
		}
	}
	return nil
}

func validatePath(errs *ValidationErrors, where, path string) {
	if path == "" {
		errs.add("%s: path is required", where)
		return
	}
	if err := ValidatePath(path); err != nil {
		errs.add("%s: %v", where, err)
	}
}

func validateURL(errs *ValidationErrors, where, raw string) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.add("%s: invalid url %q", where, raw)
	}
}
