package ingest

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v4"

	"github.com/dgnsrekt/tgin/internal/config"
	"github.com/dgnsrekt/tgin/internal/route"
	"github.com/dgnsrekt/tgin/internal/update"
)

// SecretTokenHeader carries the secret Telegram echoes on every webhook call.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 10 << 20

// Webhook accepts updates pushed by Telegram on a local path.
type Webhook struct {
	path         string
	secret       string
	registration *config.RegistrationConfig

	target route.Route
	logger *zap.Logger
	count  atomic.Int64
}

// NewWebhook creates an inbound webhook for cfg delivering to target.
func NewWebhook(cfg config.UpdateConfig, target route.Route, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{
		path:         cfg.Path,
		secret:       cfg.SecretToken,
		registration: cfg.Registration,
		target:       target,
		logger:       logger.With(zap.String("source", "webhook"), zap.String("path", cfg.Path)),
	}
}

// Path returns the local path Telegram posts to.
func (h *Webhook) Path() string {
	return h.path
}

// Count returns the number of updates delivered so far.
func (h *Webhook) Count() int64 {
	return h.count.Load()
}

// Bind mounts the handler and, when configured, schedules registration
// with Telegram.
func (h *Webhook) Bind(b route.Binder) error {
	b.Mount(h.path, h)
	if h.registration != nil {
		b.Go("register webhook "+h.path, func(ctx context.Context) {
			if err := h.Register(ctx); err != nil {
				h.logger.Error("webhook registration failed", zap.Error(err))
			}
		})
	}
	return nil
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("rejected webhook call with bad secret token")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	u, err := update.Parse(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Telegram retries anything but 2xx, so delivery problems stay local.
	if err := h.target.Deliver(context.WithoutCancel(r.Context()), u); err != nil {
		h.logger.Warn("delivery failed", zap.Error(err))
	}
	h.count.Add(1)
	w.WriteHeader(http.StatusOK)
}

// Register points the bot's Telegram webhook at the configured public URL.
func (h *Webhook) Register(ctx context.Context) error {
	reg := h.registration
	if reg == nil {
		return errors.New("no registration configured")
	}

	apiURL := reg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	bot, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(apiURL, "/"),
		Token:   reg.Token,
		Offline: true,
	})
	if err != nil {
		return fmt.Errorf("creating bot client: %w", err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	err = bot.SetWebhook(&tele.Webhook{
		SecretToken: h.secret,
		Endpoint:    &tele.WebhookEndpoint{PublicURL: reg.PublicURL},
	})
	if err != nil {
		return fmt.Errorf("setting webhook: %w", err)
	}

	h.logger.Info("webhook registered", zap.String("publicURL", reg.PublicURL))
	return nil
}
