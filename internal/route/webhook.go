package route

import (
	"context"

	"github.com/dgnsrekt/tgin/internal/relay"
	"github.com/dgnsrekt/tgin/internal/update"
)

// Webhook is a leaf route that pushes every update to a remote URL.
// Network mechanics (timeouts, retries, rate limits) belong to the sender.
type Webhook struct {
	url    string
	sender relay.Sender
}

// NewWebhook creates a webhook leaf relaying to url through sender.
func NewWebhook(url string, sender relay.Sender) *Webhook {
	return &Webhook{url: url, sender: sender}
}

// URL returns the relay target.
func (w *Webhook) URL() string {
	return w.url
}

// Deliver implements Route.
func (w *Webhook) Deliver(ctx context.Context, u update.Update) error {
	return w.sender.Send(ctx, u)
}

// Describe implements Route.
func (w *Webhook) Describe() Description {
	return Description{
		Type:    TypeWebhook,
		Options: map[string]any{"url": w.url},
	}
}

// Bind implements Route. Relays have no inbound HTTP surface.
func (w *Webhook) Bind(Binder) error {
	return nil
}
