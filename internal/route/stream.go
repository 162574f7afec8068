package route

import (
	"context"

	"github.com/dgnsrekt/tgin/internal/update"
	"github.com/dgnsrekt/tgin/internal/ws"
)

// Stream is a leaf route that pushes every update to the WebSocket
// clients connected at its path.
type Stream struct {
	hub *ws.Hub
}

// NewStream wraps hub as a leaf route.
func NewStream(hub *ws.Hub) *Stream {
	return &Stream{hub: hub}
}

// Path returns the WebSocket path.
func (s *Stream) Path() string {
	return s.hub.Path()
}

// Deliver implements Route.
func (s *Stream) Deliver(ctx context.Context, u update.Update) error {
	return s.hub.Publish(ctx, u)
}

// Describe implements Route.
func (s *Stream) Describe() Description {
	return Description{
		Type: TypeStream,
		Options: map[string]any{
			"path":    s.hub.Path(),
			"clients": s.hub.ClientCount(),
		},
	}
}

// Bind mounts the WebSocket handler and schedules the hub loop.
func (s *Stream) Bind(b Binder) error {
	b.Mount(s.hub.Path(), s.hub)
	b.Go("stream "+s.hub.Path(), s.hub.Run)
	return nil
}
