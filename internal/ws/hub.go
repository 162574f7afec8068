package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/internal/update"
)

// ErrHubClosed is returned by Publish once the hub has shut down.
var ErrHubClosed = errors.New("ws: hub closed")

// Hub manages the WebSocket connections of one stream path and pushes
// every published update to all of them.
type Hub struct {
	path       string
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan update.Update
	done       chan struct{}
	closeOnce  sync.Once
	encoder    *Encoder
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new Hub.
func NewHub(path string, logger *zap.Logger) (*Hub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := NewEncoder()
	if err != nil {
		return nil, fmt.Errorf("hub %s: %w", path, err)
	}
	return &Hub{
		path:       path,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan update.Update, 256),
		done:       make(chan struct{}),
		encoder:    enc,
		logger:     logger,
	}, nil
}

// Path returns the HTTP path the hub is served at.
func (h *Hub) Path() string {
	return h.path
}

// Run processes hub events. Call this in a goroutine.
// Returns when context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.encoder.Close()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", zap.String("path", h.path))
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered",
				zap.String("path", h.path),
				zap.String("connID", client.connID),
				zap.String("protocol", client.protocol),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered",
				zap.String("path", h.path),
				zap.String("connID", client.connID),
			)

		case u := <-h.broadcast:
			h.fanout(u)
		}
	}
}

// fanout renders u once per wire format and queues it on every client.
// Clients whose buffer is full are disconnected.
func (h *Hub) fanout(u update.Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	f := frame{text: u}
	for client := range h.clients {
		if client.protocol == protocolProtobuf && f.binary == nil {
			encoded, err := h.encoder.EncodeUpdate(u)
			if err != nil {
				h.logger.Warn("failed to encode update", zap.String("path", h.path), zap.Error(err))
				break
			}
			f.binary = encoded
		}
	}

	for client := range h.clients {
		data, kind := f.forProtocol(client.protocol)
		if data == nil {
			continue
		}
		select {
		case client.send <- outbound{data: data, kind: kind}:
		default:
			// Buffer full, schedule disconnect
			go h.drop(client)
		}
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// shutdown gracefully closes all client connections.
func (h *Hub) shutdown() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Publish queues u for every connected client.
func (h *Hub) Publish(ctx context.Context, u update.Update) error {
	select {
	case h.broadcast <- u:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
