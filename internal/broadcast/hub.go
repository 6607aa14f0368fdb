package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mementolab/wagate/internal/bus"
	"github.com/mementolab/wagate/internal/observability"
)

// Envelope is the JSON frame delivered to realtime clients.
type Envelope struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Hub fans gateway snapshots and domain events out to websocket clients.
// Delivery is best-effort: a client that cannot keep up is dropped so it
// can never stall the gateway.
type Hub struct {
	logger   *zap.Logger
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	cancel context.CancelFunc
}

type client struct {
	conn *websocket.Conn
	send chan Envelope
}

// NewHub creates a hub. allowAnyOrigin disables the same-origin check for
// deployments fronted by a separate UI host.
func NewHub(allowAnyOrigin bool, logger *zap.Logger, metrics *observability.Metrics) *Hub {
	h := &Hub{
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAnyOrigin {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				// Non-browser clients often omit Origin. Allow them.
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return strings.EqualFold(u.Host, r.Host)
		},
	}
	return h
}

// Broadcast implements the gateway's Broadcaster: non-blocking fan-out of
// one snapshot to every connected client.
func (h *Hub) Broadcast(kind string, payload any) {
	h.deliver(Envelope{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (h *Hub) deliver(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
			// Slow consumer: drop it rather than queue unboundedly.
			h.logger.Warn("dropping slow websocket client")
			delete(h.clients, c)
			close(c.send)
		}
	}
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(len(h.clients)))
	}
}

// Relay forwards every domain event from the bus to connected clients,
// so API-layer and UI consumers observe the same stream.
func (h *Hub) Relay(ctx context.Context, b *bus.Bus) {
	ctx, h.cancel = context.WithCancel(ctx)
	ch, unsub := b.Subscribe("", 256)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				h.deliver(Envelope{
					ID:        evt.ID,
					Kind:      evt.Kind,
					Timestamp: evt.Timestamp,
					Payload:   evt.Payload,
				})
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the relay goroutine and disconnects all clients.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and pumps envelopes until the client
// disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Envelope, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	defer func() { _ = c.conn.Close() }()
	for env := range c.send {
		payload, err := json.Marshal(env)
		if err != nil {
			h.logger.Warn("failed to marshal envelope", zap.Error(err))
			continue
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// readPump consumes and discards client frames; its only job is noticing
// the disconnect.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()
	_ = c.conn.Close()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(count))
	}
}
