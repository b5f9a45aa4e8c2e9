// Package feed broadcasts session projections to UI consumers over
// WebSocket.
package feed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/park285/cheese-session/internal/metrics"
	"github.com/park285/cheese-session/pkg/chessdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	clientBuffer = 8
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

type client struct {
	send chan chessdto.Projection
}

// Hub fans out projections. Slow clients are dropped instead of blocking
// the publisher.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    *chessdto.Projection
	closed  bool
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, clients: make(map[*client]struct{})}
}

// Publish is safe to register as a session observer.
func (h *Hub) Publish(p chessdto.Projection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	cp := p
	h.last = &cp
	for c := range h.clients {
		select {
		case c.send <- p:
		default:
			h.logger.Warn("feed_client_dropped", zap.String("reason", "slow consumer"))
			h.removeLocked(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) add() (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &client{send: make(chan chessdto.Projection, clientBuffer)}
	if h.last != nil {
		c.send <- *h.last
	}
	h.clients[c] = struct{}{}
	metrics.FeedClientDelta(1)
	return c, true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.FeedClientDelta(-1)
}

// ServeHTTP upgrades the request and streams projections until the peer
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		h.logger.Warn("feed_accept_failed", zap.Error(err))
		return
	}
	c, ok := h.add()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "feed closed")
		return
	}
	defer h.remove(c)

	// reads only to notice the peer closing
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case p, ok := <-c.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "dropped")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, p)
			cancel()
			if err != nil {
				h.logger.Debug("feed_write_failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
