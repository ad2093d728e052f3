// ABOUTME: WebSocket feed that pushes query cache invalidations to open pages.
// ABOUTME: Pages re-fetch their sheet fragment when a covering key arrives.

package ui

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/2389/sitewalk/internal/auth"
	"github.com/2389/sitewalk/internal/querycache"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     allowedOrigin,
}

// allowedOrigin accepts pages served by this host or by a loopback address.
// Hostnames are compared exactly.
func allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	serverHost := r.Host
	if h, _, err := net.SplitHostPort(r.Host); err == nil {
		serverHost = h
	}
	return host == strings.ToLower(strings.Trim(serverHost, "[]"))
}

// Message is pushed to every connected page.
type Message struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type client struct {
	conn      *websocket.Conn
	user      string
	send      chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeConn sync.Once
}

// Hub fans cache invalidations out to websocket clients.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*client]struct{}
	logger      zerolog.Logger
	unsubscribe func()
}

func NewHub(cache *querycache.Cache, logger zerolog.Logger) *Hub {
	h := &Hub{clients: make(map[*client]struct{}), logger: logger}
	h.unsubscribe = cache.Subscribe(h.invalidated)
	return h
}

func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.serveWS)
}

// Len is the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the feed and disconnects every client.
func (h *Hub) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.cancel()
		delete(h.clients, c)
	}
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:   conn,
		user:   auth.UserFromContext(r.Context()),
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug().Str("user", c.user).Msg("websocket client connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.cancel()
}

// invalidated runs on the invalidating goroutine; sends never block.
func (h *Hub) invalidated(key string) {
	data, err := json.Marshal(Message{Type: "invalidate", Key: key})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("user", c.user).Str("key", key).Msg("websocket send buffer full, dropping message")
		}
	}
}

// readPump only services control frames; pages never send data.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.closeConn.Do(func() { c.conn.Close() })
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Str("user", c.user).Msg("websocket closed")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn.Do(func() { c.conn.Close() })
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
