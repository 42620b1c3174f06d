package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sensorgrid/sensorgrid-core/internal/auth"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/config"
)

// wsEnvelope wraps every frame pushed to websocket clients.
type wsEnvelope struct {
	Channel string    `json:"channel"`
	Data    any       `json:"data"`
	SentAt  time.Time `json:"sent_at"`
}

// Hub fans marketplace events out to connected websocket clients.
//
// Events reach the hub after their transaction commits; a slow client
// is dropped rather than allowed to stall the broadcast loop.
type Hub struct {
	cfg config.WebSocketConfig

	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte

	mu     sync.RWMutex
	logger Logger
}

// NewHub creates a websocket hub. Run must be called for broadcasts to
// be delivered.
func NewHub(cfg config.WebSocketConfig, logger Logger) *Hub {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Hub{
		cfg:        cfg,
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 64),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// client can't keep up, drop it
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a payload to every connected client on the given
// channel. Satisfies events.Broadcaster.
func (h *Hub) Broadcast(channel string, payload any) {
	frame, err := json.Marshal(wsEnvelope{
		Channel: channel,
		Data:    payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("websocket envelope marshal failed", "channel", channel, "error", err)
		return
	}

	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn("websocket broadcast queue full, frame dropped", "channel", channel)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// wsClient is one websocket connection with its outbound queue.
type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	principal string
}

func (h *Hub) pingInterval() time.Duration {
	if h.cfg.PingInterval > 0 {
		return time.Duration(h.cfg.PingInterval) * time.Second
	}
	return 30 * time.Second
}

func (h *Hub) pongTimeout() time.Duration {
	if h.cfg.PongTimeout > 0 {
		return time.Duration(h.cfg.PongTimeout) * time.Second
	}
	return 60 * time.Second
}

// readPump drains inbound frames. The event stream is one-way; client
// frames only feed the pong handler and connection teardown.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	if c.hub.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	}
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout())) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout()))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes queued frames and keepalive pings to the client.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and attaches it to the hub.
//
// Browsers cannot set an Authorization header on websocket upgrades,
// so the bearer token arrives as a query parameter instead.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token query parameter")
		return
	}
	claims, err := auth.ParseToken(s.cfg.Security.JWT.Secret, token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, 32),
		principal: claims.Principal(),
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}
