package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 256
)

// Config configures a Hub.
type Config struct {
	// Pattern is the bus channel pattern carrying committed events.
	Pattern string
	// Status reports the engine flags sent to clients on connect. Optional.
	Status func() domain.EngineStatus
	// AllowedOrigins restricts websocket upgrades. Empty allows all.
	AllowedOrigins []string
}

// envelope is the frame format sent to clients.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// subscribeMsg is the JSON message a client sends to narrow its feed.
// Empty lists match everything.
type subscribeMsg struct {
	Action   string             `json:"action"` // "subscribe" or "unsubscribe"
	Auctions []domain.AuctionID `json:"auctions"`
	Kinds    []domain.EventKind `json:"kinds"`
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	auctions map[domain.AuctionID]bool
	kinds    map[domain.EventKind]bool
}

// Hub relays committed auction events from the signal bus to connected
// WebSocket clients.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan domain.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	bus        domain.SignalBus
	cfg        Config
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a Hub reading events from bus.
func NewHub(bus domain.SignalBus, cfg Config, logger *slog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan domain.Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Run starts the hub's event loop and the bus subscription. It returns when
// ctx is cancelled. A Hub runs once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	go h.relay(ctx)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", slog.Int("total_clients", n))

		case e := <-h.broadcast:
			data, err := json.Marshal(envelope{Type: "event", Payload: e})
			if err != nil {
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(e) {
					continue
				}
				select {
				case c.send <- data:
				default:
					h.logger.Warn("dropping event for slow client", slog.String("event_id", e.ID))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// relay forwards bus messages into the broadcast loop.
func (h *Hub) relay(ctx context.Context) {
	msgs, err := h.bus.Subscribe(ctx, h.cfg.Pattern)
	if err != nil {
		h.logger.Error("event subscription failed",
			slog.String("pattern", h.cfg.Pattern),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("relaying events", slog.String("pattern", h.cfg.Pattern))

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("event subscription closed")
				return
			}
			var e domain.Event
			if err := json.Unmarshal(data, &e); err != nil {
				h.logger.Warn("skipping malformed event", slog.String("error", err.Error()))
				continue
			}
			select {
			case h.broadcast <- e:
			case <-ctx.Done():
				return
			}
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		auctions: make(map[domain.AuctionID]bool),
		kinds:    make(map[domain.EventKind]bool),
	}
	// Queued before join: once registered, Run may close send at shutdown.
	c.sendStatus()
	if !h.join(c) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// join registers c with the running hub. It reports false once Run has
// returned.
func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c. After Run returns there is nothing to leave.
func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (c *client) sendStatus() {
	if c.hub.cfg.Status == nil {
		return
	}
	data, err := json.Marshal(envelope{Type: "status", Payload: c.hub.cfg.Status()})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// wants reports whether e passes the client's filters.
func (c *client) wants(e domain.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.kinds) > 0 && !c.kinds[e.Kind] {
		return false
	}
	if len(c.auctions) > 0 && !c.auctions[e.AuctionID] {
		return false
	}
	return true
}

func (c *client) apply(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()
	on := msg.Action != "unsubscribe"
	for _, id := range msg.Auctions {
		if on {
			c.auctions[id] = true
		} else {
			delete(c.auctions, id)
		}
	}
	for _, k := range msg.Kinds {
		if on {
			c.kinds[k] = true
		} else {
			delete(c.kinds, k)
		}
	}
}

// readPump reads filter updates until the connection closes.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(message, &msg); err == nil {
			c.apply(msg)
		}
	}
}

// writePump sends queued frames as text and pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
