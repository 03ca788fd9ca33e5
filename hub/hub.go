// Package hub is the real-time side of the service: a WebSocket hub that
// tracks connected clients and a router that dispatches the design protocol
// (generate / modify / fetch / plugin connect) over it.
//
// Messages from a single connection are read and handled strictly in order.
// Different connections interleave freely; everything they share lives in
// the injected store, which is mutex-guarded.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/draftwire/draftwire/audit"
	"github.com/draftwire/draftwire/idgen"
	"github.com/draftwire/draftwire/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Modification requests embed a full prior design, so frames can be big.
	maxMessageSize = 1 << 20

	sendBuffer = 64
)

// Envelope is one protocol frame in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is one connected client as seen by the router. *Client implements it;
// tests supply fakes.
type Conn interface {
	ID() string
	Emit(event string, payload any) error
}

// Hub tracks the connected clients and the plugin broadcast group.
type Hub struct {
	mu      sync.RWMutex
	clients map[Conn]bool
	plugins map[Conn]bool

	newID  idgen.Generator
	logger *slog.Logger

	// Keepalive timing, defaulted from the package constants. Fields so
	// tests can run the ping/pong cycle at millisecond scale.
	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets a custom logger for the hub.
func WithLogger(l *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// WithConnIDGenerator sets the generator for connection IDs.
func WithConnIDGenerator(gen idgen.Generator) HubOption {
	return func(h *Hub) { h.newID = gen }
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[Conn]bool),
		plugins:    make(map[Conn]bool),
		newID:      idgen.Prefixed("conn_", idgen.NanoID(16)),
		logger:     slog.Default(),
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Hub) add(c Conn) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	delete(h.plugins, c)
	h.mu.Unlock()
	if cl, ok := c.(*Client); ok {
		cl.closeSend()
	}
}

// JoinPlugins marks a connection as a plugin listener.
func (h *Hub) JoinPlugins(c Conn) {
	h.mu.Lock()
	h.plugins[c] = true
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PluginCount returns the number of clients in the plugin group.
func (h *Hub) PluginCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.plugins)
}

// BroadcastExcept emits an event to every connected client except the
// sender. Every other connection may observe every design event; the
// requester gets its own dedicated reply instead.
func (h *Hub) BroadcastExcept(except Conn, event string, payload any) {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.clients))
	for c := range h.clients {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Emit(event, payload); err != nil {
			h.logger.Warn("broadcast emit failed", "client", c.ID(), "event", event, "error", err)
		}
	}
}

// Close disconnects all clients.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := make([]Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[Conn]bool)
	h.plugins = make(map[Conn]bool)
	h.mu.Unlock()

	for _, c := range clients {
		if cl, ok := c.(*Client); ok {
			cl.closeSend()
			cl.conn.Close()
		}
	}
	return nil
}

// The browser client and the design-tool plugin connect from their own
// origins; cross-origin checks belong to the deployment proxy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client is one WebSocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// Emit queues one event frame for the client. Returns an error when the
// connection is gone or its send buffer is full; the caller logs and moves
// on — a slow listener never blocks the protocol.
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hub: marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("hub: marshal envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("hub: client %s disconnected", c.id)
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("hub: client %s send buffer full", c.id)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// ServeWS upgrades an HTTP request to a WebSocket connection, registers the
// client and its session, and runs the protocol until disconnect.
func ServeWS(h *Hub, router *Router, st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		c := &Client{
			id:   h.newID(),
			hub:  h,
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}
		h.add(c)
		st.CreateSession(c.id)
		h.logger.Info("client connected", "client", c.id)
		router.events.Log(context.Background(), audit.Event{Kind: audit.KindConnect, SessionID: c.id, Success: true})

		go c.writePump()
		go c.readPump(router, st)
	}
}

// readPump reads frames and handles them one at a time, so a connection's
// requests are processed and answered in the order received.
func (c *Client) readPump(router *Router, st *store.Store) {
	defer func() {
		// closeSend (via remove) lets writePump drain queued frames and
		// close the connection itself, instead of cutting it mid-write.
		c.hub.remove(c)
		st.DestroySession(c.id)
		c.hub.logger.Info("client disconnected", "client", c.id)
		router.events.Log(context.Background(), audit.Event{Kind: audit.KindDisconnect, SessionID: c.id, Success: true})
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
	})

	for {
		// Re-armed every iteration, not just in the pong handler: Handle
		// runs on this goroutine, so a long generation leaves pongs unread
		// and an un-reset deadline would drop the connection the moment
		// the next read starts.
		c.conn.SetReadDeadline(time.Now().Add(c.hub.pongWait))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("read failed", "client", c.id, "error", err)
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.Emit(eventDesignError, errorPayload{Message: "Malformed request."})
			continue
		}
		// Deliberately not the request context: a disconnect mid-generation
		// lets the model call finish and its result reach history; only
		// delivery to this client is skipped.
		router.Handle(context.Background(), c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
