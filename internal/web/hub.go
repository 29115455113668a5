package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"support-dojo/server/internal/engine"
)

// Client is one connected websocket observer.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	hub  *ExchangeHub

	mu     sync.Mutex
	closed bool
}

// ExchangeHub fans completed exchanges out to connected observers (trainer
// dashboards watching a session live). The orchestrator publishes onto the
// events channel; the hub drains it.
type ExchangeHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	events     <-chan engine.ExchangeEvent
	mu         sync.RWMutex
	log        zerolog.Logger
}

func NewExchangeHub(events <-chan engine.ExchangeEvent, log zerolog.Logger) *ExchangeHub {
	return &ExchangeHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		events:     events,
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run drives the hub's event loop. Call it in its own goroutine.
func (h *ExchangeHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case event, ok := <-h.events:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

func (h *ExchangeHub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
	h.log.Info().Str("client", client.ID).Int("total", h.ClientCount()).Msg("observer connected")
	go client.writePump()
}

func (h *ExchangeHub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		client.close()
	}
	h.mu.Unlock()
	h.log.Info().Str("client", client.ID).Msg("observer disconnected")
}

func (h *ExchangeHub) broadcast(event engine.ExchangeEvent) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":     "exchange",
		"exchange": event,
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			// Slow observers miss events rather than stall the hub.
		}
	}
}

// ClientCount reports connected observers.
func (h *ExchangeHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.unregister <- c
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.unregister <- c
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(1024)
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func newClientID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:16]
	}
	return hex.EncodeToString(b)
}
