package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/crewrun/internal/application"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Event is one message of the /ws/events feed.
type Event struct {
	Type   string              `json:"type"`
	Change *application.Change `json:"change,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans saved changes out to websocket clients. Slow clients are dropped.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	// OnCount observes the number of connected clients.
	OnCount func(n int)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     localOrigin,
		},
		clients: make(map[*client]struct{}),
	}
}

// localOrigin accepts browsers on this machine and non-browser clients.
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || isLocalOrigin(origin)
}

// ServeHTTP upgrades the connection and streams events until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(c)
	}()
	h.readLoop(c)
	h.remove(c)
	wg.Wait()
	conn.Close()
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.countLocked()
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.countLocked()
}

func (h *Hub) countLocked() {
	if h.OnCount != nil {
		h.OnCount(len(h.clients))
	}
}

// readLoop discards client messages; it returns when the peer goes away.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket client closed")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// unblock readLoop; remove then closes send
				c.conn.Close()
				for range c.send {
				}
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				for range c.send {
				}
				return
			}
		}
	}
}

// Broadcast sends ev to every client.
func (h *Hub) Broadcast(ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			log.Warn().Msg("dropping slow websocket client")
			delete(h.clients, c)
			close(c.send)
			c.conn.Close()
		}
	}
	h.countLocked()
	return nil
}

// AfterSave broadcasts the change.
func (h *Hub) AfterSave(_ context.Context, c application.Change) error {
	return h.Broadcast(Event{Type: "change", Change: &c})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.countLocked()
}
