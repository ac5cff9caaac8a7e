package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/app"
)

const (
	clientBuffer = 256
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// statusMessage is one websocket frame sent to dashboard clients.
type statusMessage struct {
	Type     string       `json:"type"`
	Exercise app.Exercise `json:"exercise"`
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusHub fans exercise updates out to websocket clients. Slow clients are
// dropped rather than stalling the pipeline.
type StatusHub struct {
	log     *logrus.Logger
	mu      sync.Mutex
	clients map[*hubClient]struct{}
	last    []byte
	closed  bool
}

// NewStatusHub creates an empty hub.
func NewStatusHub(logger *logrus.Logger) *StatusHub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StatusHub{
		log:     logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// Broadcast queues ex for every client and remembers it for new ones. It
// never blocks.
func (h *StatusHub) Broadcast(ex app.Exercise) {
	msg, err := json.Marshal(statusMessage{Type: "status", Exercise: ex})
	if err != nil {
		h.log.WithError(err).Warn("Failed to encode status")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = msg
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropLocked(c)
			h.log.Warn("Dropped slow status client")
		}
	}
}

// Clients returns the number of connected clients.
func (h *StatusHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *StatusHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
}

func (h *StatusHub) dropLocked(c *hubClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *StatusHub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	return true
}

func (h *StatusHub) unregister(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// ServeHTTP upgrades the request and streams status messages until the
// client goes away.
func (h *StatusHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.register(c) {
		conn.Close()
		return
	}
	h.log.WithField("clients", h.Clients()).Debug("Status client connected")

	go h.writePump(c)

	// Reads only serve to notice the close and answer pings.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}

func (h *StatusHub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
