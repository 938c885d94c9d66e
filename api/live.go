package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cricket-sim/service"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// liveMessage is what a feed subscriber receives for each event
type liveMessage struct {
	service.Event
	Match interface{} `json:"match,omitempty"`
}

// Client is one WebSocket follower of a match
type Client struct {
	MatchID string
	Conn    *websocket.Conn
	Send    chan []byte
	Hub     *Hub
}

// Hub fans live match events out to WebSocket clients
type Hub struct {
	upgrader    websocket.Upgrader
	clients     map[*Client]bool
	fullUpdates bool
	logger      *logrus.Entry
	mutex       sync.RWMutex
}

// NewHub creates a hub. allowed lists the permitted origins; empty or "*"
// accepts any.
func NewHub(allowed []string, fullUpdates bool, logger *logrus.Entry) *Hub {
	h := &Hub{
		clients:     make(map[*Client]bool),
		fullUpdates: fullUpdates,
		logger:      logger.WithField("component", "live"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowed),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// Broadcast sends an event to every client following its match. Clients
// that cannot keep up are dropped.
func (h *Hub) Broadcast(e service.Event) {
	msg := liveMessage{Event: e}
	if h.fullUpdates && e.Match != nil {
		msg.Match = e.Match
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal live event")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if client.MatchID != e.MatchID {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.WithField("match_id", client.MatchID).Warn("Dropping slow live client")
			delete(h.clients, client)
			close(client.Send)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mutex.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mutex.Unlock()

	h.logger.WithFields(logrus.Fields{
		"match_id":      c.MatchID,
		"total_clients": total,
	}).Info("Live client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
	}
	total := len(h.clients)
	h.mutex.Unlock()

	h.logger.WithFields(logrus.Fields{
		"match_id":      c.MatchID,
		"total_clients": total,
	}).Info("Live client disconnected")
}

// Connections returns the number of connected clients
func (h *Hub) Connections() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
	}
}

// Serve upgrades the request and follows matchID until the client leaves
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, matchID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade live connection")
		return
	}

	client := &Client{
		MatchID: matchID,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Hub:     h,
	}
	h.register(client)

	go client.writePump()
	go client.readPump()
}

// readPump only watches for the client going away
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.WithError(err).Warn("Live connection error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.WithError(err).Warn("Failed to write live message")
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
