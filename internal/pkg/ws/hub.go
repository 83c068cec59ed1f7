package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/bible_search_server/internal/pkg/pubsub"
)

// Conn is the part of a websocket connection the hub uses
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one open connection of a signed-in user
type Client struct {
	UserID int64
	Conn   Conn
	mu     sync.Mutex // serializes writes
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Message is the envelope pushed to browsers
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks open connections per user. A user may hold several (tabs,
// reconnects); every one of them receives the user's events.
type Hub struct {
	clients map[int64]map[*Client]struct{}
	mu      sync.RWMutex
	closed  bool
	log     *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		log:     log,
	}
}

// Register adds client. After Close the connection is closed right away.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = client.Conn.Close()
		return
	}
	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	n := len(h.clients[client.UserID])
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"user_id":    client.UserID,
		"user_conns": n,
	}).Debug("websocket connected")
}

// Unregister removes client. Removing an unknown client is a no-op.
func (h *Hub) Unregister(client *Client) {
	if h.remove(client) {
		h.log.WithField("user_id", client.UserID).Debug("websocket disconnected")
	}
}

func (h *Hub) remove(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.UserID]
	if !ok {
		return false
	}
	if _, ok := conns[client]; !ok {
		return false
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.UserID)
	}
	return true
}

// SendToUser writes msg to every connection of userID and returns how many
// took it. A connection whose write fails is dropped and closed; its reader
// notices and finishes the cleanup.
func (h *Hub) SendToUser(userID int64, msg *Message) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.WithError(err).WithField("user_id", userID).Warn("websocket write failed, dropping connection")
			h.remove(c)
			_ = c.Conn.Close()
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Deliver forwards a history event to its owner
func (h *Hub) Deliver(evt *pubsub.HistoryEvent) {
	if _, err := h.SendToUser(evt.UserID, &Message{Type: evt.Type, Data: evt}); err != nil {
		h.log.WithError(err).Warn("failed to deliver history event")
	}
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// Close disconnects everyone and refuses later registrations
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[int64]map[*Client]struct{})
	h.mu.Unlock()

	for _, conns := range clients {
		for c := range conns {
			_ = c.Conn.Close()
		}
	}
}
