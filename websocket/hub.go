package websocket

import (
	"sync"
	"time"

	"review-hub-backend/metrics"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeImportProgress MessageType = "IMPORT_PROGRESS"
	MessageTypeImportFinished MessageType = "IMPORT_FINISHED"
	MessageTypeSubscribe      MessageType = "SUBSCRIBE"
	MessageTypeUnsubscribe    MessageType = "UNSUBSCRIBE"
	MessageTypeError          MessageType = "ERROR"
)

// WebSocketMessage is the envelope for every frame. ThreadID carries the
// import job id for job scoped messages.
type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	ThreadID  string      `json:"threadId,omitempty"`
}

type Client struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Conn    *websocket.Conn
	Hub     *Hub
	Send    chan WebSocketMessage
	Threads map[string]bool
	mu      sync.RWMutex
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.Register(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				metrics.WebSocketConnections.Dec()
			}
			h.mu.Unlock()
		}
	}
}

// Register adds client before returning, so every later SendToUser reaches it.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	metrics.WebSocketConnections.Inc()
}

// SendToUser delivers message to the user's clients that watch every job or
// are subscribed to message.ThreadID. Slow clients are dropped.
func (h *Hub) SendToUser(userID uuid.UUID, message WebSocketMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.UserID != userID || !client.Wants(message.ThreadID) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(h.clients, client)
			metrics.WebSocketConnections.Dec()
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Wants reports whether the client should receive messages for threadID.
// A client without subscriptions receives everything for its user.
func (c *Client) Wants(threadID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.Threads) == 0 || threadID == "" {
		return true
	}
	return c.Threads[threadID]
}

// SubscribeToThread adds a thread to client's subscription
func (c *Client) SubscribeToThread(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Threads == nil {
		c.Threads = make(map[string]bool)
	}
	c.Threads[threadID] = true
}

// UnsubscribeFromThread removes a thread from client's subscription
func (c *Client) UnsubscribeFromThread(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Threads, threadID)
}
