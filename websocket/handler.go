package websocket

import (
	"context"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/middleware"
	"review-hub-backend/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthService defines a token validator interface
type AuthService interface {
	VerifyToken(token string) (*token.Payload, error)
}

// JobSnapshot returns the current state of a user's job as a message, or nil
// when the user has no such job.
type JobSnapshot func(ctx context.Context, userID, jobID uuid.UUID) (*WebSocketMessage, error)

// WsHandler manages WebSocket requests and connections
type WsHandler struct {
	hub      *Hub
	auth     AuthService
	snapshot JobSnapshot
}

// NewWsHandler creates a new WebSocket handler instance
func NewWsHandler(hub *Hub, auth AuthService) *WsHandler {
	return &WsHandler{hub: hub, auth: auth}
}

// WithJobSnapshot makes ?job= connections start with the job's current
// state, so a job that finished before the connection is still reported.
func (h *WsHandler) WithJobSnapshot(fn JobSnapshot) *WsHandler {
	h.snapshot = fn
	return h
}

// HandleWebSocket authenticates the upgrade request and streams import
// progress for the caller. ?job=<id> limits the stream to one job.
func (h *WsHandler) HandleWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := middleware.BearerToken(c)
	if tokenStr == "" {
		config.Logger.Warn("WebSocket connection attempted without access token")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	payload, err := h.auth.VerifyToken(tokenStr)
	if err != nil {
		config.Logger.Warn("Invalid access token for WebSocket", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	jobID := c.Query("job")
	if jobID != "" {
		if _, err := uuid.Parse(jobID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid job ID format",
			})
		}
	}

	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			ID:      uuid.New(),
			UserID:  payload.UserID,
			Conn:    conn,
			Hub:     h.hub,
			Send:    make(chan WebSocketMessage, 256),
			Threads: make(map[string]bool),
		}
		if jobID != "" {
			client.Threads[jobID] = true
		}

		h.hub.Register(client)

		config.Logger.Info("WebSocket client registered",
			zap.String("clientID", client.ID.String()),
			zap.String("userID", client.UserID.String()),
			zap.String("jobID", jobID),
		)

		if jobID != "" && h.snapshot != nil {
			h.sendSnapshot(client, uuid.MustParse(jobID))
		}

		go client.writePump()
		client.readPump()
	})(c)
}

// sendSnapshot runs after registration. Events published while it reads the
// job are queued on the client as well; receivers keep the furthest progress.
func (h *WsHandler) sendSnapshot(client *Client, jobID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg, err := h.snapshot(ctx, client.UserID, jobID)
	if err != nil {
		config.Logger.Warn("Could not load job snapshot",
			zap.String("clientID", client.ID.String()),
			zap.String("jobID", jobID.String()),
			zap.Error(err),
		)
		return
	}
	if msg == nil {
		return
	}
	select {
	case client.Send <- *msg:
	default:
	}
}

// readPump handles subscription changes until the connection closes.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				config.Logger.Warn("WebSocket unexpected close",
					zap.String("clientID", c.ID.String()),
					zap.Error(err),
				)
			}
			return
		}

		if _, err := uuid.Parse(msg.ThreadID); err != nil {
			c.sendError("threadId must be an import job id")
			continue
		}

		switch msg.Type {
		case MessageTypeSubscribe:
			c.SubscribeToThread(msg.ThreadID)
		case MessageTypeUnsubscribe:
			c.UnsubscribeFromThread(msg.ThreadID)
		default:
			c.sendError("Unknown message type: " + string(msg.Type))
		}
	}
}

// writePump sends queued messages and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				config.Logger.Debug("WebSocket write error",
					zap.String("clientID", c.ID.String()),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(message string) {
	select {
	case c.Send <- WebSocketMessage{Type: MessageTypeError, Payload: fiber.Map{"error": message}, Timestamp: time.Now()}:
	default:
	}
}
