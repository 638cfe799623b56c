package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/miku1hhhh/sina-dl/internal/app"
)

// EventWebSocketHandler streams pipeline events (progress, found items,
// status changes, log lines) to websocket clients
type EventWebSocketHandler struct {
	hub    *app.EventHub
	logger *zap.Logger
}

// NewEventWebSocketHandler creates a new event stream handler
func NewEventWebSocketHandler(hub *app.EventHub, logger *zap.Logger) *EventWebSocketHandler {
	return &EventWebSocketHandler{hub: hub, logger: logger}
}

// HandleWebSocket handles GET /api/v1/events?session_id=
func (h *EventWebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe(c.Query("session_id"), 256)
	defer unsubscribe()

	ctx, cancel := contextWithClose(c, conn)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(conn, e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// contextWithClose returns a context that ends when the client goes away.
// The read loop also services control frames.
func contextWithClose(c *gin.Context, conn *websocket.Conn) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return ctx, cancel
}
