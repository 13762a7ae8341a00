package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/chatline/internal/middleware"
	ws "github.com/thereayou/chatline/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub            *ws.Hub
	messageHandler *MessageHandler
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(hub *ws.Hub, messageHandler *MessageHandler) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageHandler: messageHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Проверить origin в prod
				return true
			},
		},
	}
}

// HandleWebSocket обрабатывает WebSocket соединения
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	username := c.GetString(middleware.UsernameKey)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, userID, username)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.messageHandler)
}
