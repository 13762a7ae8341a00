package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/chatline/internal/handlers/dto"
	"github.com/thereayou/chatline/internal/presence"
)

// PresenceHandler отдаёт текущий состав комнаты
type PresenceHandler struct {
	presence *presence.Presence
}

func NewPresenceHandler(p *presence.Presence) *PresenceHandler {
	return &PresenceHandler{presence: p}
}

// GetRoomPresence обрабатывает GET /chat/rooms/:roomID/presence
func (h *PresenceHandler) GetRoomPresence(c *gin.Context) {
	roomID := c.Param("roomID")

	users, err := h.presence.Members(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get presence"})
		return
	}

	c.JSON(http.StatusOK, dto.PresenceResponse{
		ChatID: roomID,
		Users:  users,
	})
}
