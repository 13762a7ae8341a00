package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/chatline/internal/models"
	"github.com/thereayou/chatline/internal/websocket"
)

// MessageHandler ретранслирует сообщения между участниками комнаты
type MessageHandler struct {
	hub *websocket.Hub
}

func NewMessageHandler(hub *websocket.Hub) *MessageHandler {
	return &MessageHandler{
		hub: hub,
	}
}

func (h *MessageHandler) HandleEvent(client *websocket.Client, ev *websocket.Event) error {
	switch ev.Type {
	case websocket.EventJoinChat:
		return h.handleJoinChat(client, ev)

	case websocket.EventSendMessage:
		return h.handleSendMessage(client, ev)

	default:
		log.Printf("Unknown event type: %s", ev.Type)
		return nil
	}
}

// joinPayload поддерживает обе формы: просто строка с идентификатором
// комнаты либо объект {"chatId": "..."}
func parseJoinPayload(data json.RawMessage) (string, error) {
	var chatID string
	if err := json.Unmarshal(data, &chatID); err == nil {
		return chatID, nil
	}

	var payload struct {
		ChatID string `json:"chatId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", websocket.ErrInvalidEvent
	}
	return payload.ChatID, nil
}

func (h *MessageHandler) handleJoinChat(client *websocket.Client, ev *websocket.Event) error {
	chatID, err := parseJoinPayload(ev.Data)
	if err != nil {
		return err
	}

	h.hub.JoinRoom(client, chatID)
	return nil
}

// handleSendMessage доставляет сообщение всем в комнате, кроме
// отправителя, и возвращает отправителю подтверждение.
// Отправитель не обязан состоять в комнате; личность берётся со слов
// клиента и не проверяется.
func (h *MessageHandler) handleSendMessage(client *websocket.Client, ev *websocket.Event) error {
	var msg models.Message
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		return websocket.ErrInvalidEvent
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SenderID == "" {
		msg.SenderID = client.UserID
	}
	if msg.SenderName == "" {
		msg.SenderName = client.Username
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	if err := msg.Validate(); err != nil {
		return err
	}

	peerEvent, err := marshalEvent(websocket.EventReceiveMessage, &msg)
	if err != nil {
		return err
	}

	// Пустая комната — не ошибка: подтверждение всё равно уходит
	h.hub.BroadcastToRoom(msg.ChatID, peerEvent, client.ID)

	return client.SendEvent(websocket.EventMessageSent, &msg)
}

func marshalEvent(evType websocket.EventType, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return json.Marshal(websocket.Event{
		Type: evType,
		Data: jsonData,
	})
}
