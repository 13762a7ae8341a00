package models

import (
	"errors"
	"strings"
	"time"
)

// MessageType определяет вид сообщения
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeVoice MessageType = "voice"
	TypeFile  MessageType = "file"
)

var (
	ErrEmptyChatID       = errors.New("message chatId is empty")
	ErrEmptyContent      = errors.New("text message content is empty")
	ErrUnknownType       = errors.New("unknown message type")
	ErrMissingLocator    = errors.New("attachment message has no url")
	ErrUnexpectedLocator = errors.New("text message must not carry an attachment url")
)

// Message — сообщение чата в том виде, в котором оно ходит по сети.
// Имена JSON-полей зафиксированы контрактом с фронтендом.
// После создания не изменяется.
type Message struct {
	ID         string      `json:"id"`
	ChatID     string      `json:"chatId"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName,omitempty"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`

	// Поля вложений, только для voice/file
	FileName string `json:"fileName,omitempty"`
	FileSize string `json:"fileSize,omitempty"`
	FileType string `json:"fileType,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// Validate проверяет инварианты сообщения перед ретрансляцией
func (m *Message) Validate() error {
	if m.ChatID == "" {
		return ErrEmptyChatID
	}

	switch m.Type {
	case TypeText:
		if strings.TrimSpace(m.Content) == "" {
			return ErrEmptyContent
		}
		if m.AudioURL != "" || m.FileURL != "" {
			return ErrUnexpectedLocator
		}
	case TypeVoice:
		if m.AudioURL == "" {
			return ErrMissingLocator
		}
	case TypeFile:
		if m.FileURL == "" {
			return ErrMissingLocator
		}
	default:
		return ErrUnknownType
	}

	return nil
}
