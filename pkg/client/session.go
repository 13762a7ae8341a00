package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/chatline/internal/models"
	ws "github.com/thereayou/chatline/internal/websocket"
)

var ErrSessionClosed = errors.New("session is closed")

// Options настраивают сессию. Пустые UserID и Username генерируются.
type Options struct {
	ChatID   string
	UserID   string
	Username string

	// HTTPClient используется для загрузки вложений
	HTTPClient *http.Client
}

// Session — клиентская сторона relay: одно соединение, одна комната,
// локальная история на время жизни сессии.
type Session struct {
	chatID   string
	userID   string
	username string

	serverURL  string
	conn       *websocket.Conn
	httpClient *http.Client

	writeMu  sync.Mutex
	uploadMu sync.Mutex

	historyMu sync.Mutex
	history   []models.Message

	messages chan models.Message
	acks     chan models.Message

	closeOnce sync.Once
	done      chan struct{}
}

// Dial открывает соединение с relay и сразу входит в комнату
func Dial(serverURL string, opts Options) (*Session, error) {
	if opts.ChatID == "" {
		return nil, errors.New("chat id is required")
	}

	userID := opts.UserID
	if userID == "" {
		userID = uuid.New().String()
	}

	username := opts.Username
	if username == "" {
		username = fmt.Sprintf("User_%d", rand.Intn(10000))
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	wsURL, err := websocketURL(serverURL, userID, username)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	s := &Session{
		chatID:     opts.ChatID,
		userID:     userID,
		username:   username,
		serverURL:  strings.TrimRight(serverURL, "/"),
		conn:       conn,
		httpClient: httpClient,
		messages:   make(chan models.Message, 256),
		acks:       make(chan models.Message, 256),
		done:       make(chan struct{}),
	}

	if err := s.sendEvent(ws.EventJoinChat, opts.ChatID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join chat: %w", err)
	}

	go s.readLoop()

	return s, nil
}

func websocketURL(serverURL, userID, username string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("userId", userID)
	q.Set("username", username)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// UserID возвращает идентификатор отправителя этой сессии
func (s *Session) UserID() string {
	return s.userID
}

// Username возвращает отображаемое имя этой сессии
func (s *Session) Username() string {
	return s.username
}

// Messages — сообщения от других участников в порядке доставки
func (s *Session) Messages() <-chan models.Message {
	return s.messages
}

// Acks — подтверждения relay на собственные сообщения
func (s *Session) Acks() <-chan models.Message {
	return s.acks
}

// History возвращает копию локальной истории сессии
func (s *Session) History() []models.Message {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	history := make([]models.Message, len(s.history))
	copy(history, s.history)
	return history
}

// SendText отправляет текстовое сообщение. Пустой после trim текст
// игнорируется без ошибки.
func (s *Session) SendText(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	msg := s.newMessage(models.TypeText)
	msg.Content = content

	return s.publish(msg)
}

// SendFile сначала загружает документ через gateway и публикует
// сообщение только после получения ссылки
func (s *Session) SendFile(fileName, mimeType string, size int64, r io.Reader) error {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	uploaded, err := s.uploadFile(fileName, mimeType, r)
	if err != nil {
		return err
	}

	msg := s.newMessage(models.TypeFile)
	msg.Content = "Shared a file: " + uploaded.FileName
	msg.FileName = uploaded.FileName
	msg.FileSize = uploaded.FileSize
	msg.FileType = uploaded.FileType
	msg.FileURL = uploaded.FileURL
	if msg.FileName == "" {
		msg.FileName = fileName
	}
	if msg.FileType == "" {
		msg.FileType = mimeType
	}

	return s.publish(msg)
}

// SendVoice загружает запись и публикует голосовое сообщение
func (s *Session) SendVoice(r io.Reader, durationSeconds int) error {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	audioURL, err := s.uploadAudio(r)
	if err != nil {
		return err
	}

	msg := s.newMessage(models.TypeVoice)
	msg.Content = fmt.Sprintf("Voice message (%d:%02d)", durationSeconds/60, durationSeconds%60)
	msg.FileName = fmt.Sprintf("audio-%d.webm", time.Now().UnixMilli())
	msg.FileSize = fmt.Sprintf("%ds", durationSeconds)
	msg.AudioURL = audioURL

	return s.publish(msg)
}

// Close закрывает соединение сессии
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) newMessage(msgType models.MessageType) models.Message {
	return models.Message{
		ID:         uuid.New().String(),
		ChatID:     s.chatID,
		SenderID:   s.userID,
		SenderName: s.username,
		Type:       msgType,
		Timestamp:  time.Now(),
	}
}

// publish оптимистично добавляет сообщение в локальную историю и
// отдаёт его relay. При ошибке транспорта сообщение остаётся в
// истории, сессией можно пользоваться дальше.
func (s *Session) publish(msg models.Message) error {
	s.append(msg)

	if err := s.sendEvent(ws.EventSendMessage, &msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (s *Session) append(msg models.Message) {
	s.historyMu.Lock()
	s.history = append(s.history, msg)
	s.historyMu.Unlock()
}

func (s *Session) sendEvent(evType ws.EventType, data interface{}) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	ev := ws.Event{Type: evType}
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		ev.Data = jsonData
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteJSON(&ev)
}

func (s *Session) readLoop() {
	defer func() {
		close(s.messages)
		close(s.acks)
	}()

	for {
		var ev ws.Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("Session read error: %v", err)
			}
			return
		}

		switch ev.Type {
		case ws.EventPing:
			s.sendEvent(ws.EventPong, nil)

		case ws.EventReceiveMessage:
			var msg models.Message
			if err := json.Unmarshal(ev.Data, &msg); err != nil {
				log.Printf("Malformed message from relay: %v", err)
				continue
			}
			// Чужое сообщение попадает в историю ровно один раз
			s.append(msg)
			select {
			case s.messages <- msg:
			default:
				log.Printf("Session message buffer full, dropping %s", msg.ID)
			}

		case ws.EventMessageSent:
			var msg models.Message
			if err := json.Unmarshal(ev.Data, &msg); err != nil {
				continue
			}
			// Подтверждение не дублирует уже добавленную копию
			select {
			case s.acks <- msg:
			default:
			}

		case ws.EventError:
			log.Printf("Relay error: %s", string(ev.Data))
		}
	}
}
