package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// EventType определяет типы событий протокола
type EventType string

const (
	// Системные типы
	EventPing EventType = "ping"
	EventPong EventType = "pong"

	// Клиент -> сервер
	EventJoinChat    EventType = "join-chat"
	EventSendMessage EventType = "send-message"

	// Сервер -> клиент
	EventReceiveMessage EventType = "receive-message"
	EventMessageSent    EventType = "message-sent"
	EventError          EventType = "error"
)

// Event — конверт протокола в обе стороны
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	UserID   string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
	Rooms    map[string]bool
	Hub      *Hub
	mu       sync.RWMutex
}

// PresenceNotifier получает уведомления о членстве в комнатах.
// Вызовы выполняются последовательно одним воркером в порядке
// событий, медленный вызов не задерживает сам hub.
type PresenceNotifier interface {
	ClientJoined(roomID, userID string)
	ClientLeft(roomID, userID string)
}

type presenceEvent struct {
	joined bool
	roomID string
	userID string
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты в комнатах; идентификатор комнаты — непрозрачный токен
	rooms map[string]map[uuid.UUID]*Client

	// Счётчик соединений на заявленный userID в комнате: presence
	// оперирует пользователями, а не соединениями
	roomUsers map[string]map[string]int

	// Каналы для регистрации/отмены регистрации
	register   chan *Client
	unregister chan *Client

	presence   PresenceNotifier
	presenceCh chan presenceEvent

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub. presence может быть nil.
func NewHub(presence PresenceNotifier) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[string]map[uuid.UUID]*Client),
		roomUsers:  make(map[string]map[string]int),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		presence:   presence,
		ctx:        ctx,
		cancel:     cancel,
	}

	if presence != nil {
		h.presenceCh = make(chan presenceEvent, 256)
		go h.presenceLoop()
	}

	return h
}

// presenceLoop применяет события членства строго в порядке их
// возникновения, чтобы вход и мгновенный выход не могли обогнать
// друг друга в зеркале presence
func (h *Hub) presenceLoop() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-h.presenceCh:
			if ev.joined {
				h.presence.ClientJoined(ev.roomID, ev.userID)
			} else {
				h.presence.ClientLeft(ev.roomID, ev.userID)
			}
		}
	}
}

// queuePresence вызывается под h.mu, чтобы порядок событий в очереди
// совпадал с порядком изменений членства
func (h *Hub) queuePresence(ev presenceEvent) {
	if h.presenceCh == nil {
		return
	}

	select {
	case h.presenceCh <- ev:
	default:
		log.Printf("Presence queue full, dropping event for room %s", ev.roomID)
	}
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.Send)
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[string]map[uuid.UUID]*Client)
	h.roomUsers = make(map[string]map[string]int)
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	log.Printf("Client registered: %s (User: %s)", client.ID, client.UserID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		// Удаляем из всех комнат, даже при обрыве соединения
		for roomID := range client.Rooms {
			h.removeFromRoomUnsafe(client, roomID)
		}

		delete(h.clients, client.ID)
		close(client.Send)

		log.Printf("Client unregistered: %s (User: %s)", client.ID, client.UserID)
	}
}

// JoinRoom добавляет клиента в комнату. Комната существует с момента
// первого входа, идемпотентно при повторном входе. Пустой
// идентификатор молча игнорируется: это непрозрачный токен, а не
// предмет валидации.
func (h *Hub) JoinRoom(client *Client, roomID string) {
	if roomID == "" {
		return
	}

	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}

	_, already := h.rooms[roomID][client.ID]
	h.rooms[roomID][client.ID] = client

	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()

	if !already {
		users, ok := h.roomUsers[roomID]
		if !ok {
			users = make(map[string]int)
			h.roomUsers[roomID] = users
		}
		users[client.UserID]++

		// Presence узнаёт о пользователе на первом его соединении
		if users[client.UserID] == 1 {
			h.queuePresence(presenceEvent{joined: true, roomID: roomID, userID: client.UserID})
		}
	}
	h.mu.Unlock()

	if !already {
		log.Printf("Client %s joined chat %s", client.ID, roomID)
	}
}

// LeaveRoom удаляет клиента из комнаты
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomUnsafe(client, roomID)
}

func (h *Hub) removeFromRoomUnsafe(client *Client, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}

	if _, ok := room[client.ID]; !ok {
		return
	}

	delete(room, client.ID)
	client.mu.Lock()
	delete(client.Rooms, roomID)
	client.mu.Unlock()

	if len(room) == 0 {
		delete(h.rooms, roomID)
	}

	if users, ok := h.roomUsers[roomID]; ok {
		users[client.UserID]--
		// Пользователь покидает комнату с последним своим соединением
		if users[client.UserID] <= 0 {
			delete(users, client.UserID)
			h.queuePresence(presenceEvent{joined: false, roomID: roomID, userID: client.UserID})
		}
		if len(users) == 0 {
			delete(h.roomUsers, roomID)
		}
	}
}

// Members возвращает идентификаторы соединений в комнате.
// Неизвестная комната — просто пустая комната, не ошибка.
func (h *Hub) Members(roomID string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[roomID]
	members := make([]uuid.UUID, 0, len(room))
	for id := range room {
		members = append(members, id)
	}
	return members
}

// BroadcastToRoom отправляет данные всем в комнате, кроме excludeID.
// Доставка best-effort: переполненная очередь клиента пропускается.
func (h *Hub) BroadcastToRoom(roomID string, data []byte, excludeID uuid.UUID) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room, ok := h.rooms[roomID]; ok {
		for _, client := range room {
			if client.ID != excludeID {
				select {
				case client.Send <- data:
				default:
					log.Printf("Client %s send channel full", client.ID)
				}
			}
		}
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(Event{Type: EventPing})
	if err != nil {
		return
	}

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// ClientCount возвращает число активных соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
