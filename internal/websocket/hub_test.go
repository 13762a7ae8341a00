package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestClient(hub *Hub, userID string) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Send:   make(chan []byte, 64),
		Rooms:  make(map[string]bool),
		Hub:    hub,
	}
}

func recvOrNil(c *Client) []byte {
	select {
	case data := <-c.Send:
		return data
	default:
		return nil
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestJoinRoomIdempotent(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "u1")

	hub.JoinRoom(client, "room-a")
	hub.JoinRoom(client, "room-a")

	if got := len(hub.Members("room-a")); got != 1 {
		t.Errorf("Members() = %d entries, want 1", got)
	}

	if !client.IsInRoom("room-a") {
		t.Error("client should be in room-a")
	}
}

func TestJoinRoomEmptyIDIgnored(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "u1")

	hub.JoinRoom(client, "")

	if len(client.Rooms) != 0 {
		t.Errorf("client rooms = %v, want none", client.Rooms)
	}
	if got := len(hub.Members("")); got != 0 {
		t.Errorf("Members(\"\") = %d entries, want 0", got)
	}
}

func TestMembersUnknownRoom(t *testing.T) {
	hub := NewHub(nil)

	members := hub.Members("never-joined")
	if members == nil {
		t.Fatal("Members() returned nil, want empty slice")
	}
	if len(members) != 0 {
		t.Errorf("Members() = %d entries, want 0", len(members))
	}
}

func TestBroadcastRoomIsolation(t *testing.T) {
	hub := NewHub(nil)

	inA := newTestClient(hub, "a")
	alsoInA := newTestClient(hub, "a2")
	onlyInB := newTestClient(hub, "b")

	hub.JoinRoom(inA, "room-a")
	hub.JoinRoom(alsoInA, "room-a")
	hub.JoinRoom(onlyInB, "room-b")

	hub.BroadcastToRoom("room-a", []byte("hello"), inA.ID)

	if got := recvOrNil(alsoInA); string(got) != "hello" {
		t.Errorf("room member got %q, want %q", got, "hello")
	}

	if got := recvOrNil(onlyInB); got != nil {
		t.Errorf("member of another room got %q, want nothing", got)
	}
}

func TestBroadcastExcludesOrigin(t *testing.T) {
	hub := NewHub(nil)

	origin := newTestClient(hub, "origin")
	peer := newTestClient(hub, "peer")

	hub.JoinRoom(origin, "room-a")
	hub.JoinRoom(peer, "room-a")

	hub.BroadcastToRoom("room-a", []byte("msg"), origin.ID)

	if got := recvOrNil(origin); got != nil {
		t.Errorf("origin received own broadcast: %q", got)
	}
	if got := recvOrNil(peer); string(got) != "msg" {
		t.Errorf("peer got %q, want %q", got, "msg")
	}
}

func TestBroadcastOrderingPerRoom(t *testing.T) {
	hub := NewHub(nil)

	sender := newTestClient(hub, "sender")
	receiver := newTestClient(hub, "receiver")

	hub.JoinRoom(sender, "room-a")
	hub.JoinRoom(receiver, "room-a")

	payloads := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, p := range payloads {
		hub.BroadcastToRoom("room-a", []byte(p), sender.ID)
	}

	for _, want := range payloads {
		if got := recvOrNil(receiver); string(got) != want {
			t.Fatalf("out of order: got %q, want %q", got, want)
		}
	}
}

func TestBroadcastEmptyRoom(t *testing.T) {
	hub := NewHub(nil)

	// Доставка в пустую или несуществующую комнату — не ошибка
	hub.BroadcastToRoom("empty-room", []byte("into the void"), uuid.New())
}

func TestBroadcastSkipsFullQueue(t *testing.T) {
	hub := NewHub(nil)

	slow := &Client{
		ID:    uuid.New(),
		Send:  make(chan []byte), // без буфера, всегда переполнен
		Rooms: make(map[string]bool),
		Hub:   hub,
	}
	fast := newTestClient(hub, "fast")

	hub.JoinRoom(slow, "room-a")
	hub.JoinRoom(fast, "room-a")

	done := make(chan struct{})
	go func() {
		hub.BroadcastToRoom("room-a", []byte("msg"), uuid.New())
		close(done)
	}()

	// Зависший клиент не должен задерживать рассылку остальным
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on unresponsive client")
	}

	if got := recvOrNil(fast); string(got) != "msg" {
		t.Errorf("fast client got %q, want %q", got, "msg")
	}
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := newTestClient(hub, "u1")
	hub.Register(client)

	hub.JoinRoom(client, "room-a")
	hub.JoinRoom(client, "room-b")

	hub.Unregister(client)

	eventually(t, func() bool {
		return len(hub.Members("room-a")) == 0 && len(hub.Members("room-b")) == 0
	}, "unregistered client still present in room membership")

	eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, "unregistered client still counted")
}

// recordingPresence фиксирует события членства; joinDelay имитирует
// медленный бэкенд presence
type recordingPresence struct {
	mu        sync.Mutex
	members   map[string]map[string]bool
	joins     int
	leaves    int
	joinDelay time.Duration
}

func newRecordingPresence(joinDelay time.Duration) *recordingPresence {
	return &recordingPresence{
		members:   make(map[string]map[string]bool),
		joinDelay: joinDelay,
	}
}

func (p *recordingPresence) ClientJoined(roomID, userID string) {
	time.Sleep(p.joinDelay)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[roomID] == nil {
		p.members[roomID] = make(map[string]bool)
	}
	p.members[roomID][userID] = true
	p.joins++
}

func (p *recordingPresence) ClientLeft(roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members[roomID], userID)
	p.leaves++
}

func (p *recordingPresence) has(roomID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[roomID][userID]
}

func (p *recordingPresence) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.joins, p.leaves
}

func TestPresenceSlowJoinThenLeave(t *testing.T) {
	// Медленный ClientJoined не должен позволить ClientLeft обогнать
	// себя: иначе в зеркале presence навсегда остаётся ушедший
	// пользователь
	pres := newRecordingPresence(50 * time.Millisecond)
	hub := NewHub(pres)
	defer hub.Stop()

	client := newTestClient(hub, "u1")
	hub.JoinRoom(client, "room-a")
	hub.LeaveRoom(client, "room-a")

	eventually(t, func() bool {
		joins, leaves := pres.counts()
		return joins == 1 && leaves == 1
	}, "presence did not process both events")

	if pres.has("room-a", "u1") {
		t.Error("departed user still present in presence mirror")
	}
}

func TestPresenceTracksUsersNotConnections(t *testing.T) {
	pres := newRecordingPresence(0)
	hub := NewHub(pres)
	defer hub.Stop()

	first := newTestClient(hub, "u1")
	second := newTestClient(hub, "u1")
	hub.JoinRoom(first, "room-a")
	hub.JoinRoom(second, "room-a")

	eventually(t, func() bool {
		return pres.has("room-a", "u1")
	}, "user never appeared in presence mirror")

	// Второе соединение того же пользователя не даёт второго события
	if joins, _ := pres.counts(); joins != 1 {
		t.Errorf("joins = %d, want 1", joins)
	}

	// Пока живо хотя бы одно соединение, пользователь остаётся
	hub.LeaveRoom(first, "room-a")
	time.Sleep(50 * time.Millisecond)
	if _, leaves := pres.counts(); leaves != 0 {
		t.Errorf("leaves = %d after first disconnect, want 0", leaves)
	}
	if !pres.has("room-a", "u1") {
		t.Error("user dropped from presence while still connected")
	}

	hub.LeaveRoom(second, "room-a")
	eventually(t, func() bool {
		_, leaves := pres.counts()
		return leaves == 1
	}, "presence never saw the final disconnect")

	if pres.has("room-a", "u1") {
		t.Error("user still present after last disconnect")
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	hub := NewHub(nil)

	const n = 50
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newTestClient(hub, "u")
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.JoinRoom(c, "room-a")
			hub.JoinRoom(c, "room-a")
		}(c)
	}
	wg.Wait()

	if got := len(hub.Members("room-a")); got != n {
		t.Fatalf("Members() = %d, want %d", got, n)
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			hub.LeaveRoom(c, "room-a")
		}(c)
	}
	wg.Wait()

	if got := len(hub.Members("room-a")); got != 0 {
		t.Fatalf("Members() after leave = %d, want 0", got)
	}
}
