package presence

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "presence:room:"

// Presence зеркалирует состав комнат в redis, чтобы его можно было
// запрашивать по HTTP. Сбои здесь не влияют на доставку сообщений.
type Presence struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Presence {
	return &Presence{rdb: rdb}
}

// ClientJoined реализует websocket.PresenceNotifier
func (p *Presence) ClientJoined(roomID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.rdb.SAdd(ctx, keyPrefix+roomID, userID).Err(); err != nil {
		log.Printf("Presence join failed for room %s: %v", roomID, err)
	}
}

// ClientLeft реализует websocket.PresenceNotifier
func (p *Presence) ClientLeft(roomID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.rdb.SRem(ctx, keyPrefix+roomID, userID).Err(); err != nil {
		log.Printf("Presence leave failed for room %s: %v", roomID, err)
	}
}

// Members возвращает заявленные идентификаторы участников комнаты
func (p *Presence) Members(ctx context.Context, roomID string) ([]string, error) {
	return p.rdb.SMembers(ctx, keyPrefix+roomID).Result()
}
