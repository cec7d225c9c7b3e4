package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"SMSDesk/module/inbox/model"
)

// MessageCache keeps the provider's message list per phone number for a
// short TTL so repeated inbox renders don't hammer the provider API.
// Redis is a cache here, never the source of truth.
type MessageCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewMessageCache(rdb *redis.Client, ttl time.Duration) *MessageCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &MessageCache{RDB: rdb, TTL: ttl}
}

func msgKey(number string) string { return "sms:msgs:" + number }

// Get returns the cached list, or (nil, false) on miss or any redis
// error. Cache errors are never surfaced; the caller just refetches.
func (c *MessageCache) Get(ctx context.Context, number string) ([]model.Message, bool) {
	raw, err := c.RDB.Get(ctx, msgKey(number)).Bytes()
	if err != nil {
		return nil, false
	}
	var out []model.Message
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *MessageCache) Put(ctx context.Context, number string, msgs []model.Message) {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	_ = c.RDB.Set(ctx, msgKey(number), raw, c.TTL).Err()
}

// Invalidate drops the entry, used right after a send so the next
// render refetches and shows the new message.
func (c *MessageCache) Invalidate(ctx context.Context, number string) {
	_ = c.RDB.Del(ctx, msgKey(number)).Err()
}
