package redis

import (
	"context"
	"encoding/json"
	"time"

	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/infra/metrics"
)

// SessionCache is the hot copy of a widget session. Postgres stays the
// store of record; the cache only saves the GET /state hot path a round
// trip to the database.
type SessionCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionCache(client RedisClient, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionCache{client: client, ttl: ttl}
}

func (c *SessionCache) key(profileID string) string {
	return "widget_session:" + profileID
}

func (c *SessionCache) Store(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(session.ProfileID), data, c.ttl)
}

func (c *SessionCache) Get(ctx context.Context, profileID string) (*model.Session, error) {
	data, err := c.client.Get(ctx, c.key(profileID))
	if err != nil {
		if IsNil(err) {
			metrics.IncCacheRequest("session", "miss")
		} else {
			metrics.IncCacheRequest("session", "error")
		}
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		metrics.IncCacheRequest("session", "error")
		return nil, err
	}
	metrics.IncCacheRequest("session", "hit")
	return &session, nil
}

func (c *SessionCache) Delete(ctx context.Context, profileID string) error {
	return c.client.Del(ctx, c.key(profileID))
}

func (c *SessionCache) Extend(ctx context.Context, profileID string) error {
	return c.client.Expire(ctx, c.key(profileID), c.ttl)
}
