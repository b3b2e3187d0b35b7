package statemanager

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend persists a Session's key/value data to Redis so it can
// survive a single node-host process restart in a multi-process
// deployment (the in-memory Manager above is the default and matches
// the original implementation's behavior; this is additive, not a
// replacement). Keys are namespaced {prefix}:{node}:{session_id}.
type RedisBackend struct {
	client *redis.Client
	prefix string
	node   string
	ttl    time.Duration
}

// NewRedisBackend constructs a RedisBackend scoped to one node.
func NewRedisBackend(client *redis.Client, prefix, nodeName string, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisBackend{client: client, prefix: prefix, node: nodeName, ttl: ttl}
}

func (b *RedisBackend) key(sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, b.node, sessionID)
}

// Save snapshots s's data map to Redis with the backend's TTL.
func (b *RedisBackend) Save(ctx context.Context, s *Session) error {
	s.mu.RLock()
	raw, err := json.Marshal(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("statemanager: marshal session %q: %w", s.ID, err)
	}
	return b.client.Set(ctx, b.key(s.ID), raw, b.ttl).Err()
}

// Load restores a session's data map from Redis into a freshly created
// Session, or returns (nil, false) if no snapshot exists.
func (b *RedisBackend) Load(ctx context.Context, sessionID string, now time.Time) (*Session, bool, error) {
	raw, err := b.client.Get(ctx, b.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("statemanager: load session %q: %w", sessionID, err)
	}
	s := newSession(sessionID, now)
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, false, fmt.Errorf("statemanager: unmarshal session %q: %w", sessionID, err)
	}
	return s, true, nil
}

// Delete removes a session's snapshot.
func (b *RedisBackend) Delete(ctx context.Context, sessionID string) error {
	return b.client.Del(ctx, b.key(sessionID)).Err()
}
