// Package presence maps a user identity to its live connection identity.
// Entries carry a sliding TTL; the cache is a best-effort routing aid, not
// a presence guarantee.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the sliding expiry renewed on every registration.
const DefaultTTL = 6 * time.Minute

// Cache is the presence directory contract. GetMany returns only the
// subset of users currently present; misses are skipped, never errors.
type Cache interface {
	Upsert(ctx context.Context, userID uuid.UUID, connectionID string) error
	Remove(ctx context.Context, userID uuid.UUID, connectionID string) error
	Get(ctx context.Context, userID uuid.UUID) (string, bool, error)
	GetMany(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
}

// RedisCache stores presence entries as string keys with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a presence cache on an existing Redis client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func presenceKey(userID uuid.UUID) string {
	return fmt.Sprintf("presence:%s", userID)
}

// Upsert records the user's live connection. A repeated registration for
// the same connection renews the TTL instead of rewriting the value, so
// rapid duplicate registrations never flap the expiry clock backwards.
func (c *RedisCache) Upsert(ctx context.Context, userID uuid.UUID, connectionID string) error {
	key := presenceKey(userID)

	current, err := c.client.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err == nil && current == connectionID {
		return c.client.Expire(ctx, key, c.ttl).Err()
	}
	return c.client.Set(ctx, key, connectionID, c.ttl).Err()
}

// Remove evicts the entry, but only while it still names the given
// connection; a newer registration from another socket is left intact.
func (c *RedisCache) Remove(ctx context.Context, userID uuid.UUID, connectionID string) error {
	key := presenceKey(userID)

	current, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if current != connectionID {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// Get returns the live connection id for the user, if any.
func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	val, err := c.client.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// GetMany resolves the live connections of the given users. Users without
// an entry are silently skipped.
func (c *RedisCache) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	conns := make([]string, 0, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			conns = append(conns, s)
		}
	}
	return conns, nil
}
