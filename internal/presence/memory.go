package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	connectionID string
	expiresAt    time.Time
}

// MemoryCache is an in-process presence cache with the same sliding-TTL
// semantics as the Redis implementation. Used when no Redis URL is
// configured and by tests.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[uuid.UUID]memoryEntry
}

// NewMemoryCache creates an in-memory presence cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]memoryEntry),
	}
}

func (c *MemoryCache) Upsert(_ context.Context, userID uuid.UUID, connectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.entries[userID]; ok && e.expiresAt.After(now) && e.connectionID == connectionID {
		e.expiresAt = now.Add(c.ttl)
		c.entries[userID] = e
		return nil
	}
	c.entries[userID] = memoryEntry{connectionID: connectionID, expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, userID uuid.UUID, connectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[userID]; ok && e.connectionID == connectionID {
		delete(c.entries, userID)
	}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, userID uuid.UUID) (string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok || !e.expiresAt.After(c.now()) {
		return "", false, nil
	}
	return e.connectionID, true, nil
}

func (c *MemoryCache) GetMany(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	conns := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		conn, ok, _ := c.Get(ctx, id)
		if ok {
			conns = append(conns, conn)
		}
	}
	return conns, nil
}
