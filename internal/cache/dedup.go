package cache

import (
	"context"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"
)

// DedupCache keeps recently seen messages by id so later lookups (quoting,
// command context) avoid a network round-trip. Entries are not expired
// individually: the whole map is cleared on a fixed interval.
type DedupCache struct {
	mu   sync.RWMutex
	msgs map[string]*events.Message
}

// NewDedupCache creates an empty dedup cache.
func NewDedupCache() *DedupCache {
	return &DedupCache{msgs: make(map[string]*events.Message)}
}

// Put stores a message by id, replacing any previous payload.
func (c *DedupCache) Put(id string, msg *events.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs[id] = msg
}

// Get returns the message stored under id, if any.
func (c *DedupCache) Get(id string) (*events.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.msgs[id]
	return msg, ok
}

// Clear drops all entries.
func (c *DedupCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = make(map[string]*events.Message)
}

// Len returns the number of cached messages.
func (c *DedupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// StartJanitor clears the cache every interval until ctx is cancelled.
// Run as a goroutine.
func (c *DedupCache) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Clear()
		}
	}
}
