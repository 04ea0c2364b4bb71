// Package cache provides the short-lived in-memory caches shared by both
// sessions: group metadata with write-time TTL expiry and a message dedup
// map cleared wholesale on a timer.
package cache

import (
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types"
)

// Clock returns the current time. Injectable so TTL logic is testable
// without real timers.
type Clock func() time.Time

type metaEntry struct {
	info     *types.GroupInfo
	storedAt time.Time
}

// GroupCache caches group metadata with a fixed TTL measured from the last
// write. Safe for concurrent use.
type GroupCache struct {
	ttl     time.Duration
	now     Clock
	mu      sync.RWMutex
	entries map[string]metaEntry
}

// NewGroupCache creates a group metadata cache. A nil clock uses time.Now.
func NewGroupCache(ttl time.Duration, now Clock) *GroupCache {
	if now == nil {
		now = time.Now
	}
	return &GroupCache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]metaEntry),
	}
}

// Get returns the cached metadata for a group, or false if absent or stale.
func (c *GroupCache) Get(groupID string) (*types.GroupInfo, bool) {
	c.mu.RLock()
	entry, ok := c.entries[groupID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		return nil, false
	}
	return entry.info, true
}

// Set stores metadata for a group, resetting its TTL.
func (c *GroupCache) Set(groupID string, info *types.GroupInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[groupID] = metaEntry{info: info, storedAt: c.now()}
}

// Delete drops a group's entry, forcing the next Get to miss.
func (c *GroupCache) Delete(groupID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, groupID)
}

// Len returns the number of entries, including stale ones not yet rewritten.
func (c *GroupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
