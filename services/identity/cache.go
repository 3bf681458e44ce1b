package identity

import (
	"container/list"
	"sync"
	"time"

	"github.com/amoreldmija/hospital/models"
)

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	uid        string
	profile    models.UserProfile
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// ProfileCache is an in-memory LRU cache with TTL for profile documents.
// A cache with a non-positive size stores nothing.
type ProfileCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry // Key: uid
	lruList *list.List             // Doubly linked list for LRU tracking
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

// NewProfileCache creates a new ProfileCache with specified max size and TTL
func NewProfileCache(maxSize int, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns a copy of the cached profile for uid.
func (c *ProfileCache) Get(uid string) (*models.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[uid]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(uid)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++

	profile := entry.profile
	return &profile, true
}

// Set stores a copy of profile under its uid.
func (c *ProfileCache) Set(profile *models.UserProfile) {
	if c.maxSize <= 0 || profile == nil || profile.UID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[profile.UID]; exists {
		entry.profile = *profile
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		uid:        profile.UID,
		profile:    *profile,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(profile.UID)
	c.entries[profile.UID] = entry
}

// Invalidate removes the entry for uid
func (c *ProfileCache) Invalidate(uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(uid)
}

// Clear removes all entries from the cache
func (c *ProfileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns cache statistics
func (c *ProfileCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *ProfileCache) removeEntry(uid string) {
	if entry, exists := c.entries[uid]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, uid)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *ProfileCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	uid := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, uid)
}

// CleanupExpired removes all expired entries and returns how many were removed
func (c *ProfileCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for uid, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			c.removeEntry(uid)
			removed++
		}
	}
	return removed
}

// StartCleanupWorker periodically drops expired entries until stopCh closes
func (c *ProfileCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CleanupExpired()
			case <-stopCh:
				return
			}
		}
	}()
}
