package runtime

import (
	"errors"
	"sync"
	"time"
)

// CacheEntry is a compiled template with the modification times of the
// files it was compiled from.
type CacheEntry struct {
	Template     *Template
	LoadedAt     time.Time
	ExpiresAt    time.Time
	Dependencies map[string]time.Time
}

// IsExpired checks if the cache entry has outlived the cache TTL
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// IsValid reports whether the entry is unexpired and none of its source
// files changed since it was compiled.
func (e *CacheEntry) IsValid(loader Loader, now time.Time) bool {
	if e.IsExpired(now) {
		return false
	}
	if loader == nil {
		return true
	}

	for name, compiled := range e.Dependencies {
		current, err := getModTime(loader, name)
		if err != nil || current.IsZero() || !current.Equal(compiled) {
			return false
		}
	}
	return true
}

// CacheStats counts cache lookups
type CacheStats struct {
	Hits      int
	Misses    int
	Evictions int
}

// TemplateCache maps template names to compiled templates. It is safe for
// concurrent use.
type TemplateCache struct {
	entries map[string]*CacheEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	maxSize int
	stats   CacheStats
	now     func() time.Time
}

// NewTemplateCache creates a cache. A zero ttl never expires entries; a
// maxSize of zero or less is unbounded.
func NewTemplateCache(ttl time.Duration, maxSize int) *TemplateCache {
	return &TemplateCache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached template if it is still valid for loader
func (c *TemplateCache) Get(name string, loader Loader) (*Template, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[name]
	c.mutex.RUnlock()

	if ok && entry.IsValid(loader, c.now()) {
		c.count(func(s *CacheStats) { s.Hits++ })
		return entry.Template, true
	}
	if ok {
		c.Delete(name)
	}
	c.count(func(s *CacheStats) { s.Misses++ })
	return nil, false
}

func (c *TemplateCache) count(update func(*CacheStats)) {
	c.mutex.Lock()
	update(&c.stats)
	c.mutex.Unlock()
}

// Set stores a compiled template together with its source modification times
func (c *TemplateCache) Set(name string, template *Template, dependencies map[string]time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, exists := c.entries[name]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := c.now()
	entry := &CacheEntry{Template: template, LoadedAt: now}
	if c.ttl > 0 {
		entry.ExpiresAt = now.Add(c.ttl)
	}
	if len(dependencies) > 0 {
		entry.Dependencies = make(map[string]time.Time, len(dependencies))
		for k, v := range dependencies {
			entry.Dependencies[k] = v
		}
	}
	c.entries[name] = entry
}

// Delete removes a template from the cache
func (c *TemplateCache) Delete(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, name)
}

// Clear removes all entries
func (c *TemplateCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*CacheEntry)
}

// Invalidate removes the templates compiled from the given source name
func (c *TemplateCache) Invalidate(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, entry := range c.entries {
		if _, depends := entry.Dependencies[name]; depends || key == name {
			delete(c.entries, key)
		}
	}
}

// SetTTL changes the lifetime of entries stored from now on
func (c *TemplateCache) SetTTL(ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.ttl = ttl
}

// Size returns the current number of cached entries
func (c *TemplateCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// Stats returns the lookup counters
func (c *TemplateCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats
}

// evictOldest removes the entry loaded first. The caller holds the lock.
func (c *TemplateCache) evictOldest() {
	var oldestName string
	var oldestTime time.Time

	for name, entry := range c.entries {
		if oldestName == "" || entry.LoadedAt.Before(oldestTime) {
			oldestName = name
			oldestTime = entry.LoadedAt
		}
	}

	if oldestName != "" {
		delete(c.entries, oldestName)
		c.stats.Evictions++
	}
}

// modTimeLoader is implemented by loaders that can detect changed sources
type modTimeLoader interface {
	TemplateModTime(name string) (time.Time, error)
}

func getModTime(loader Loader, name string) (time.Time, error) {
	if mt, ok := loader.(modTimeLoader); ok {
		return mt.TemplateModTime(name)
	}
	return time.Time{}, errors.New("loader does not support modification times")
}
