package mapview

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of entries a default ResourceCache holds.
const DefaultCacheSize = 1024

// ResourceCache is a bounded, goroutine-safe LRU of decoded resources
// (textures and fonts) shared by every layer of a viewport. Keys are
// namespaced by the caller, for example "tile/<layer>/<z>/<x>/<y>".
type ResourceCache struct {
	lru *lru.Cache[string, any]
}

// NewResourceCache returns a cache holding at most size entries
// (DefaultCacheSize when size <= 0).
func NewResourceCache(size int) *ResourceCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, any](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &ResourceCache{lru: c}
}

// Get returns the value stored under key.
func (c *ResourceCache) Get(key string) (any, bool) { return c.lru.Get(key) }

// Contains reports whether key is cached without touching its recency.
func (c *ResourceCache) Contains(key string) bool { return c.lru.Contains(key) }

// Add stores v under key, evicting the least recently used entry when full.
func (c *ResourceCache) Add(key string, v any) { c.lru.Add(key, v) }

// Remove deletes key.
func (c *ResourceCache) Remove(key string) { c.lru.Remove(key) }

// Len returns the number of cached entries.
func (c *ResourceCache) Len() int { return c.lru.Len() }

// Purge empties the cache.
func (c *ResourceCache) Purge() { c.lru.Purge() }

// Texture returns the texture stored under key.
func (c *ResourceCache) Texture(key string) (*Texture, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	t, ok := v.(*Texture)
	return t, ok
}

// Font returns the font data stored under key.
func (c *ResourceCache) Font(key string) ([]byte, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

// RemovePrefix deletes every key starting with prefix and returns the
// removed values.
func (c *ResourceCache) RemovePrefix(prefix string) []any {
	var removed []any
	for _, k := range c.lru.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if v, ok := c.lru.Peek(k); ok {
			removed = append(removed, v)
		}
		c.lru.Remove(k)
	}
	return removed
}
