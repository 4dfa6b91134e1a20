// Package memo holds previously produced rasters keyed by content and the
// settings that shaped them.
package memo

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies a raster. Content is the hash of the normalized SVG text;
// Settings is the hash of every setting that changes the pixels produced.
type Key struct {
	Content  string
	Settings string
}

// Entry is a cached raster.
type Entry struct {
	PNG    []byte
	Width  int
	Height int
}

// Cache is a fixed-capacity LRU. A hit on Get promotes the entry to most
// recently used. Safe for concurrent use.
type Cache struct {
	lru  *lru.Cache[Key, Entry]
	size int
}

// New returns a cache holding at most capacity entries.
func New(capacity int) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("memo: capacity must be >= 1, got %d", capacity)
	}
	c, err := lru.New[Key, Entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("memo: %w", err)
	}
	return &Cache{lru: c, size: capacity}, nil
}

func (c *Cache) Get(k Key) (Entry, bool) { return c.lru.Get(k) }

// Put stores e under k, evicting the least recently accessed entry when full.
func (c *Cache) Put(k Key, e Entry) { c.lru.Add(k, e) }

// Contains reports whether k is cached without touching its recency.
func (c *Cache) Contains(k Key) bool { return c.lru.Contains(k) }

func (c *Cache) Len() int { return c.lru.Len() }

// Capacity returns the configured size bound.
func (c *Cache) Capacity() int { return c.size }

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SettingsHash hashes the render-affecting fields. Callers pass them in a
// fixed order; the values are joined with an unambiguous separator.
func SettingsHash(fields ...any) string {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		fmt.Fprint(h, f)
	}
	return hex.EncodeToString(h.Sum(nil))
}
