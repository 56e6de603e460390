package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a size bounded, least recently used cache whose entries expire
// after a fixed time to live.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewCache returns a cache holding at most size entries, each valid for ttl.
// A ttl of zero disables expiry.
func NewCache[V any](size int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		lru: expirable.NewLRU[string, V](size, nil, ttl),
	}
}

// Insert adds or replaces the value under key and reports whether an older
// entry was evicted to make room.
func (c *Cache[V]) Insert(key string, value V) bool {
	return c.lru.Add(key, value)
}

// Retrieve returns the live value under key, if any.
func (c *Cache[V]) Retrieve(key string) (V, bool) {
	return c.lru.Get(key)
}

// Remove drops the entry under key.
func (c *Cache[V]) Remove(key string) bool {
	return c.lru.Remove(key)
}

// Len returns the number of entries, including ones that expired but have
// not yet been reaped.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.lru.Purge()
}
