// Package lru implements a fixed capacity cache with strict least recently
// used eviction. Reads promote entries, so eviction order follows access, not
// insertion.
package lru

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pbnjay/memory"
)

// ErrInvalidCapacity is returned by New if the capacity passed is not
// positive.
var ErrInvalidCapacity = errors.New("lru: capacity must be greater than 0")

const gib = 1 << 30

// Cache is a bounded key/value cache. The zero value is not usable; create one
// with New. Cache is safe for concurrent use, as a read promotes the entry
// read and is therefore a write as well.
type Cache[K comparable, V any] struct {
	c        *lru.Cache[K, V]
	capacity int
}

// New creates a Cache that holds at most capacity entries. An error is
// returned if capacity is 0 or lower.
func New[K comparable, V any](capacity int) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}
	c, err := lru.New[K, V](capacity)
	if err != nil {
		return nil, fmt.Errorf("lru: create cache: %w", err)
	}
	return &Cache[K, V]{c: c, capacity: capacity}, nil
}

// Get returns the value stored for k and marks it as most recently used.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	return c.c.Get(k)
}

// Peek returns the value stored for k without updating its recency.
func (c *Cache[K, V]) Peek(k K) (V, bool) {
	return c.c.Peek(k)
}

// Set stores v for k. If k is already present its value is replaced in place
// and the entry is marked as most recently used. Otherwise, the least recently
// used entry is evicted if the cache is full. Set reports if an entry was
// evicted.
func (c *Cache[K, V]) Set(k K, v V) (evicted bool) {
	return c.c.Add(k, v)
}

// GetOrCompute returns the value stored for k. On a miss, fn is called and its
// result is stored and returned.
func (c *Cache[K, V]) GetOrCompute(k K, fn func() V) V {
	if v, ok := c.c.Get(k); ok {
		return v
	}
	v := fn()
	c.c.Add(k, v)
	return v
}

// Remove deletes k from the cache, reporting if it was present.
func (c *Cache[K, V]) Remove(k K) bool {
	return c.c.Remove(k)
}

// Purge removes all entries from the cache.
func (c *Cache[K, V]) Purge() {
	c.c.Purge()
}

// Len returns the number of entries currently held.
func (c *Cache[K, V]) Len() int {
	return c.c.Len()
}

// Cap returns the capacity the Cache was created with.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// DefaultCapacity returns the capacity tier matching the total memory of the
// host: 128, 256, 512, 1024 or 2048 entries.
func DefaultCapacity() int {
	return TierCapacity(memory.TotalMemory())
}

// TierCapacity maps an amount of memory in bytes to a capacity tier. Unknown
// memory (0) maps to the middle tier.
func TierCapacity(total uint64) int {
	switch {
	case total == 0:
		return 512
	case total < 2*gib:
		return 128
	case total < 4*gib:
		return 256
	case total < 8*gib:
		return 512
	case total < 16*gib:
		return 1024
	default:
		return 2048
	}
}
