// Package cache provides a bounded in-memory LRU cache with per-entry
// TTL. It is a read-through accelerator in front of the storage layer:
// every caller must also be correct when the cache is empty.
package cache

import (
	"strings"
	"sync"
	"time"
)

const none = -1

// node is one entry in the recency list. Nodes live in an arena slice
// and link to each other by index, not pointer, so promote/evict stay
// O(1) without an ordered-container dependency.
type node struct {
	key      string
	value    any
	storedAt time.Time
	prev     int
	next     int
}

// Cache is a fixed-capacity LRU with TTL. One mutex covers every
// operation; all operations are O(1) and brief.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration

	arena []node
	index map[string]int // key -> arena slot
	head  int            // most recently used
	tail  int            // least recently used
	free  []int          // recycled arena slots

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time // test hook
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Size      int     `json:"size"`
	Capacity  int     `json:"capacity"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		arena:    make([]node, 0, capacity),
		index:    make(map[string]int, capacity),
		head:     none,
		tail:     none,
		now:      time.Now,
	}
}

// Get returns the cached value for key. An absent or TTL-expired key is
// a miss; expired entries are evicted in place. A hit promotes the
// entry to most recently used.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}

	if c.expired(i) {
		c.remove(i)
		c.misses++
		return nil, false
	}

	c.moveToFront(i)
	c.hits++
	return c.arena[i].value, true
}

// Set stores value under key. An existing key is refreshed and
// promoted; a new key evicts the least-recently-used entry first when
// the cache is full.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		c.arena[i].value = value
		c.arena[i].storedAt = c.now()
		c.moveToFront(i)
		return
	}

	if len(c.index) >= c.capacity {
		c.remove(c.tail)
		c.evictions++
	}

	i := c.alloc()
	c.arena[i] = node{key: key, value: value, storedAt: c.now(), prev: none, next: none}
	c.index[key] = i
	c.pushFront(i)
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.remove(i)
	return true
}

// Clear drops every entry. Counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.arena = c.arena[:0]
	c.free = c.free[:0]
	c.index = make(map[string]int, c.capacity)
	c.head = none
	c.tail = none
}

// InvalidatePattern removes every key containing the substring and
// returns how many were removed. Used to drop whole-collection list
// caches after a mutation.
func (c *Cache) InvalidatePattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var matched []int
	for key, i := range c.index {
		if strings.Contains(key, pattern) {
			matched = append(matched, i)
		}
	}
	for _, i := range matched {
		c.remove(i)
	}
	return len(matched)
}

// CleanupExpired removes every TTL-expired entry and returns the count.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []int
	for _, i := range c.index {
		if c.expired(i) {
			expired = append(expired, i)
		}
	}
	for _, i := range expired {
		c.remove(i)
	}
	return len(expired)
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:      len(c.index),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   rate,
	}
}

func (c *Cache) expired(i int) bool {
	return c.now().Sub(c.arena[i].storedAt) > c.ttl
}

func (c *Cache) alloc() int {
	if n := len(c.free); n > 0 {
		i := c.free[n-1]
		c.free = c.free[:n-1]
		return i
	}
	c.arena = append(c.arena, node{})
	return len(c.arena) - 1
}

func (c *Cache) remove(i int) {
	delete(c.index, c.arena[i].key)
	c.unlink(i)
	c.arena[i] = node{prev: none, next: none}
	c.free = append(c.free, i)
}

func (c *Cache) moveToFront(i int) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

func (c *Cache) pushFront(i int) {
	c.arena[i].prev = none
	c.arena[i].next = c.head
	if c.head != none {
		c.arena[c.head].prev = i
	}
	c.head = i
	if c.tail == none {
		c.tail = i
	}
}

func (c *Cache) unlink(i int) {
	prev, next := c.arena[i].prev, c.arena[i].next
	if prev != none {
		c.arena[prev].next = next
	} else if c.head == i {
		c.head = next
	}
	if next != none {
		c.arena[next].prev = prev
	} else if c.tail == i {
		c.tail = prev
	}
	c.arena[i].prev = none
	c.arena[i].next = none
}
