// Package cache implements the process-wide caches the template engine
// consults around (never inside) the render path: parsed templates,
// compiled plans, fetched documents and selector results. Every cache is
// a bounded key-value store with an optional time-to-live and a pluggable
// eviction policy; the engine behaves identically with every cache empty
// or disabled, so correctness never depends on what is in here.
package cache

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Policy selects the eviction strategy used when a cache is full.
type Policy int

const (
	// LRU evicts the least recently used entry (the default).
	LRU Policy = iota
	// LFU evicts the least frequently used entry.
	LFU
	// FIFO evicts the oldest entry regardless of use.
	FIFO
	// Random evicts a uniformly random entry.
	Random
)

func (p Policy) String() string {
	switch p {
	case LRU:
		return "lru"
	case LFU:
		return "lfu"
	case FIFO:
		return "fifo"
	case Random:
		return "random"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of a cache's counters.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Cache is a bounded, TTL-aware key-value store. The LRU policy is backed
// by hashicorp's expirable LRU, which sweeps expired entries on its own;
// the other policies share a map-based store that expires entries lazily
// on access and sweeps opportunistically on insert.
type Cache[K comparable, V any] struct {
	mu     sync.Mutex
	hits   uint64
	misses uint64

	lru *expirable.LRU[K, V] // set only for Policy == LRU

	policy   Policy
	capacity int
	ttl      time.Duration
	entries  map[K]*entry[V]
	seq      uint64
}

type entry[V any] struct {
	value   V
	expires time.Time // zero means never
	seq     uint64
	uses    uint64
}

// New creates a cache holding at most capacity entries (0 means
// unbounded) whose entries expire after ttl (0 means never) and are
// evicted per policy when the cache is full.
func New[K comparable, V any](capacity int, ttl time.Duration, policy Policy) *Cache[K, V] {
	c := &Cache[K, V]{policy: policy, capacity: capacity, ttl: ttl}
	if policy == LRU {
		c.lru = expirable.NewLRU[K, V](capacity, nil, ttl)
	} else {
		c.entries = make(map[K]*entry[V])
	}
	return c
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru != nil {
		v, ok := c.lru.Get(key)
		c.count(ok)
		return v, ok
	}

	e, ok := c.entries[key]
	if ok && c.expired(e) {
		delete(c.entries, key)
		ok = false
	}
	c.count(ok)
	if !ok {
		var zero V
		return zero, false
	}
	e.uses++
	return e.value, true
}

// Add stores value under key, evicting one entry per the cache's policy
// if it is full. An existing entry for key is replaced in place.
func (c *Cache[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lru != nil {
		c.lru.Add(key, value)
		return
	}

	if _, exists := c.entries[key]; !exists && c.capacity > 0 && len(c.entries) >= c.capacity {
		c.sweepLocked()
		if len(c.entries) >= c.capacity {
			if victim, ok := c.victimLocked(); ok {
				delete(c.entries, victim)
			}
		}
	}
	c.seq++
	e := &entry[V]{value: value, seq: c.seq}
	if c.ttl > 0 {
		e.expires = time.Now().Add(c.ttl)
	}
	c.entries[key] = e
}

// Remove deletes key from the cache, if present.
func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Remove(key)
		return
	}
	delete(c.entries, key)
}

// Purge empties the cache. Hit/miss counters are kept.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Purge()
		return
	}
	c.entries = make(map[K]*entry[V])
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		return c.lru.Len()
	}
	c.sweepLocked()
	return len(c.entries)
}

// Stats returns a snapshot of the cache's hit/miss counters and current
// entry count.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	if c.lru != nil {
		n = c.lru.Len()
	} else {
		c.sweepLocked()
		n = len(c.entries)
	}
	return Stats{Hits: c.hits, Misses: c.misses, Entries: n}
}

func (c *Cache[K, V]) count(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func (c *Cache[K, V]) expired(e *entry[V]) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}

func (c *Cache[K, V]) sweepLocked() {
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
		}
	}
}

// victimLocked picks the entry to evict per the cache's policy.
func (c *Cache[K, V]) victimLocked() (K, bool) {
	var victim K
	if len(c.entries) == 0 {
		return victim, false
	}
	switch c.policy {
	case LFU:
		var minUses, minSeq uint64
		first := true
		for k, e := range c.entries {
			if first || e.uses < minUses || (e.uses == minUses && e.seq < minSeq) {
				victim, minUses, minSeq = k, e.uses, e.seq
				first = false
			}
		}
	case FIFO:
		var minSeq uint64
		first := true
		for k, e := range c.entries {
			if first || e.seq < minSeq {
				victim, minSeq = k, e.seq
				first = false
			}
		}
	default: // Random
		n := rand.Intn(len(c.entries))
		for k := range c.entries {
			if n == 0 {
				victim = k
				break
			}
			n--
		}
	}
	return victim, true
}
