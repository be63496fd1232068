package cache

import "sync"

// Cache is a generic thread-safe cache whose entries age by frame
// generation rather than by reference count.
//
// Every lookup stamps the entry with the current generation. Advance moves
// to the next generation, and Sweep drops entries whose last use is older
// than the grace period. Values are never replaced in place: Set on an
// existing key is ignored, so a value handed out earlier in a frame stays
// valid for the rest of that frame.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*cacheEntry[V]
	gen     uint64

	hits      uint64
	misses    uint64
	evictions uint64
}

// cacheEntry holds a cached value with the generation it was last used in.
type cacheEntry[V any] struct {
	value V
	used  uint64
}

// New creates an empty cache at generation 0.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*cacheEntry[V]),
	}
}

// Generation returns the current generation.
func (c *Cache[K, V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Advance starts a new generation and returns it.
func (c *Cache[K, V]) Advance() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// SetGeneration jumps to gen. Used when several caches follow one frame
// counter owned by the caller.
func (c *Cache[K, V]) SetGeneration(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen > c.gen {
		c.gen = gen
	}
}

// Get retrieves a value and marks it used in the current generation.
// Returns (value, true) if found, (zero, false) otherwise.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	entry.used = c.gen
	return entry.value, true
}

// Peek retrieves a value without touching its generation or the stats.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores a value if the key is absent and returns the value that is
// now cached for key. An existing entry wins and is only touched.
func (c *Cache[K, V]) Set(key K, value V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.used = c.gen
		return entry.value
	}
	c.entries[key] = &cacheEntry[V]{value: value, used: c.gen}
	return value
}

// Replace stores value for key unconditionally and returns the previous
// value, if any. Callers use it for content that changed under a stable key
// (a re-uploaded bitmap) and must retire the old value themselves.
func (c *Cache[K, V]) Replace(key K, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.entries[key]
	c.entries[key] = &cacheEntry[V]{value: value, used: c.gen}
	if !ok {
		var zero V
		return zero, false
	}
	return old.value, true
}

// Delete removes an entry from the cache.
// Returns true if the entry was found and removed.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		return true
	}
	return false
}

// Sweep removes entries not used during the last grace generations and
// calls onEvict for each one after the lock is released. It returns the
// number of evicted entries.
func (c *Cache[K, V]) Sweep(grace uint64, onEvict func(K, V)) int {
	type victim struct {
		key   K
		value V
	}

	c.mu.Lock()
	var victims []victim
	for key, e := range c.entries {
		if c.gen-e.used > grace {
			victims = append(victims, victim{key: key, value: e.value})
			delete(c.entries, key)
		}
	}
	c.evictions += uint64(len(victims))
	c.mu.Unlock()

	if onEvict != nil {
		for _, v := range victims {
			onEvict(v.key, v.value)
		}
	}
	return len(victims)
}

// Clear removes all entries, calling onEvict for each one.
func (c *Cache[K, V]) Clear(onEvict func(K, V)) {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[K]*cacheEntry[V])
	c.mu.Unlock()

	if onEvict != nil {
		for key, e := range old {
			onEvict(key, e.value)
		}
	}
}

// Range calls fn for every entry until fn returns false. The cache is
// locked for the duration, so fn must not call back into it.
func (c *Cache[K, V]) Range(fn func(K, V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !fn(key, e.value) {
			return
		}
	}
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Len:        len(c.entries),
		Generation: c.gen,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Generation is the current generation.
	Generation uint64
	// Hits is the number of lookups that found an entry.
	Hits uint64
	// Misses is the number of lookups that found nothing.
	Misses uint64
	// HitRate is the hit rate 0.0 to 1.0.
	HitRate float64
	// Evictions is the number of entries removed by Sweep.
	Evictions uint64
}
