// Package cache provides a generic TTL-bounded, capacity-bounded cache
// with lazy population. Concurrent misses for the same key share a single
// population call; different keys never block each other.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is a cached value with its expiry. The element field links the
// entry into the LRU list (front = most recently used).
type entry[K comparable, V any] struct {
	key        K
	value      V
	insertedAt time.Time
	expiresAt  time.Time
	element    *list.Element
}

func (e *entry[K, V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Stats is a read-only snapshot of the cache state.
type Stats[K comparable] struct {
	Count    int           `json:"count"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
	Keys     []K           `json:"keys"`
}

// Cache is a keyed TTL cache with LRU eviction among live entries.
// Safe for concurrent use. Population runs outside the cache lock, so a
// slow loader for one key never blocks reads or loads of other keys.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*entry[K, V]
	ll       *list.List
	capacity int
	ttl      time.Duration

	group singleflight.Group

	stop chan struct{}
	once sync.Once
}

// Option configures a Cache.
type Option func(sweep *time.Duration)

// WithSweepInterval enables a background goroutine that purges expired
// entries every interval. Expiry is always checked on read, so the sweep
// only reclaims memory earlier.
func WithSweepInterval(interval time.Duration) Option {
	return func(sweep *time.Duration) { *sweep = interval }
}

// New creates a Cache with the given capacity and default TTL.
// Capacity must be > 0.
func New[K comparable, V any](capacity int, ttl time.Duration, opts ...Option) *Cache[K, V] {
	var sweep time.Duration
	for _, opt := range opts {
		opt(&sweep)
	}
	c := &Cache[K, V]{
		entries:  make(map[K]*entry[K, V]),
		ll:       list.New(),
		capacity: capacity,
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if sweep > 0 {
		go c.sweepLoop(sweep)
	}
	return c
}

// TTL returns the default time-to-live for entries.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}

// GetOrPopulate returns the cached value for key when a live entry exists
// and bypass is false. Otherwise it invokes populate, stores the result
// with expiry now+ttl (the cache default when ttl is zero), and returns
// it. Concurrent callers for the same missing key share one populate
// invocation; a caller whose context expires while waiting on the shared
// flight returns its context error without cancelling the flight for the
// others. A failed populate leaves the cache unchanged.
func (c *Cache[K, V]) GetOrPopulate(ctx context.Context, key K, ttl time.Duration, bypass bool, populate func(context.Context) (V, error)) (V, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	if !bypass {
		if v, ok := c.get(key); ok {
			return v, nil
		}
	}

	ch := c.group.DoChan(fmt.Sprint(key), func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the entry while this one waited its turn.
		if !bypass {
			if v, ok := c.get(key); ok {
				return v, nil
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		val, err := populate(ctx)
		if err != nil {
			return nil, err
		}
		c.put(key, val, ttl)
		return val, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Invalidate removes the entry for key. Reports whether it existed.
func (c *Cache[K, V]) Invalidate(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(e)
	return true
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*entry[K, V])
	c.ll.Init()
}

// Stats returns a snapshot of the live entries. Keys are ordered from
// most to least recently used.
func (c *Cache[K, V]) Stats() Stats[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpiredLocked(time.Now())
	keys := make([]K, 0, len(c.entries))
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return Stats[K]{
		Count:    len(c.entries),
		Capacity: c.capacity,
		TTL:      c.ttl,
		Keys:     keys,
	}
}

// Close stops the background sweep goroutine, if one was started.
func (c *Cache[K, V]) Close() {
	c.once.Do(func() { close(c.stop) })
}

// get returns the live value for key, marking it recently used.
// Expired entries are purged on sight.
func (c *Cache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(time.Now()) {
		c.removeLocked(e)
		var zero V
		return zero, false
	}
	c.ll.MoveToFront(e.element)
	return e.value, true
}

// put inserts or refreshes the entry for key, evicting per capacity.
func (c *Cache[K, V]) put(key K, value V, ttl time.Duration) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.insertedAt = now
		e.expiresAt = now.Add(ttl)
		c.ll.MoveToFront(e.element)
		return
	}

	if len(c.entries) >= c.capacity {
		c.purgeExpiredLocked(now)
	}
	for len(c.entries) >= c.capacity {
		// Capacity still exceeded after purging expired entries, so
		// drop the least-recently-used live entry.
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeLocked(back.Value.(*entry[K, V]))
	}

	e := &entry[K, V]{
		key:        key,
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	e.element = c.ll.PushFront(e)
	c.entries[key] = e
}

func (c *Cache[K, V]) removeLocked(e *entry[K, V]) {
	delete(c.entries, e.key)
	c.ll.Remove(e.element)
}

func (c *Cache[K, V]) purgeExpiredLocked(now time.Time) {
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*entry[K, V]); e.expired(now) {
			c.removeLocked(e)
		}
		el = prev
	}
}

func (c *Cache[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.purgeExpiredLocked(time.Now())
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
