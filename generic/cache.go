package generic

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// =============================================================================
// TTL CACHE - Lazily refreshed {value, storedAt} entries
// =============================================================================

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// TTLCache memoizes loads per key for ttl. An entry is live while
// now - storedAt <= ttl. Expired entries are replaced wholesale by the next
// successful load; a failed load leaves the old entry in place.
//
// Readers of a live entry only take the read lock. Concurrent misses for the
// same key share one load.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]cacheEntry[V]
	ttl     time.Duration
	clock   Clock
	flight  singleflight.Group
}

func NewTTLCache[K comparable, V any](ttl time.Duration, clock Clock) *TTLCache[K, V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTLCache[K, V]{
		entries: make(map[K]cacheEntry[V]),
		ttl:     ttl,
		clock:   clock,
	}
}

// Peek returns the live value for key without loading.
func (c *TTLCache[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.clock.Now().Sub(e.storedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrLoad returns the live value for key, or calls load and stores its
// result. hit reports whether the value came from the cache. Callers that
// join an in-flight load share its result and its error.
//
// The load keeps the values of the caller that started it but not its
// cancellation, so one caller going away does not fail the others. Each
// caller stops waiting when its own ctx is done; load must bound itself.
func (c *TTLCache[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (v V, hit bool, err error) {
	if v, ok := c.Peek(key); ok {
		return v, true, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(fmt.Sprint(key), func() (any, error) {
		// A flight that finished just before we got here already stored it.
		if v, ok := c.Peek(key); ok {
			return v, nil
		}
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, false, res.Err
		}
		return res.Val.(V), false, nil
	}
}

func (c *TTLCache[K, V]) store(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: v, storedAt: c.clock.Now()}
}

// Len returns the number of entries, live or expired.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune drops expired entries. Completion windows move daily, so old keys
// would otherwise accumulate for the life of the process.
func (c *TTLCache[K, V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	n := 0
	for k, e := range c.entries {
		if now.Sub(e.storedAt) > c.ttl {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
