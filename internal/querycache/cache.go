// ABOUTME: Process-wide query cache keyed by hierarchical string keys.
// ABOUTME: Collapses concurrent fetches and notifies subscribers on invalidation.

package querycache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Key builds a cache key from path segments, e.g. Key("projects", "42", "cameras").
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Fetcher loads fresh data for a key.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	data      any
	fetchedAt time.Time
	stale     bool
}

// Cache maps query keys to fetched data. Construct one per process with New
// and pass it to the components that read or invalidate it.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
	now     func() time.Time
	// gen counts invalidations. A fetch that overlaps one stores its
	// result already stale.
	gen uint64

	subMu  sync.RWMutex
	subs   map[int]func(key string)
	nextID int
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		subs:    make(map[int]func(string)),
		now:     time.Now,
	}
}

// Get returns cached data for key. Stale entries are reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.stale {
		return nil, false
	}
	return e.data, true
}

// Set stores fresh data for key.
func (c *Cache) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{data: data, fetchedAt: c.now()}
}

// FetchedAt reports when key was last stored.
func (c *Cache) FetchedAt(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.fetchedAt, true
}

// Fetch returns cached data for key, or runs fetch and caches its result.
// Concurrent fetches of the same key share one call. Errors are not cached.
func (c *Cache) Fetch(ctx context.Context, key string, fetch Fetcher) (any, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}

	data, err, _ := c.group.Do(key, func() (any, error) {
		if data, ok := c.Get(key); ok {
			return data, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = &entry{data: data, fetchedAt: c.now(), stale: c.gen != gen}
		c.mu.Unlock()
		return data, nil
	})
	return data, err
}

// Query is a typed Fetch.
func Query[T any](ctx context.Context, c *Cache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("query %s: cached %T, want %T", key, data, zero)
	}
	return typed, nil
}

// Invalidate marks key and every key beneath it stale, then tells
// subscribers so observers refetch. It returns the number of entries marked.
func (c *Cache) Invalidate(key string) int {
	c.mu.Lock()
	c.gen++
	n := 0
	for k, e := range c.entries {
		if matches(k, key) {
			e.stale = true
			n++
		}
	}
	c.mu.Unlock()

	c.notify(key)
	return n
}

// Evict removes key and every key beneath it without notifying anyone.
func (c *Cache) Evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if matches(k, key) {
			delete(c.entries, k)
		}
	}
}

// Subscribe registers fn for invalidations. fn runs on the invalidating
// goroutine and must not block. The returned func unsubscribes.
func (c *Cache) Subscribe(fn func(key string)) func() {
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Cache) notify(key string) {
	c.subMu.RLock()
	fns := make([]func(string), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range fns {
		fn(key)
	}
}

// matches reports whether key equals prefix or lies beneath it.
func matches(key, prefix string) bool {
	if prefix == "" || key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+"/")
}

// Covers reports whether an invalidation of prefix affects key.
func Covers(prefix, key string) bool {
	return matches(key, prefix)
}
