// Package dedup provides the in-process synthesis cache: TTL-bounded
// entries with LRU eviction, plus single-flight deduplication so that
// concurrent requests for the same task share one synthesis invocation.
package dedup

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devscontext/devscontext/internal/synthesis"
)

// Builder produces the synthesized context for a task on a cache miss.
type Builder func(ctx context.Context) (*synthesis.Synthesized, error)

// Cache is a TTL + LRU cache over synthesized contexts. An entry is
// valid iff now < created_at + ttl; expired entries are dropped on
// access. When the cache exceeds maxSize the least recently used entry
// is evicted. Safe for concurrent use.
type Cache struct {
	ttl     time.Duration
	maxSize int
	log     *slog.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	// lru front = most recently used.
	lru *list.List

	group singleflight.Group

	// now is swapped in tests.
	now func() time.Time
}

type entry struct {
	key       string
	value     *synthesis.Synthesized
	createdAt time.Time
}

// New creates a Cache. maxSize <= 0 means unbounded.
func New(ttl time.Duration, maxSize int, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		log:     log,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// GetOrBuild returns the cached context for taskID, or runs builder to
// produce it. Concurrent callers for the same taskID share a single
// builder invocation. The shared build runs detached from any one
// caller's context, so a waiter cancelling does not abort the build for
// the others; the cancelled caller itself returns ctx.Err immediately.
func (c *Cache) GetOrBuild(ctx context.Context, taskID string, builder Builder) (*synthesis.Synthesized, error) {
	if v, ok := c.Get(taskID); ok {
		return v, nil
	}

	ch := c.group.DoChan(taskID, func() (any, error) {
		// Detach from the triggering caller: the result is shared.
		v, err := builder(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("dedup: build %s: %w", taskID, err)
		}
		c.put(taskID, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*synthesis.Synthesized), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the cached context for taskID if a valid entry exists,
// refreshing its recency. Expired entries are removed.
func (c *Cache) Get(taskID string) (*synthesis.Synthesized, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[taskID]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.createdAt.Add(c.ttl)) {
		c.removeLocked(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return e.value, true
}

// Invalidate drops the entry for taskID if present.
func (c *Cache) Invalidate(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[taskID]; ok {
		c.removeLocked(el)
	}
}

// Len returns the number of entries currently held, expired included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) put(taskID string, v *synthesis.Synthesized) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[taskID]; ok {
		e := el.Value.(*entry)
		e.value = v
		e.createdAt = c.now()
		c.lru.MoveToFront(el)
		return
	}

	el := c.lru.PushFront(&entry{key: taskID, value: v, createdAt: c.now()})
	c.entries[taskID] = el

	for c.maxSize > 0 && c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*entry)
		c.removeLocked(oldest)
		c.log.Debug("cache entry evicted", "task_id", evicted.key)
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.lru.Remove(el)
	delete(c.entries, e.key)
}
