package server

import (
	"container/list"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/paveg/crosstab/internal/remote"
)

const (
	// DefaultCacheSize is the number of responses kept by default
	DefaultCacheSize = 100
	// DefaultCacheTTL is how long a cached response stays valid
	DefaultCacheTTL = 5 * time.Minute
)

// Cache is a bounded, least recently used response cache whose entries
// expire after a fixed time to live. A nil *Cache caches nothing.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	order   *list.List
	entries map[uint64]*list.Element
	hits    int64
	misses  int64
}

type cacheEntry struct {
	key    uint64
	resp   *remote.Response
	stored time.Time
}

// NewCache returns a cache of at most maxSize responses living ttl each.
// A non-positive maxSize returns nil; a non-positive ttl uses
// DefaultCacheTTL.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		order:   list.New(),
		entries: make(map[uint64]*list.Element),
	}
}

// Fingerprint hashes the canonical JSON form of req. Filter value lists are
// compared as sets.
func Fingerprint(req *remote.Request) (uint64, error) {
	canonical := *req
	canonical.Filters = sortedValues(req.Filters)
	canonical.Exclusions = sortedValues(req.Exclusions)
	data, err := json.Marshal(canonical)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(data), nil
}

func sortedValues(f map[string][]string) map[string][]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string][]string, len(f))
	for k, v := range f {
		out[k] = slices.Sorted(slices.Values(v))
	}
	return out
}

// Get returns a copy of the cached response marked as cached. Expired
// entries are dropped.
func (c *Cache) Get(key uint64) (*remote.Response, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().Sub(entry.stored) > c.ttl {
		c.removeLocked(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++

	out := *entry.resp
	out.Metadata.Cached = true
	return &out, true
}

// Put stores resp, evicting the least recently used entry when full.
// Stored responses must not be modified afterwards.
func (c *Cache) Put(key uint64, resp *remote.Response) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = &cacheEntry{key: key, resp: resp, stored: c.now()}
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, resp: resp, stored: c.now()})
	for c.order.Len() > c.maxSize {
		c.removeLocked(c.order.Back())
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}

// Clear drops every entry. Hit and miss counters are kept.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.entries)
}

// Stats reports the cache occupancy. Expired entries still held count
// towards Size and ExpiredCount.
func (c *Cache) Stats() remote.CacheStats {
	if c == nil {
		return remote.CacheStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expired := 0
	for el := c.order.Front(); el != nil; el = el.Next() {
		if now.Sub(el.Value.(*cacheEntry).stored) > c.ttl {
			expired++
		}
	}
	return remote.CacheStats{
		Size:         c.order.Len(),
		MaxSize:      c.maxSize,
		TTLMillis:    c.ttl.Milliseconds(),
		ExpiredCount: expired,
		Hits:         c.hits,
		Misses:       c.misses,
	}
}
