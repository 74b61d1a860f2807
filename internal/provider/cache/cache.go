// Package cache holds recent provider batches keyed by the requested contract
// set.
package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"golang.org/x/sync/singleflight"

	"optionsdata/internal/metrics"
	"optionsdata/internal/provider"
)

// DefaultTTL is how long a batch stays servable.
const DefaultTTL = 60 * time.Second

// DefaultMaxEntries bounds the number of distinct contract sets kept.
const DefaultMaxEntries = 1024

// Entry is a stored batch and the time it was stored.
type Entry struct {
	Batch    *provider.Batch
	StoredAt time.Time
}

type Options struct {
	TTL        time.Duration
	MaxEntries int
	Now        func() time.Time
}

// QuoteCache maps a canonical request key to the last successful batch.
// Expired entries are dropped when read; when full, the least recently
// used entry is evicted. Concurrent misses for one key share a single
// upstream fetch.
type QuoteCache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries *linkedhashmap.Map // key -> Entry, oldest use first

	sf singleflight.Group
}

func New(opts Options) *QuoteCache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &QuoteCache{
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		entries:    linkedhashmap.New(),
	}
}

// Key is the order-independent form of a request: the contracts sorted
// lexicographically and comma-joined.
func Key(contracts []string) string {
	sorted := append([]string(nil), contracts...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// TTL returns the configured time-to-live.
func (c *QuoteCache) TTL() time.Duration { return c.ttl }

// Get returns the entry for key while now-StoredAt < TTL.
func (c *QuoteCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, result := c.lookupLocked(key)
	metrics.CacheLookups.WithLabelValues(result).Inc()
	return e, result == "hit"
}

func (c *QuoteCache) lookupLocked(key string) (Entry, string) {
	v, ok := c.entries.Get(key)
	if !ok {
		return Entry{}, "miss"
	}
	e := v.(Entry)
	if c.now().Sub(e.StoredAt) >= c.ttl {
		c.entries.Remove(key)
		metrics.CacheEvictions.Inc()
		metrics.CacheEntries.Set(float64(c.entries.Size()))
		return Entry{}, "expired"
	}
	// move to most recently used
	c.entries.Remove(key)
	c.entries.Put(key, e)
	return e, "hit"
}

// Put stores batch under key, replacing any previous entry.
func (c *QuoteCache) Put(key string, batch *provider.Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Remove(key)
	c.entries.Put(key, Entry{Batch: batch, StoredAt: c.now()})
	for c.entries.Size() > c.maxEntries {
		it := c.entries.Iterator()
		if !it.Next() {
			break
		}
		c.entries.Remove(it.Key())
		metrics.CacheEvictions.Inc()
	}
	metrics.CacheEntries.Set(float64(c.entries.Size()))
}

type fetchResult struct {
	batch  *provider.Batch
	cached bool
}

// GetOrFetch serves key from the cache, or calls fetch once for all
// concurrent callers of the same key and stores a successful result.
// Errors are never stored. The returned bool reports a cache hit.
func (c *QuoteCache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (*provider.Batch, error)) (*provider.Batch, bool, error) {
	if e, ok := c.Get(key); ok {
		return e.Batch, true, nil
	}

	// the shared fetch must not die with whichever caller started it
	fctx := context.WithoutCancel(ctx)
	v, err, _ := c.sf.Do(key, func() (any, error) {
		c.mu.Lock()
		e, result := c.lookupLocked(key)
		c.mu.Unlock()
		if result == "hit" {
			return fetchResult{batch: e.Batch, cached: true}, nil
		}

		batch, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, batch)
		return fetchResult{batch: batch}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(fetchResult)
	return r.batch, r.cached, nil
}

// Len returns the number of stored entries, expired or not.
func (c *QuoteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Size()
}

// Clear drops every entry.
func (c *QuoteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
	metrics.CacheEntries.Set(0)
}

// PurgeExpired removes expired entries and returns how many were removed.
// Reads never depend on it.
func (c *QuoteCache) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var stale []any
	it := c.entries.Iterator()
	for it.Next() {
		if now.Sub(it.Value().(Entry).StoredAt) >= c.ttl {
			stale = append(stale, it.Key())
		}
	}
	for _, k := range stale {
		c.entries.Remove(k)
	}
	metrics.CacheEvictions.Add(float64(len(stale)))
	metrics.CacheEntries.Set(float64(c.entries.Size()))
	return len(stale)
}
