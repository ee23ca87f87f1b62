// Package lrucache provides a resizable LRU cache that participates in
// resource pools of type "cache".
//
// The cache reports its entry count, approximate byte size and hit ratio,
// and accepts maximum-size limits pushed by a governing plugin.
package lrucache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/resmgr"
)

// Tags reported and accepted by the cache.
const (
	// TagEntries is the monitored number of cached entries.
	TagEntries = "cache.entries"
	// TagSizeBytes is the monitored approximate size in bytes
	// (entries * entry size).
	TagSizeBytes = "cache.sizeBytes"
	// TagHitRatio is the monitored hit ratio since creation, in [0,1].
	TagHitRatio = "cache.hitRatio"
	// TagMaxEntries is the controlled maximum number of entries.
	TagMaxEntries = "cache.maxEntries"
	// TagMaxSizeBytes is the controlled maximum size in bytes, converted
	// to an entry cap using the configured entry size.
	TagMaxSizeBytes = "cache.maxSizeBytes"
)

// DefaultEntrySizeBytes is the per-entry cost assumed when none is
// configured. Byte-based limits are approximations built on this value.
const DefaultEntrySizeBytes = 1024

// Cache is a thread-safe, resizable LRU cache implementing
// resmgr.ManagedResource.
type Cache[K comparable, V any] struct {
	name           string
	poolTypes      []string
	entrySizeBytes float64

	mu         sync.Mutex // guards resizes; lru.Cache is itself thread-safe
	inner      *lru.Cache[K, V]
	maxEntries int // guarded by mu

	hits   atomic.Int64
	misses atomic.Int64
}

// Compile time check to ensure Cache satisfies the interface.
var _ resmgr.ManagedResource = (*Cache[string, string])(nil)

// Option configures a Cache.
type Option func(*config)

type config struct {
	poolTypes      []string
	entrySizeBytes float64
}

// WithPoolTypes sets the pool types the cache can join. Defaults to
// ["cache"].
func WithPoolTypes(types ...string) Option {
	return func(c *config) {
		if len(types) > 0 {
			c.poolTypes = types
		}
	}
}

// WithEntrySizeBytes sets the approximate per-entry cost used to translate
// between entry counts and byte sizes.
func WithEntrySizeBytes(size float64) Option {
	return func(c *config) {
		if size > 0 {
			c.entrySizeBytes = size
		}
	}
}

// New creates a cache holding at most maxEntries entries.
func New[K comparable, V any](name string, maxEntries int, optFns ...Option) (*Cache[K, V], error) {
	cfg := config{
		poolTypes:      []string{"cache"},
		entrySizeBytes: DefaultEntrySizeBytes,
	}
	for _, fn := range optFns {
		fn(&cfg)
	}

	inner, err := lru.New[K, V](maxEntries)
	if err != nil {
		return nil, err
	}

	return &Cache[K, V]{
		name:           name,
		poolTypes:      cfg.poolTypes,
		entrySizeBytes: cfg.entrySizeBytes,
		inner:          inner,
		maxEntries:     maxEntries,
	}, nil
}

// Get returns the value cached under key, tracking hit/miss accounting.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set caches value under key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.inner.Add(key, value)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.inner.Len()
}

// MaxEntries returns the current entry cap.
func (c *Cache[K, V]) MaxEntries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxEntries
}

// HitRatio returns the hit ratio since creation, or 0 before any lookup.
func (c *Cache[K, V]) HitRatio() float64 {
	hits := float64(c.hits.Load())
	misses := float64(c.misses.Load())
	if hits+misses == 0 {
		return 0
	}
	return hits / (hits + misses)
}

// Purge removes all entries.
func (c *Cache[K, V]) Purge() {
	c.inner.Purge()
}

// Name implements resmgr.ManagedResource.
func (c *Cache[K, V]) Name() string { return c.name }

// SupportedPoolTypes implements resmgr.ManagedResource.
func (c *Cache[K, V]) SupportedPoolTypes() []string { return c.poolTypes }

// GetMonitoredValues implements resmgr.ManagedResource.
func (c *Cache[K, V]) GetMonitoredValues(ctx context.Context, tags []string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, tag := range tags {
		switch tag {
		case TagEntries:
			out[tag] = float64(c.inner.Len())
		case TagSizeBytes:
			out[tag] = float64(c.inner.Len()) * c.entrySizeBytes
		case TagHitRatio:
			out[tag] = c.HitRatio()
		}
	}
	return out, nil
}

// SetLimit implements resmgr.ManagedResource. Shrinking the cap evicts the
// least recently used entries down to the new size.
func (c *Cache[K, V]) SetLimit(ctx context.Context, tag string, value float64) error {
	var entries int
	switch tag {
	case TagMaxEntries:
		entries = int(value)
	case TagMaxSizeBytes:
		entries = int(value / c.entrySizeBytes)
	default:
		return fmt.Errorf("unsupported limit tag %q", tag)
	}

	if entries < 1 {
		entries = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Resize(entries)
	c.maxEntries = entries

	return nil
}
