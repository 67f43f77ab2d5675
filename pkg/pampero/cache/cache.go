package cache

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/meteosur/pampero/pkg/pampero/meteo"
)

// Cache provides thread-safe caching of provider responses with TTL.
// WRF-SMN model output refreshes on a 6-hourly cadence, so entries are
// keyed by (source, init time, location) and live for one cadence.
type Cache[T any] struct {
	data            map[string]*entry[T]
	mutex           sync.RWMutex
	ttl             time.Duration
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stats           *stats
}

type entry[T any] struct {
	value     T
	timestamp time.Time
	hits      int64
}

type stats struct {
	hits   int64
	misses int64
	mutex  sync.RWMutex
}

// Key builds the canonical cache key. Coordinates are rounded to two
// decimals so nearby requests share an entry.
func Key(source meteo.SourceID, initTime time.Time, lat, lon float64) string {
	return fmt.Sprintf("%s_%d_%.2f_%.2f", source, initTime.Unix(), lat, lon)
}

// New creates a cache whose entries expire after ttl. A background
// goroutine sweeps expired entries every cleanupInterval; call Close to
// stop it.
func New[T any](ttl, cleanupInterval time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}

	c := &Cache[T]{
		data:            make(map[string]*entry[T]),
		ttl:             ttl,
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
		stats:           &stats{},
	}

	go c.cleanup()

	return c
}

// Get retrieves a value if present and fresh
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mutex.RLock()
	e, exists := c.data[key]
	c.mutex.RUnlock()

	var zero T
	if !exists {
		c.recordMiss()
		return zero, false
	}

	if time.Since(e.timestamp) > c.ttl {
		c.recordMiss()
		return zero, false
	}

	c.mutex.Lock()
	e.hits++
	c.mutex.Unlock()
	c.recordHit()

	return e.value, true
}

// Set stores a value under key
func (c *Cache[T]) Set(key string, value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &entry[T]{
		value:     value,
		timestamp: time.Now(),
	}

	klog.V(4).InfoS("Cached provider response", "key", key)
}

// Stats returns hit and miss counts
func (c *Cache[T]) Stats() (hits, misses int64) {
	c.stats.mutex.RLock()
	defer c.stats.mutex.RUnlock()
	return c.stats.hits, c.stats.misses
}

func (c *Cache[T]) recordHit() {
	c.stats.mutex.Lock()
	c.stats.hits++
	c.stats.mutex.Unlock()
}

func (c *Cache[T]) recordMiss() {
	c.stats.mutex.Lock()
	c.stats.misses++
	c.stats.mutex.Unlock()
}

func (c *Cache[T]) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache[T]) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, e := range c.data {
		age := now.Sub(e.timestamp)
		if age > c.ttl {
			delete(c.data, key)
			klog.V(4).InfoS("Removed expired cache entry",
				"key", key,
				"age", age.String(),
				"hits", e.hits)
		}
	}
}

// Close stops the cleanup goroutine
func (c *Cache[T]) Close() {
	close(c.stopCh)
}

// Clear removes all entries
func (c *Cache[T]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*entry[T])
}

// Size returns the number of entries
func (c *Cache[T]) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}
