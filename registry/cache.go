package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sage-x-project/agent-gateway/internal/metrics"
)

// cacheEntry holds a cached KeyRecord and the time it was inserted.
type cacheEntry struct {
	value      *KeyRecord
	insertedAt time.Time
}

// CachingClient wraps a Client with a bounded, time-expiring in-memory
// cache keyed by key_id. Concurrent misses for the same key_id are
// collapsed into a single outbound fetch via singleflight.
type CachingClient struct {
	backend Client
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]*cacheEntry

	group singleflight.Group

	now func() time.Time
}

// NewCachingClient wraps backend with a cache of the given TTL.
func NewCachingClient(backend Client, ttl time.Duration) *CachingClient {
	return &CachingClient{
		backend: backend,
		ttl:     ttl,
		cache:   make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// Backend passes through the wrapped backend's name, for metrics labeling.
func (c *CachingClient) Backend() string { return c.backend.Backend() }

// FetchKey returns a cached record when one is present and within TTL;
// otherwise it performs at most one outbound fetch per concurrent set of
// callers for the same key_id and caches the result on success.
func (c *CachingClient) FetchKey(ctx context.Context, keyID string) (*KeyRecord, error) {
	if entry, ok := c.get(keyID); ok {
		metrics.CacheEvents.WithLabelValues("hit").Inc()
		return entry, nil
	}
	metrics.CacheEvents.WithLabelValues("miss").Inc()

	start := c.now()
	v, err, _ := c.group.Do(keyID, func() (interface{}, error) {
		record, err := c.backend.FetchKey(ctx, keyID)
		if err != nil {
			return nil, err
		}
		c.put(keyID, record)
		return record, nil
	})
	metrics.RegistryFetchDuration.WithLabelValues(c.backend.Backend(), fetchOutcome(err)).Observe(c.now().Sub(start).Seconds())
	if err != nil {
		return nil, err
	}
	return v.(*KeyRecord), nil
}

// fetchOutcome labels a fetch result for the RegistryFetchDuration metric.
func fetchOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if err == ErrKeyNotFound {
		return "not_found"
	}
	return "error"
}

func (c *CachingClient) get(keyID string) (*KeyRecord, bool) {
	c.mu.RLock()
	entry, ok := c.cache[keyID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.insertedAt) > c.ttl {
		c.mu.Lock()
		delete(c.cache, keyID)
		c.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

func (c *CachingClient) put(keyID string, record *KeyRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[keyID] = &cacheEntry{value: record, insertedAt: c.now()}
}
