package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"jan-server/services/chat-realtime-api/internal/domain/membership"
	"jan-server/services/chat-realtime-api/internal/infrastructure/metrics"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a bounded single-replica cache. Locks are process local.
type MemoryCache struct {
	items *lru.Cache
	now   func() time.Time
	log   zerolog.Logger

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewMemoryCache creates a cache holding at most size keys.
func NewMemoryCache(size int, log zerolog.Logger) (*MemoryCache, error) {
	items, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryCache{
		items: items,
		now:   time.Now,
		log:   log.With().Str("component", "memory-cache").Logger(),
		locks: make(map[string]chan struct{}),
	}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	raw, ok := c.items.Get(key)
	if !ok {
		metrics.RecordCacheLookup(family(key), "miss")
		return "", membership.ErrCacheMiss
	}
	e := raw.(entry)
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.items.Remove(key)
		metrics.RecordCacheLookup(family(key), "miss")
		return "", membership.ErrCacheMiss
	}
	metrics.RecordCacheLookup(family(key), "hit")
	return e.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.items.Add(key, e)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.items.Remove(k)
	}
	return nil
}

// DeletePattern matches keys with path.Match, which shares Redis' glob syntax
// for the '*' and '?' patterns used here.
func (c *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	for _, raw := range c.items.Keys() {
		key, ok := raw.(string)
		if !ok {
			continue
		}
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if matched {
			c.items.Remove(key)
		}
	}
	return nil
}

// WithLock serialises fn per key within this process. ttl is ignored.
func (c *MemoryCache) WithLock(ctx context.Context, key string, _ time.Duration, fn func(ctx context.Context) error) error {
	c.locksMu.Lock()
	lock, ok := c.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		c.locks[key] = lock
	}
	c.locksMu.Unlock()

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
	defer func() { <-lock }()

	return fn(ctx)
}

func (c *MemoryCache) HealthCheck(context.Context) error { return nil }

func (c *MemoryCache) Close() error {
	c.items.Purge()
	return nil
}

var _ membership.Cache = (*MemoryCache)(nil)
