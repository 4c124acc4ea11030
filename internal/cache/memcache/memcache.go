// Package memcache is an in-process TTL cache for fetched sheet bodies.
package memcache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	fetchedAt time.Time
	ttl       time.Duration
}

type MemCache struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

func New() *MemCache {
	return NewWithClock(time.Now)
}

// NewWithClock принимает источник времени — TTL проверяется без
// реальных задержек в тестах.
func NewWithClock(now func() time.Time) *MemCache {
	return &MemCache{
		m:   map[string]entry{},
		now: now,
	}
}

func (c *MemCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		return nil, false, nil
	}
	// Запись старше TTL логически отсутствует.
	if c.now().Sub(e.fetchedAt) >= e.ttl {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *MemCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry{value: value, fetchedAt: c.now(), ttl: ttl}
	return nil
}

func (c *MemCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = map[string]entry{}
	return nil
}
