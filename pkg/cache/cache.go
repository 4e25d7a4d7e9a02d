// Package cache defines the key-based read cache the allocation service
// invalidates after successful writes. The cache is deliberately not part of
// the locked transaction: cached reads are eventually consistent and may be
// briefly stale during the invalidation window.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the injected cache-service interface. It is constructed once at
// process start and passed explicitly into the services that need it.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// Memory is an in-process Cache backed by go-cache with a fixed TTL.
type Memory struct {
	c *gocache.Cache
}

var _ Cache = (*Memory)(nil)

// NewMemory returns a Memory cache whose entries expire after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{c: gocache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(key string) (any, bool) { return m.c.Get(key) }

func (m *Memory) Set(key string, value any) { m.c.Set(key, value, gocache.DefaultExpiration) }

func (m *Memory) Delete(key string) { m.c.Delete(key) }
