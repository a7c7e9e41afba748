package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

type memoryEntry struct {
	result  domain.AnalysisResult
	expires time.Time
}

// MemoryCache is an in-process TTL map. A zero TTL keeps entries forever,
// but every Set drops expired entries and entries for the same symbol and
// window that were keyed by a different latest date.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.AnalysisResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.AnalysisResult{}, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return domain.AnalysisResult{}, false, nil
	}
	return e.result, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, result domain.AnalysisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(key, now)

	e := memoryEntry{result: result}
	if c.ttl > 0 {
		e.expires = now.Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

// sweep must be called with mu held.
func (c *MemoryCache) sweep(key string, now time.Time) {
	prefix := key
	if i := strings.LastIndex(key, ":"); i >= 0 {
		prefix = key[:i+1]
	}
	for k, e := range c.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(c.entries, k)
			continue
		}
		if k != key && strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}
