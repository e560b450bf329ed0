package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryCache is a process-local map. Used when no Redis is configured and in tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, tenantID, model, text string) ([]float32, bool, error) {
	if tenantID == "" {
		return nil, false, ErrEmptyTenant
	}
	c.mu.RLock()
	e, ok := c.entries[Key("", tenantID, model, text)]
	c.mu.RUnlock()
	if !ok || !e.usable(c.now()) {
		return nil, false, nil
	}
	return append([]float32(nil), e.Vector...), true, nil
}

func (c *MemoryCache) Put(_ context.Context, tenantID, model, text string, vector []float32) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	e := newEntry(append([]float32(nil), vector...), c.ttl, c.now())
	c.mu.Lock()
	c.entries[Key("", tenantID, model, text)] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) InvalidateTenantModel(_ context.Context, tenantID, model string) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	scope := scopePrefix("", tenantID, model)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, scope) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, string, string) ([]float32, bool, error) {
	return nil, false, nil
}

func (Nop) Put(context.Context, string, string, string, []float32) error { return nil }

func (Nop) InvalidateTenantModel(context.Context, string, string) error { return nil }
