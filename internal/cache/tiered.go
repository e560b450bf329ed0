package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Tiered puts a bounded in-process LRU in front of another cache. Reads hit
// the LRU first and backfill it from the next tier; writes go to both.
type Tiered struct {
	local *expirable.LRU[string, []float32]
	next  Cache
}

// NewTiered creates an LRU of size entries, each kept at most ttl.
func NewTiered(next Cache, size int, ttl time.Duration) *Tiered {
	return &Tiered{
		local: expirable.NewLRU[string, []float32](size, nil, ttl),
		next:  next,
	}
}

func (t *Tiered) Get(ctx context.Context, tenantID, model, text string) ([]float32, bool, error) {
	if tenantID == "" {
		return nil, false, ErrEmptyTenant
	}
	key := Key("", tenantID, model, text)
	if v, ok := t.local.Get(key); ok {
		return v, true, nil
	}

	v, found, err := t.next.Get(ctx, tenantID, model, text)
	if err != nil || !found {
		return nil, false, err
	}
	t.local.Add(key, v)
	return v, true, nil
}

// Put fills the LRU even when the next tier fails, and returns that failure.
func (t *Tiered) Put(ctx context.Context, tenantID, model, text string, vector []float32) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	t.local.Add(Key("", tenantID, model, text), vector)
	return t.next.Put(ctx, tenantID, model, text, vector)
}

func (t *Tiered) InvalidateTenantModel(ctx context.Context, tenantID, model string) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	scope := scopePrefix("", tenantID, model)
	for _, k := range t.local.Keys() {
		if strings.HasPrefix(k, scope) {
			t.local.Remove(k)
		}
	}
	return t.next.InvalidateTenantModel(ctx, tenantID, model)
}
