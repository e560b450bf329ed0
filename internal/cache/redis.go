package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/redis"
)

// RedisCache keeps entries in Redis with a TTL.
type RedisCache struct {
	client  *redis.RedisClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// NewRedisCache wraps client. A zero ttl stores entries without expiry; a
// zero timeout leaves calls bounded only by the caller's context.
func NewRedisCache(client *redis.RedisClient, prefix string, ttl, timeout time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, timeout: timeout, now: time.Now}
}

func (c *RedisCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *RedisCache) Get(ctx context.Context, tenantID, model, text string) ([]float32, bool, error) {
	if tenantID == "" {
		return nil, false, ErrEmptyTenant
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var e Entry
	if err := c.client.GetJSON(ctx, Key(c.prefix, tenantID, model, text), &e); err != nil {
		if redis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	if !e.usable(c.now()) {
		return nil, false, nil
	}
	return e.Vector, true, nil
}

func (c *RedisCache) Put(ctx context.Context, tenantID, model, text string, vector []float32) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	key := Key(c.prefix, tenantID, model, text)
	if err := c.client.SetJSON(ctx, key, newEntry(vector, c.ttl, c.now()), c.ttl); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateTenantModel(ctx context.Context, tenantID, model string) error {
	if tenantID == "" {
		return ErrEmptyTenant
	}
	pattern := escapeGlob(scopePrefix(c.prefix, tenantID, model)) + "*"
	if _, err := c.client.DeleteByPattern(ctx, pattern); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
