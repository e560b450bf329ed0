package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Ping checks the connection.
func (r *RedisClient) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.client.Ping(ctx).Err()
}

// Get returns the value of key, or Nil if it does not exist.
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, err := r.client.Get(ctx, key).Result()
	r.observeOperation("get", key, "", time.Since(start), err, int64(len(result)), nil)
	return result, err
}

// Set stores value under key. A ttl of zero means no expiry.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	err := r.client.Set(ctx, key, value, ttl).Err()
	metadata := map[string]interface{}{}
	if ttl > 0 {
		metadata["ttl"] = ttl.String()
	}
	r.observeOperation("set", key, "", time.Since(start), err, 0, metadata)
	return err
}

// Delete removes keys and returns how many existed.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, err := r.client.Del(ctx, keys...).Result()
	r.observeOperation("delete", keys[0], "", time.Since(start), err, n, map[string]interface{}{"keys": len(keys)})
	return n, err
}

// DeleteByPattern SCANs for keys matching pattern and deletes them in batches.
// It never uses KEYS, so it is safe on large databases. The scan completes
// before the first delete; deleting mid-scan lets the server rehash and skip
// keys.
func (r *RedisClient) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, DefaultScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		r.observeOperation("delete_pattern", pattern, "", time.Since(start), err, 0, nil)
		return 0, err
	}

	var deleted int64
	for len(keys) > 0 {
		batch := keys[:min(len(keys), DefaultScanCount)]
		keys = keys[len(batch):]
		n, err := r.client.Del(ctx, batch...).Result()
		deleted += n
		if err != nil {
			r.observeOperation("delete_pattern", pattern, "", time.Since(start), err, deleted, nil)
			return deleted, err
		}
	}
	r.observeOperation("delete_pattern", pattern, "", time.Since(start), nil, deleted, nil)
	return deleted, nil
}

// SetJSON serializes the value to JSON and stores it.
func (r *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return r.Set(ctx, key, data, ttl)
}

// GetJSON retrieves the value and deserializes it into dest.
func (r *RedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
