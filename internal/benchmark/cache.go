package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookwell/insights/internal/domain"
)

// Cache stores computed BenchmarkResults in Redis. Results are derived data
// with a TTL; the cache is consulted only after the consent check, and a
// consent withdrawal purges every key for the (tenant, category) pair so
// nothing stale can be disclosed afterwards.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a Redis-backed benchmark result cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(tenantID string, category domain.ConsentCategory, metric domain.Metric, w domain.Window) string {
	return fmt.Sprintf("benchmark:%s:%s:%s:%d-%d", tenantID, category, metric, w.Start.Unix(), w.End.Unix())
}

func purgePattern(tenantID string, category domain.ConsentCategory) string {
	return fmt.Sprintf("benchmark:%s:%s:*", tenantID, category)
}

// Get returns the cached result, or nil on miss.
func (c *Cache) Get(ctx context.Context, tenantID string, category domain.ConsentCategory, metric domain.Metric, w domain.Window) (*domain.BenchmarkResult, error) {
	data, err := c.client.Get(ctx, cacheKey(tenantID, category, metric, w)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("benchmark cache get: %w", err)
	}
	var res domain.BenchmarkResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("benchmark cache decode: %w", err)
	}
	return &res, nil
}

// Set stores a result under the configured TTL.
func (c *Cache) Set(ctx context.Context, category domain.ConsentCategory, w domain.Window, res domain.BenchmarkResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("benchmark cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(res.TenantID, category, res.Metric, w), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("benchmark cache set: %w", err)
	}
	return nil
}

// Invalidate implements consent.Invalidator: it deletes every cached result
// for the (tenant, category) pair.
func (c *Cache) Invalidate(ctx context.Context, tenantID string, category domain.ConsentCategory) error {
	iter := c.client.Scan(ctx, 0, purgePattern(tenantID, category), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("benchmark cache scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("benchmark cache purge: %w", err)
	}
	return nil
}
