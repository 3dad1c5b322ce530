package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const cachePrefix = "pricelist:v1:"

// Cache wraps Redis helpers for JSON payloads shared between instances.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes keys from the shared cache.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// memory is the per-process layer in front of Redis.
type memory struct {
	c *gocache.Cache
}

func newMemory(ttl time.Duration) *memory {
	if ttl <= 0 {
		return nil
	}
	return &memory{c: gocache.New(ttl, 2*ttl)}
}

func (m *memory) get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	return m.c.Get(key)
}

func (m *memory) set(key string, v any) {
	if m == nil {
		return
	}
	m.c.SetDefault(key, v)
}

func (m *memory) delete(key string) {
	if m == nil {
		return
	}
	m.c.Delete(key)
}

func priceListKey(family, option string) string {
	return cachePrefix + "units:" + strings.ToLower(family) + ":" + strings.ToLower(option)
}

func applianceListKey(family string) string {
	return cachePrefix + "appliances:" + strings.ToLower(family)
}
