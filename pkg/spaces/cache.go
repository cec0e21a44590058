package spaces

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/c10r/freetool-sub006/pkg/observability"
)

// RedisMappingCache decorates a MappingStore with Redis caching. Reads are
// cached under a generation counter; every write bumps the generation, which
// orphans all cached entries at once instead of tracking individual keys.
type RedisMappingCache struct {
	store   MappingStore
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

const mappingGenKey = "mappings:gen"

// NewRedisMappingCache creates a cache layer over store. metrics may be nil.
func NewRedisMappingCache(store MappingStore, client *redis.Client, ttl time.Duration, metrics *observability.Metrics) *RedisMappingCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &RedisMappingCache{
		store:   store,
		redis:   client,
		ttl:     ttl,
		metrics: metrics,
	}
}

// GetAll returns every mapping, served from cache when fresh.
func (c *RedisMappingCache) GetAll(ctx context.Context) ([]GroupSpaceMapping, error) {
	key, ok := c.cacheKey(ctx, "all")
	if ok {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			var mappings []GroupSpaceMapping
			if err := json.Unmarshal([]byte(cached), &mappings); err == nil {
				c.countHit()
				return mappings, nil
			}
		}
	}
	c.countMiss()

	mappings, err := c.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, ok, mappings)
	return mappings, nil
}

// GetSpaceIDsByGroupKeys resolves group keys to space ids, served from cache
// when fresh. The cache key hashes the sorted key set.
func (c *RedisMappingCache) GetSpaceIDsByGroupKeys(ctx context.Context, keys []string) ([]uuid.UUID, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	sum := sha256.Sum256([]byte(strings.Join(keys, "\x00")))
	key, ok := c.cacheKey(ctx, "keys:"+hex.EncodeToString(sum[:8]))
	if ok {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			var ids []uuid.UUID
			if err := json.Unmarshal([]byte(cached), &ids); err == nil {
				c.countHit()
				return ids, nil
			}
		}
	}
	c.countMiss()

	ids, err := c.store.GetSpaceIDsByGroupKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, ok, ids)
	return ids, nil
}

// Add writes through and invalidates the cache.
func (c *RedisMappingCache) Add(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error {
	if err := c.store.Add(ctx, userID, groupKey, spaceID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Deactivate writes through and invalidates the cache.
func (c *RedisMappingCache) Deactivate(ctx context.Context, userID uuid.UUID, groupKey string, spaceID uuid.UUID) error {
	if err := c.store.Deactivate(ctx, userID, groupKey, spaceID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// cacheKey builds a generation-scoped key. ok is false when redis is
// unreachable, in which case callers skip the cache entirely.
func (c *RedisMappingCache) cacheKey(ctx context.Context, suffix string) (string, bool) {
	gen, err := c.redis.Get(ctx, mappingGenKey).Result()
	if err == redis.Nil {
		gen = "0"
	} else if err != nil {
		return "", false
	}
	return fmt.Sprintf("mappings:%s:%s", gen, suffix), true
}

func (c *RedisMappingCache) put(ctx context.Context, key string, ok bool, value interface{}) {
	if !ok {
		return
	}
	if data, err := json.Marshal(value); err == nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}
}

// invalidate bumps the generation counter so stale entries expire via TTL.
func (c *RedisMappingCache) invalidate(ctx context.Context) {
	c.redis.Incr(ctx, mappingGenKey)
}

func (c *RedisMappingCache) countHit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("mappings").Inc()
	}
}

func (c *RedisMappingCache) countMiss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("mappings").Inc()
	}
}
