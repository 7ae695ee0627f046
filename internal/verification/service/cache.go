package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
)

// DefaultResultTTL bounds staleness when a result row changes underneath the
// cache, on top of explicit invalidation.
const DefaultResultTTL = 5 * time.Minute

// RedisResultCache caches decision results in Redis. Satisfies ResultCache.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ResultCache = (*RedisResultCache)(nil)

func NewRedisResultCache(client *redis.Client, ttl time.Duration) *RedisResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &RedisResultCache{client: client, ttl: ttl}
}

func (c *RedisResultCache) Get(ctx context.Context, verificationID id.VerificationID) (*models.VerificationResult, error) {
	raw, err := c.client.Get(ctx, resultKey(verificationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get cached result: %w", err)
	}
	var result models.VerificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, nil
}

func (c *RedisResultCache) Set(ctx context.Context, result *models.VerificationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, resultKey(result.VerificationID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}
	return nil
}

func (c *RedisResultCache) Invalidate(ctx context.Context, verificationID id.VerificationID) error {
	if err := c.client.Del(ctx, resultKey(verificationID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached result: %w", err)
	}
	return nil
}

func resultKey(verificationID id.VerificationID) string {
	return "veridoc:result:" + verificationID.String()
}

// MemoryResultCache caches decision results in process, for single-instance
// deployments running without Redis. Satisfies ResultCache.
type MemoryResultCache struct {
	cache *gocache.Cache
}

var _ ResultCache = (*MemoryResultCache)(nil)

func NewMemoryResultCache(ttl time.Duration) *MemoryResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &MemoryResultCache{cache: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryResultCache) Get(_ context.Context, verificationID id.VerificationID) (*models.VerificationResult, error) {
	cached, ok := c.cache.Get(resultKey(verificationID))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	result, ok := cached.(*models.VerificationResult)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return result, nil
}

func (c *MemoryResultCache) Set(_ context.Context, result *models.VerificationResult) error {
	c.cache.SetDefault(resultKey(result.VerificationID), result)
	return nil
}

func (c *MemoryResultCache) Invalidate(_ context.Context, verificationID id.VerificationID) error {
	c.cache.Delete(resultKey(verificationID))
	return nil
}
