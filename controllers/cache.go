package controllers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const listingKeyPattern = "property:*"

// ListingCache stores rendered public listing pages in Redis. A nil client
// disables caching.
type ListingCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewListingCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ListingCache {
	return &ListingCache{rdb: rdb, ttl: ttl, logger: logger.Named("cache")}
}

func generateCacheKey(queryParams url.Values) string {
	keys := make([]string, 0, len(queryParams))
	for k := range queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		values := append([]string(nil), queryParams[key]...)
		sort.Strings(values)
		for _, val := range values {
			sb.WriteString(key)
			sb.WriteString("=")
			sb.WriteString(val)
			sb.WriteString("&")
		}
	}
	rawKey := strings.TrimSuffix(sb.String(), "&")

	sum := sha256.Sum256([]byte(rawKey))
	return "property:" + hex.EncodeToString(sum[:])
}

func (c *ListingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	c.logger.Debug("cache hit", zap.String("key", key))
	return data, true
}

func (c *ListingCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache response", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached listing page.
func (c *ListingCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	const scanCount = 100

	var keysToDelete []string
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, listingKeyPattern, scanCount).Result()
		if err != nil {
			c.logger.Warn("redis scan failed", zap.String("pattern", listingKeyPattern), zap.Error(err))
			return
		}
		keysToDelete = append(keysToDelete, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if len(keysToDelete) == 0 {
		return
	}

	pipe := c.rdb.Pipeline()
	for _, key := range keysToDelete {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("failed to invalidate listing cache", zap.Int("keys", len(keysToDelete)), zap.Error(err))
		return
	}
	c.logger.Debug("listing cache invalidated", zap.Int("keys", len(keysToDelete)))
}

// invalidateAsync runs Invalidate off the request path.
func (c *ListingCache) invalidateAsync() {
	if c == nil || c.rdb == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Invalidate(ctx)
	}()
}
