package config

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InitRedis connects to Redis. It returns nil when the server is
// unreachable; callers run without caching and rate limiting in that case.
func InitRedis(c *Config, logger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, caching and rate limiting disabled",
			zap.String("addr", c.RedisAddr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	logger.Info("connected to Redis", zap.String("addr", c.RedisAddr))
	return client
}
