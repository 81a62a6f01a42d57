package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/discovery-widget/internal/config"
	"github.com/wolfman30/discovery-widget/internal/conversation"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildStateStore returns the Redis-backed conversation store when Redis is
// available, otherwise an in-memory one.
func BuildStateStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) conversation.Store {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Info("conversation state kept in memory")
		return conversation.NewMemoryStore()
	}
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.StateTTL
	}
	logger.Info("conversation state kept in redis", "ttl", ttl)
	return conversation.NewRedisStore(redisClient, nil, ttl)
}
