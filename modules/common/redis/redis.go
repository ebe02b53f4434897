package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"

	"muse-stream-server/modules/common/config"
	"muse-stream-server/modules/common/logger"
)

// Connect creates a Redis client and verifies connectivity with a ping.
// Returns nil when the server is unreachable; the caller decides whether
// that is fatal.
func Connect(cfg *config.Config) *redis.Client {
	log := logger.WithComponent("redis")
	log.Info().Str("addr", cfg.RedisAddr()).Msg("🔌 Connecting to Redis")

	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Msg("❌ Redis ping failed")
		return nil
	}

	return rdb
}
