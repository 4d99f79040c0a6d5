package db

import (
	"context"
	"fmt"
	"time"

	"backend-gpslogger/internal/config"

	"github.com/redis/go-redis/v9"
)

var pingTimeout = 3 * time.Second

// ConnectRedis returns nil without error when no address is configured,
// which disables the cross-instance stream bridge.
func ConnectRedis(cfg config.Config) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}
