// Package redis dials the verification record cache. The rest of the
// codebase works against *redis.Client directly; this package only owns
// URL parsing, pool tuning and the startup ping.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"attesto/internal/platform/config"
)

// New connects a client from configuration and verifies the connection
// before returning it. A nil client with nil error means Redis is not
// configured and the caller should fall back to in-memory stores.
func New(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
