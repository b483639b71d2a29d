// Redis client wrapper
//
// Manages the Redis connection used by the optional persisted session
// store:
// - Connection pooling (handled by go-redis internally)
// - Command execution helpers
// - Error handling
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eyevinn/sgai-proxy/internal/config"
)

// Client wraps a go-redis client for the session store and health checker.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Client from the session store configuration.
func NewClient(cfg config.SessionStoreConfig) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{rdb: rdb}
}

// Raw exposes the underlying go-redis client for callers that need it
// directly (the store and health checker).
func (c *Client) Raw() *redis.Client { return c.rdb }

// Close closes the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Ping checks connectivity within the given timeout.
func (c *Client) Ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}
