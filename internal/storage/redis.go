// Package storage keeps analysis history and quota counters in Redis.
package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kkkkkxiaofei/web-agent/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	clientName  = "web-agent"
	dialTimeout = 2 * time.Second
)

// Client is a connected Redis client plus the key scheme for one prefix
type Client struct {
	rdb  *redis.Client
	keys *Keys
}

// Options translates the config into go-redis options; the password is
// read from the variable named by PasswordEnv
func Options(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:        cfg.Address,
		DB:          cfg.DB,
		ClientName:  clientName,
		DialTimeout: dialTimeout,
	}
	if cfg.PasswordEnv != "" {
		opts.Password = os.Getenv(cfg.PasswordEnv)
	}
	return opts
}

// NewClient connects and pings; the connection is closed again if the ping fails
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(Options(cfg))

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Client{
		rdb:  rdb,
		keys: NewKeys(cfg.KeyPrefix),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis returns the underlying client
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Keys returns the key scheme
func (c *Client) Keys() *Keys {
	return c.keys
}
