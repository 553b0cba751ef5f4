// Package redisx connects accountd to Redis and owns the key namespace the
// account repository and preference store write under.
package redisx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danghamo/accountd/pkg/config"
	"github.com/danghamo/accountd/pkg/logger"
)

const (
	connectTimeout = 5 * time.Second

	// private database assignments live in DB 0
	privateDBHash    = "accountd:private_db"
	privateDBCounter = "accountd:private_db:next"
)

// Client is a connected Redis client scoped to one key prefix
type Client struct {
	*redis.Client
	keyPrefix string
	logger    *logger.Logger
}

// NewClient connects using the redis config section. With Private set the
// client moves to a database reserved for this host.
func NewClient(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, errors.New("redis is disabled")
	}
	if cfg.URL == "" {
		return nil, errors.New("redis URL cannot be empty")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	options, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if cfg.Private {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("failed to get hostname: %w", err)
		}
		db, err := reservePrivateDB(ctx, options, hostname)
		if err != nil {
			return nil, err
		}
		options.DB = db
	}

	client := &Client{
		Client:    redis.NewClient(options),
		keyPrefix: cfg.KeyPrefix,
		logger:    log.WithComponent("redisx"),
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	client.logger.Info("Redis client connected",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
		zap.Bool("private_db", cfg.Private),
		zap.String("key_prefix", cfg.KeyPrefix))
	return client, nil
}

// KeyPrefix returns the prefix every accountd key starts with
func (c *Client) KeyPrefix() string {
	return c.keyPrefix
}

// Key joins parts with ":" under the client prefix
func (c *Client) Key(parts ...string) string {
	return c.keyPrefix + strings.Join(parts, ":")
}

// HealthCheck pings Redis and reports the round trip
func (c *Client) HealthCheck(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := c.Ping(ctx).Err()
	latency := time.Since(start)
	if err != nil {
		c.logger.Warn("Redis ping failed", zap.Error(err), zap.Duration("latency", latency))
		return latency, err
	}
	return latency, nil
}

// Close closes the connection pool
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")
	return c.Client.Close()
}

// reservePrivateDB returns the database number assigned to hostname, assigning
// the next free one on first use. Several developers can then share one server.
func reservePrivateDB(ctx context.Context, options *redis.Options, hostname string) (int, error) {
	if hostname == "" {
		return 0, errors.New("hostname cannot be empty")
	}

	admin := *options
	admin.DB = 0
	rdb := redis.NewClient(&admin)
	defer rdb.Close()

	assigned, err := rdb.HGet(ctx, privateDBHash, hostname).Result()
	if errors.Is(err, redis.Nil) {
		next, err := rdb.HIncrBy(ctx, privateDBCounter, "db", 1).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to allocate private DB: %w", err)
		}
		// a concurrent caller for the same host may have won; keep its number
		if _, err := rdb.HSetNX(ctx, privateDBHash, hostname, next).Result(); err != nil {
			return 0, fmt.Errorf("failed to assign private DB: %w", err)
		}
		assigned, err = rdb.HGet(ctx, privateDBHash, hostname).Result()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read private DB assignment: %w", err)
	}

	db, err := strconv.Atoi(assigned)
	if err != nil {
		return 0, fmt.Errorf("invalid private DB assignment %q: %w", assigned, err)
	}
	return db, nil
}
