package redisx

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/accountd/pkg/config"
	"github.com/danghamo/accountd/pkg/logger"
)

// redisURL returns REDIS_URL or skips the test
func redisURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping Redis test")
	}
	return url
}

func resetPrivateDBs(t *testing.T, url string) {
	t.Helper()
	options, err := redis.ParseURL(url)
	require.NoError(t, err)
	options.DB = 0

	rdb := redis.NewClient(options)
	defer rdb.Close()
	rdb.Del(context.Background(), privateDBHash, privateDBCounter)
}

func TestNewClient_Rejects(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		_, err := NewClient(ctx, config.RedisConfig{URL: "redis://localhost:6379/0"}, logger.NewNop())
		assert.Error(t, err)
	})

	t.Run("empty URL", func(t *testing.T) {
		_, err := NewClient(ctx, config.RedisConfig{Enabled: true}, logger.NewNop())
		assert.Error(t, err)
	})

	t.Run("malformed URL", func(t *testing.T) {
		_, err := NewClient(ctx, config.RedisConfig{Enabled: true, URL: "not-a-url"}, logger.NewNop())
		assert.ErrorContains(t, err, "parse")
	})
}

func TestNewClient_UnreachableServer(t *testing.T) {
	cfg := config.RedisConfig{Enabled: true, URL: "redis://127.0.0.1:1/0"}

	_, err := NewClient(context.Background(), cfg, logger.NewNop())

	assert.ErrorContains(t, err, "failed to connect")
}

func TestClient_Keys(t *testing.T) {
	c := &Client{keyPrefix: "accountd:"}

	assert.Equal(t, "accountd:", c.KeyPrefix())
	assert.Equal(t, "accountd:preferences", c.Key("preferences"))
	assert.Equal(t, "accountd:account:u1", c.Key("account", "u1"))
}

func TestNewClient_Connects(t *testing.T) {
	url := redisURL(t)

	client, err := NewClient(context.Background(), config.RedisConfig{
		Enabled:   true,
		URL:       url,
		KeyPrefix: "accountd-test:",
	}, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	latency, err := client.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Positive(t, latency)
}

func TestReservePrivateDB(t *testing.T) {
	url := redisURL(t)
	resetPrivateDBs(t, url)
	defer resetPrivateDBs(t, url)

	options, err := redis.ParseURL(url)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("assigns increasing databases per host", func(t *testing.T) {
		first, err := reservePrivateDB(ctx, options, "host-1")
		require.NoError(t, err)
		second, err := reservePrivateDB(ctx, options, "host-2")
		require.NoError(t, err)

		assert.Equal(t, 1, first)
		assert.Equal(t, 2, second)
	})

	t.Run("keeps the assignment for a known host", func(t *testing.T) {
		again, err := reservePrivateDB(ctx, options, "host-1")
		require.NoError(t, err)
		assert.Equal(t, 1, again)
	})

	t.Run("rejects an empty hostname", func(t *testing.T) {
		_, err := reservePrivateDB(ctx, options, "")
		assert.Error(t, err)
	})
}

func TestNewClient_PrivateUsesReservedDB(t *testing.T) {
	url := redisURL(t)
	resetPrivateDBs(t, url)
	defer resetPrivateDBs(t, url)

	client, err := NewClient(context.Background(), config.RedisConfig{
		Enabled: true,
		URL:     url,
		Private: true,
	}, logger.NewNop())
	require.NoError(t, err)
	defer client.Close()

	assert.NotZero(t, client.Options().DB)
}
