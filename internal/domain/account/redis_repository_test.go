package account

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client for testing
func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL environment variable not set, skipping Redis integration tests")
	}

	opt, err := redis.ParseURL(redisURL)
	require.NoError(t, err, "Failed to parse Redis URL")

	client := redis.NewClient(opt)
	_, err = client.Ping(context.Background()).Result()
	require.NoError(t, err, "Failed to connect to Redis")

	return client
}

func testRepositories(t *testing.T) map[string]Repository {
	repos := map[string]Repository{
		"memory": NewMemoryRepository(),
	}
	if os.Getenv("REDIS_URL") != "" {
		client := setupTestRedis(t)
		prefix := fmt.Sprintf("test:%d:", time.Now().UnixNano())
		t.Cleanup(func() {
			ctx := context.Background()
			keys, _ := client.Keys(ctx, prefix+"*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
			client.Close()
		})
		repos["redis"] = NewRedisRepository(client, prefix)
	}
	return repos
}

func TestRepository_SaveListDelete(t *testing.T) {
	for name, repo := range testRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			u1, _ := NewIdentity("u1", "Ada", true, WithFilesRoot("/data"))
			fallback := NonSignedIn(WithFilesRoot("/data"))

			require.NoError(t, repo.Save(ctx, u1))
			require.NoError(t, repo.Save(ctx, fallback))

			identities, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, identities, 2)
			assert.Equal(t, NonSignedInKey, identities[0].Key())
			assert.True(t, identities[0].IsNonSignedIn())
			assert.Equal(t, u1, identities[1])

			require.NoError(t, repo.Delete(ctx, "u1", "missing"))

			identities, err = repo.List(ctx)
			require.NoError(t, err)
			assert.Len(t, identities, 1)
		})
	}
}

func TestRepository_Current(t *testing.T) {
	for name, repo := range testRepositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			key, err := repo.GetCurrent(ctx)
			require.NoError(t, err)
			assert.Empty(t, key)

			require.NoError(t, repo.SaveCurrent(ctx, "u1"))

			key, err = repo.GetCurrent(ctx)
			require.NoError(t, err)
			assert.Equal(t, "u1", key)
		})
	}
}
