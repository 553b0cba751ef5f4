package preference

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps boolean preferences as fields of one Redis hash
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store backed by the hash at key
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
	}
}

func (s *RedisStore) GetBool(ctx context.Context, key string, defaultValue bool) (bool, error) {
	raw, err := s.client.HGet(ctx, s.key, key).Result()
	if err == redis.Nil {
		return defaultValue, nil
	}
	if err != nil {
		return defaultValue, err
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("preference %s holds non-boolean value %q", key, raw)
	}
	return value, nil
}

func (s *RedisStore) SetBool(ctx context.Context, key string, value bool) error {
	return s.client.HSet(ctx, s.key, key, strconv.FormatBool(value)).Err()
}
