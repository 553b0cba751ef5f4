package account

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danghamo/accountd/internal/domain/shared"
)

const (
	accountIndexKey   = "idx:account:all"
	currentAccountKey = "account:current"
)

// RedisRepository implements Repository using Redis hashes
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a new Redis-based account repository.
// prefix separates sessions sharing one Redis database.
func NewRedisRepository(client *redis.Client, prefix string) Repository {
	return &RedisRepository{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisRepository) accountKey(key string) string {
	return fmt.Sprintf("%saccount:%s", r.prefix, key)
}

// Save inserts or replaces an identity and its index entry atomically
func (r *RedisRepository) Save(ctx context.Context, identity Identity) error {
	if identity.IsZero() {
		return shared.ErrInvalidInput("Cannot persist an empty identity")
	}

	key := r.accountKey(identity.Key())
	data, err := json.Marshal(toRecord(identity, time.Now().UnixMilli()))
	if err != nil {
		return fmt.Errorf("failed to serialize account: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "data", string(data))
		pipe.SAdd(ctx, r.prefix+accountIndexKey, identity.Key())
		return nil
	})
	return err
}

// Delete removes identities and their index entries
func (r *RedisRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, r.accountKey(key))
			pipe.SRem(ctx, r.prefix+accountIndexKey, key)
		}
		return nil
	})
	return err
}

// List returns every persisted identity sorted by key
func (r *RedisRepository) List(ctx context.Context) ([]Identity, error) {
	keys, err := r.client.SMembers(ctx, r.prefix+accountIndexKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	identities := make([]Identity, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.HGet(ctx, r.accountKey(key), "data").Result()
		if err == redis.Nil {
			// Index entry outlived its hash; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}

		var rec record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to deserialize account %s: %w", key, err)
		}

		identity, err := rec.identity()
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}

	return identities, nil
}

// SaveCurrent records the current account key
func (r *RedisRepository) SaveCurrent(ctx context.Context, key string) error {
	return r.client.Set(ctx, r.prefix+currentAccountKey, key, 0).Err()
}

// GetCurrent returns the recorded current account key
func (r *RedisRepository) GetCurrent(ctx context.Context) (string, error) {
	key, err := r.client.Get(ctx, r.prefix+currentAccountKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key, nil
}
