package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmacore/pkg/domain"
)

// redisKV is the subset of the go-redis client used by RedisStore.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps settings as a JSON value under a single key.
type RedisStore struct {
	client redisKV
	key    string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = defaultKey
	}
	return &RedisStore{client: client, key: key}
}

// NewRedisStoreFromURL parses a redis:// URL and connects lazily.
func NewRedisStoreFromURL(rawURL, key string) (*RedisStore, error) {
	if rawURL == "" {
		rawURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), key), nil
}

// Key returns the redis key holding the settings.
func (r *RedisStore) Key() string { return r.key }

// Load implements Store.
func (r *RedisStore) Load(ctx context.Context) (domain.Settings, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Settings{}, false, nil
	}
	if err != nil {
		return domain.Settings{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	s, err := decode(raw)
	if err != nil {
		return domain.Settings{}, false, err
	}
	return s, true, nil
}

// Save implements Store. The value does not expire.
func (r *RedisStore) Save(ctx context.Context, s domain.Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}
