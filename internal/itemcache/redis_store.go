package itemcache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"tierboard/searchservice/internal/domain"
)

// DefaultStoreKey is the fixed key the serialized item registry lives under.
const DefaultStoreKey = "tierboard-media-registry"

// RedisStore persists the cache snapshot as a JSON array under a single key.
// The array form preserves insertion order through reloads.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultStoreKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]domain.MediaItem, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var items []domain.MediaItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *RedisStore) Save(ctx context.Context, items []domain.MediaItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
