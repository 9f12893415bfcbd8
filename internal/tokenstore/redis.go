package tokenstore

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const redisKey = "digiclassroom:session:tokens"

// RedisStore keeps the record in redis, for kiosk and shared-terminal
// deployments where session state outlives any one machine.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: redisKey}
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return Record{}, ErrNoTokens
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, ErrNoTokens
	}
	if rec.IsZero() {
		return Record{}, ErrNoTokens
	}
	return rec, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
