package dedupe

import (
	"context"
	"time"

	platformredis "mentora/internal/platform/redis"
	dErrors "mentora/pkg/domain-errors"
)

const keyPrefix = "saga:event:"

// RedisStore shares dedupe markers across replicas using SETNX with a TTL.
type RedisStore struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedisStore(client *platformredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) MarkIfFirst(ctx context.Context, eventID string) (bool, error) {
	first, err := s.client.SetNX(ctx, keyPrefix+eventID, "1", s.ttl).Result()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "dedupe marker write failed")
	}
	return first, nil
}

func (s *RedisStore) Unmark(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "dedupe marker delete failed")
	}
	return nil
}
