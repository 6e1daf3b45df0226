// Package store persists the verification-completion marker keyed by
// invitation token. The marker is the only verification state that survives
// a reload; everything else in the flow is session-transient.
package store

import (
	"context"
	"time"

	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// VerificationStore is injected into the verification service so the flow is
// testable without a live Redis (see MemoryStore).
type VerificationStore interface {
	MarkComplete(ctx context.Context, token string) error
	IsComplete(ctx context.Context, token string) (bool, error)
	Clear(ctx context.Context, token string) error
}

// RedisStore is the production VerificationStore. Markers carry a TTL so
// abandoned invitations do not accumulate forever.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl means markers never expire.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) MarkComplete(ctx context.Context, token string) error {
	return s.rdb.Set(ctx, config.CacheKey.VerificationMarkerKey(token), "1", s.ttl).Err()
}

func (s *RedisStore) IsComplete(ctx context.Context, token string) (bool, error) {
	_, err := s.rdb.Get(ctx, config.CacheKey.VerificationMarkerKey(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) Clear(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, config.CacheKey.VerificationMarkerKey(token)).Err()
}
