package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// browserKeyPrefix is the Redis key prefix for per-browser storage hashes.
const browserKeyPrefix = "browser:"

// redisBackend stores each browser's token and snapshot as fields of one
// Redis hash, so both are written and expired together.
type redisBackend struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisBackend creates a backend on the given Redis client. Each write
// refreshes the hash's TTL; a ttl <= 0 disables expiry.
func NewRedisBackend(rdb *redis.Client, ttl time.Duration) Backend {
	return &redisBackend{redis: rdb, ttl: ttl}
}

// ForBrowser returns the storage area for browserID.
func (b *redisBackend) ForBrowser(browserID string) Storage {
	return &redisStorage{backend: b, key: browserKeyPrefix + browserID}
}

type redisStorage struct {
	backend *redisBackend
	key     string
}

// Load reads both fields in one round trip.
func (s *redisStorage) Load(ctx context.Context) (Persisted, error) {
	vals, err := s.backend.redis.HMGet(ctx, s.key, KeyToken, KeyUser).Result()
	if err != nil {
		return Persisted{}, fmt.Errorf("reading browser storage from Redis: %w", err)
	}

	token, _ := vals[0].(string)
	user, _ := vals[1].(string)

	p, err := decodeSnapshot(user)
	if err != nil {
		return Persisted{Token: token}, err
	}
	return Persisted{Token: token, Principal: p}, nil
}

// Save replaces the hash inside MULTI/EXEC so a reader never sees a token
// without its snapshot.
func (s *redisStorage) Save(ctx context.Context, p Persisted) error {
	user, err := encodeSnapshot(p.Principal)
	if err != nil {
		return err
	}

	_, err = s.backend.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, KeyToken, p.Token, KeyUser, user)
		if s.backend.ttl > 0 {
			pipe.Expire(ctx, s.key, s.backend.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing browser storage to Redis: %w", err)
	}
	return nil
}

// Clear deletes the hash, removing both fields at once.
func (s *redisStorage) Clear(ctx context.Context) error {
	if err := s.backend.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("deleting browser storage from Redis: %w", err)
	}
	return nil
}
