package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists session credentials in Redis with a TTL matching the
// session's remaining lifetime.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: "portal:session:",
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Save persists the entry. The Redis TTL is shortened by the credential's
// age so the stored entry dies no later than the session itself.
func (s *RedisStore) Save(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if entry.Credential == "" {
		return fmt.Errorf("session: missing credential")
	}

	remaining := ttl - time.Since(entry.AuthenticatedAt)
	if remaining <= 0 {
		return fmt.Errorf("session: entry already expired")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("session: marshal entry: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(key), data, remaining).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Load retrieves the entry for key.
func (s *RedisStore) Load(ctx context.Context, key string) (*Entry, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("session: unmarshal entry: %w", err)
	}

	return &entry, nil
}

// Delete removes the entry for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
