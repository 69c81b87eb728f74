package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trackwise/trackwise/internal/auth"
)

const keyPrefix = "session:"

// RedisStore implements Store on top of Redis string keys with expiry.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Load returns the identity stored under id.
func (s *RedisStore) Load(ctx context.Context, id string) (*auth.Identity, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var identity auth.Identity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &identity, nil
}

// Save stores the identity under id for ttl.
func (s *RedisStore) Save(ctx context.Context, id string, identity *auth.Identity, ttl time.Duration) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
