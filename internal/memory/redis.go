package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "landmarkd:conversation:"

var _ Store = (*RedisStore)(nil)

// RedisStore keeps conversations in Redis, one JSON value per
// conversation with the key TTL doubling as the idle-expiry clock. Redis
// evicts expired keys itself, so Get never sees a stale conversation and
// PurgeExpired has nothing to sweep.
//
// Per-id serialization holds within one process via the same striped key
// mutex the in-memory store uses; multi-process deployments that need
// cross-process exclusion should front this with a distributed lock.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	keys   keyLocks
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("memory.redis"),
	}, nil
}

// Get implements Store. A hit refreshes the key TTL.
func (s *RedisStore) Get(ctx context.Context, id string) (*Conversation, error) {
	unlock := s.keys.lock(id)
	defer unlock()

	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}

	conv.LastAccess = time.Now()
	if err := s.write(ctx, id, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, id string, turn Turn) error {
	unlock := s.keys.lock(id)
	defer unlock()

	now := time.Now()
	conv := &Conversation{ID: id, CreatedAt: now}

	raw, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// new conversation
	case err != nil:
		return fmt.Errorf("redis get: %w", err)
	default:
		if err := json.Unmarshal(raw, conv); err != nil {
			return fmt.Errorf("failed to decode conversation %s: %w", id, err)
		}
	}

	conv.Turns = append(conv.Turns, turn)
	conv.LastAccess = now
	return s.write(ctx, id, conv)
}

// Delete implements Store. Idempotent.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	unlock := s.keys.lock(id)
	defer unlock()

	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// PurgeExpired implements Store. Redis key expiry handles eviction.
func (s *RedisStore) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) write(ctx context.Context, id string, conv *Conversation) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode conversation %s: %w", id, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+id, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
