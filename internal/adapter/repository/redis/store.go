package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the subset of redis.Cmdable used by JSONStore.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// JSONStore keeps one value as a JSON string under a single key. SET replaces
// the whole document at once, so readers see either the old or the new value.
type JSONStore[T any] struct {
	client Client
	key    string
	logger *slog.Logger
}

// NewJSONStore creates a Redis-backed store for key.
func NewJSONStore[T any](client Client, key string, logger *slog.Logger) *JSONStore[T] {
	return &JSONStore[T]{
		client: client,
		key:    key,
		logger: logger.With("component", "redis_store", "key", key),
	}
}

func (s *JSONStore[T]) Load(ctx context.Context) (T, error) {
	var value T
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return value, nil
		}
		return value, fmt.Errorf("failed to GET %s from redis: %w", s.key, err)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return value, fmt.Errorf("failed to decode %s: %w", s.key, err)
	}
	return value, nil
}

func (s *JSONStore[T]) Replace(ctx context.Context, value T) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.key, err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to SET %s in redis: %w", s.key, err)
	}
	s.logger.Debug("Document replaced", "bytes", len(payload))
	return nil
}

// Ping reports whether Redis is reachable.
func (s *JSONStore[T]) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
