// internal/profile/redis.go
//
// Redis-backed profile store, for deployments without a writable disk.
// Records are stored as JSON under a prefixed key with a long TTL that is
// refreshed on every write.

package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const (
	redisKeyPrefix = "worlde:profile:"
	// redisTTL keeps idle profiles for half a year; refreshed on each write.
	redisTTL = 180 * 24 * time.Hour
)

// RedisStore implements Store over a redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore { return &RedisStore{client: client} }

// ConnectRedis dials Redis, retrying the initial ping with exponential
// backoff so the server survives a slow-starting sidecar.
func ConnectRedis(ctx context.Context, host, port, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         host + ":" + port,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.Retry(func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", host+":"+port).Msg("redis ping failed, retrying")
			return err
		}
		return nil
	}, policy)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("profile: connect redis: %w", err)
	}
	log.Info().Str("addr", host+":"+port).Msg("connected to redis")
	return client, nil
}

func key(userID string) string { return redisKeyPrefix + userID }

func (s *RedisStore) Get(ctx context.Context, userID string) (*Record, error) {
	data, err := s.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: redis get: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	return &r, nil
}

func (s *RedisStore) Insert(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key(r.UserID), data, redisTTL).Result()
	if err != nil {
		return fmt.Errorf("profile: redis insert: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	ok, err := s.client.SetXX(ctx, key(r.UserID), data, redisTTL).Result()
	if err != nil {
		return fmt.Errorf("profile: redis update: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Upsert(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("profile: encode: %w", err)
	}
	if err := s.client.Set(ctx, key(r.UserID), data, redisTTL).Err(); err != nil {
		return fmt.Errorf("profile: redis upsert: %w", err)
	}
	return nil
}
