package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Uni298/OSMStudio/internal/config"
	"github.com/Uni298/OSMStudio/pkg/core"
)

const sessionKeyPrefix = "session:"

// RedisStore persists sessions as JSON values in Redis. Update uses
// WATCH-based check-and-set so concurrent read-modify-write cycles retry
// instead of clobbering each other.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// Create persists a new session.
func (r *RedisStore) Create(ctx context.Context, s *core.ExportSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, sessionKey(s.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionExists
	}
	return nil
}

// Get returns the session with the given ID.
func (r *RedisStore) Get(ctx context.Context, id string) (*core.ExportSession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s core.ExportSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// Update applies mutate under WATCH. If the key changes between read and
// write the transaction fails and the cycle retries.
func (r *RedisStore) Update(ctx context.Context, id string, mutate func(*core.ExportSession) error) (*core.ExportSession, error) {
	key := sessionKey(id)

	for attempt := 0; attempt < updateRetries; attempt++ {
		var updated *core.ExportSession

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			if err != nil {
				return err
			}

			var working core.ExportSession
			if err := json.Unmarshal(data, &working); err != nil {
				return fmt.Errorf("unmarshal session: %w", err)
			}
			if err := mutate(&working); err != nil {
				return err
			}
			working.UpdatedAt = time.Now().UTC()

			out, err := json.Marshal(&working)
			if err != nil {
				return fmt.Errorf("marshal session: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, out, 0)
				return nil
			})
			if err == nil {
				updated = &working
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("session: update contention on %s", id)
}

// Delete removes the session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

// List returns all sessions by scanning the key prefix.
func (r *RedisStore) List(ctx context.Context) ([]*core.ExportSession, error) {
	var out []*core.ExportSession

	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var s core.ExportSession
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		out = append(out, &s)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
