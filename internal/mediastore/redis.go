package mediastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore shares blobs across multiple server instances. Redis handles
// expiry itself via the key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

func dataKey(id string) string { return "media:" + id + ":data" }
func typeKey(id string) string { return "media:" + id + ":type" }

func (s *RedisStore) Put(ctx context.Context, contentType string, data []byte) (string, error) {
	id := uuid.NewString()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, dataKey(id), data, s.ttl)
	pipe.Set(ctx, typeKey(id), contentType, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Blob, error) {
	pipe := s.client.Pipeline()
	dataCmd := pipe.Get(ctx, dataKey(id))
	typeCmd := pipe.Get(ctx, typeKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, fmt.Errorf("fetch blob: %w", err)
	}

	data, err := dataCmd.Bytes()
	if err != nil {
		return Blob{}, ErrNotFound
	}
	return Blob{
		ID:          id,
		ContentType: typeCmd.Val(),
		Data:        data,
	}, nil
}
