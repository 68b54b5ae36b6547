package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a single JSON blob under one key, so
// the whole-document semantics are the same as the file backend.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore initializes Redis storage.
// addr: e.g., "localhost:6379"
// prefix: key prefix (e.g., "relay_"). Final key is prefix + doc key
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if prefix == "" {
		prefix = "relay_"
	}

	return &RedisStore{
		client: rdb,
		prefix: prefix,
	}, nil
}

func (r *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	fullKey := r.prefix + key

	doc, err := r.client.Get(ctx, fullKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, doc []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	fullKey := r.prefix + key

	// Documents never expire (0)
	return r.client.Set(ctx, fullKey, doc, 0).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
