package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDataKey  = "kv:data"
	redisSizesKey = "kv:sizes"
	redisUsedKey  = "kv:used"
)

// Redis is a Store backed by a Redis hash, for deployments where the
// storefront, tracking, and notifier modes observe one shared store.
// The byte budget is tracked in a counter key next to the data; the small
// race between the budget check and the write is acceptable because key
// updates are last-writer-wins at the key level.
type Redis struct {
	client   *redis.Client
	capacity int64
}

// NewRedis connects, pings, and returns a Redis-backed store.
func NewRedis(ctx context.Context, addr, password string, db int, capacityBytes int64) (*Redis, error) {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{client: client, capacity: capacityBytes}, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	prev, err := r.client.HGet(ctx, redisSizesKey, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	var prevSize int64
	if prev != "" {
		prevSize, _ = strconv.ParseInt(prev, 10, 64)
	}

	used, err := r.client.Get(ctx, redisUsedKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	size := int64(len(key) + len(value))
	if used-prevSize+size > r.capacity {
		return ErrCapacityExceeded
	}

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, redisDataKey, key, value)
	pipe.HSet(ctx, redisSizesKey, key, strconv.FormatInt(size, 10))
	pipe.IncrBy(ctx, redisUsedKey, size-prevSize)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.HGet(ctx, redisDataKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	prev, err := r.client.HGet(ctx, redisSizesKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	prevSize, _ := strconv.ParseInt(prev, 10, 64)

	pipe := r.client.Pipeline()
	pipe.HDel(ctx, redisDataKey, key)
	pipe.HDel(ctx, redisSizesKey, key)
	pipe.DecrBy(ctx, redisUsedKey, prevSize)
	_, err = pipe.Exec(ctx)
	return err
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
