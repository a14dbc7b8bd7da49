package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/trackgen/internal/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Options struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func newClient(o Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
	})
}

// RedisCache is a cache.Store on top of plain Redis strings.
type RedisCache struct {
	c *redis.Client
}

var _ cache.Store = (*RedisCache)(nil)

func New(o Options) *RedisCache {
	return &RedisCache{c: newClient(o)}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, cache.Unavailable(err, "redis get")
	}
	return val, true, nil
}

func (r *RedisCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return cache.Unavailable(err, "redis set")
	}
	return nil
}

// SetIfAbsentWithTTL is SET key value NX PX ttl.
func (r *RedisCache) SetIfAbsentWithTTL(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.c.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, cache.Unavailable(err, "redis setnx")
	}
	return ok, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.c.Ping(ctx).Err(); err != nil {
		return cache.Unavailable(err, "redis ping")
	}
	return nil
}

func (r *RedisCache) Close() error {
	return errors.Wrap(r.c.Close(), "redis close")
}
