package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Redis implements Cache on a shared Redis instance so entries survive
// restarts and are visible to every API process.
type Redis struct {
	client *redis.Client
	prefix string
}

// RedisOptions holds Redis connection settings.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, eris.Wrapf(err, "cache: redis ping %s", opts.Addr)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "findius:"
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Get retrieves a value from Redis.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: redis get")
	}
	return val, nil
}

// Set stores a value with TTL.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return eris.Wrap(c.client.Set(ctx, c.prefix+key, value, ttl).Err(), "cache: redis set")
}

// Delete removes a value.
func (c *Redis) Delete(ctx context.Context, key string) error {
	return eris.Wrap(c.client.Del(ctx, c.prefix+key).Err(), "cache: redis delete")
}

// Close closes the Redis connection.
func (c *Redis) Close() error {
	return c.client.Close()
}
