package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/noisersup/filesmanager/models"
)

// Redis is a models.Cache backed by a redigo connection pool
type Redis struct {
	pool *redis.Pool
}

func NewRedisPool(url string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 4 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, url)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewRedis(pool *redis.Pool) *Redis {
	return &Redis{pool: pool}
}

func (r *Redis) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return redis.DoContext(conn, ctx, cmd, args...)
}

// Get is a plain GET, the key's TTL is left untouched
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := redis.String(r.do(ctx, "GET", key))
	if errors.Is(err, redis.ErrNil) {
		return "", models.ErrCacheMiss
	}
	return v, err
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	_, err := r.do(ctx, "SETEX", key, secs, value)
	return err
}

// Del relies on DEL's count so that concurrent deletes of one key see a
// single winner
func (r *Redis) Del(ctx context.Context, key string) (bool, error) {
	n, err := redis.Int(r.do(ctx, "DEL", key))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	_, err := r.do(ctx, "PING")
	return err
}

func (r *Redis) Close() error {
	return r.pool.Close()
}
