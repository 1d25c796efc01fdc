package queue

import (
	"context"
	"errors"

	"github.com/gomodule/redigo/redis"
)

// popTimeout is the BRPOPLPUSH timeout in seconds; it bounds how long a
// consumer takes to notice cancellation.
const popTimeout = 1

// RedisBroker keeps each queue in a Redis list. In-flight messages sit in
// "<list>:processing" until acknowledged.
type RedisBroker struct {
	pool *redis.Pool
}

func NewRedisBroker(pool *redis.Pool) *RedisBroker {
	return &RedisBroker{pool: pool}
}

func processing(list string) string {
	return list + ":processing"
}

func (b *RedisBroker) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return redis.DoContext(conn, ctx, cmd, args...)
}

func (b *RedisBroker) Push(ctx context.Context, list string, msg []byte) error {
	_, err := b.do(ctx, "LPUSH", list, msg)
	return err
}

func (b *RedisBroker) Pop(ctx context.Context, list string) ([]byte, error) {
	msg, err := redis.Bytes(b.do(ctx, "BRPOPLPUSH", list, processing(list), popTimeout))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	return msg, err
}

func (b *RedisBroker) Ack(ctx context.Context, list string, msg []byte) error {
	_, err := b.do(ctx, "LREM", processing(list), 1, msg)
	return err
}

// Recover should only run while no other consumer of list is busy, otherwise
// their in-flight jobs get delivered twice.
func (b *RedisBroker) Recover(ctx context.Context, list string) (int, error) {
	n := 0
	for {
		_, err := redis.Bytes(b.do(ctx, "RPOPLPUSH", processing(list), list))
		if errors.Is(err, redis.ErrNil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (b *RedisBroker) Close() error {
	return b.pool.Close()
}
