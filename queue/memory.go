package queue

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryBroker is a single-process Broker. Producers and consumers must
// share the same instance.
type MemoryBroker struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	signal chan struct{}
	wait   time.Duration
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		lists:  map[string][][]byte{},
		signal: make(chan struct{}, 1),
		wait:   100 * time.Millisecond,
	}
}

func (b *MemoryBroker) Push(ctx context.Context, list string, msg []byte) error {
	b.mu.Lock()
	b.lists[list] = append([][]byte{append([]byte(nil), msg...)}, b.lists[list]...)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
	return nil
}

func (b *MemoryBroker) Pop(ctx context.Context, list string) ([]byte, error) {
	if msg := b.take(list); msg != nil {
		return msg, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.signal:
	case <-time.After(b.wait):
	}
	return b.take(list), nil
}

// take moves the oldest message of list to its processing list
func (b *MemoryBroker) take(list string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.lists[list]
	if len(msgs) == 0 {
		return nil
	}
	msg := msgs[len(msgs)-1]
	b.lists[list] = msgs[:len(msgs)-1]
	b.lists[processing(list)] = append([][]byte{msg}, b.lists[processing(list)]...)
	return msg
}

func (b *MemoryBroker) Ack(ctx context.Context, list string, msg []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.lists[processing(list)]
	for i, m := range p {
		if bytes.Equal(m, msg) {
			b.lists[processing(list)] = append(p[:i:i], p[i+1:]...)
			break
		}
	}
	return nil
}

func (b *MemoryBroker) Recover(ctx context.Context, list string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.lists[processing(list)]
	for i := len(p) - 1; i >= 0; i-- {
		b.lists[list] = append([][]byte{p[i]}, b.lists[list]...)
	}
	delete(b.lists, processing(list))
	return len(p), nil
}

// Messages returns a copy of list, newest first
func (b *MemoryBroker) Messages(list string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.lists[list]...)
}

func (b *MemoryBroker) Close() error { return nil }
