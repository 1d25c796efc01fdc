package cache

import (
	"context"
	"sync"
	"time"

	"github.com/noisersup/filesmanager/models"
)

type entry struct {
	value   string
	expires time.Time
}

// Memory is an in-process models.Cache with per-key expiry
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: map[string]entry{}, now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return "", models.ErrCacheMiss
	}
	if !m.now().Before(e.expires) {
		delete(m.items, key)
		return "", models.ErrCacheMiss
	}
	return e.value, nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	m.items[key] = entry{value: value, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Del(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	delete(m.items, key)
	return ok && m.now().Before(e.expires), nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
