package cache

import (
	"context"
	"testing"
	"time"

	"github.com/noisersup/filesmanager/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "auth_a", "user1", time.Hour))

	v, err := m.Get(ctx, "auth_a")
	require.NoError(t, err)
	assert.Equal(t, "user1", v)

	// reading must not push the deadline
	now = now.Add(59 * time.Minute)
	_, err = m.Get(ctx, "auth_a")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, "auth_a")
	assert.ErrorIs(t, err, models.ErrCacheMiss)
}

func Test_MemoryDel(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	removed, err := m.Del(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, models.ErrCacheMiss)

	removed, err = m.Del(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, removed)
}

func Test_MemoryDelExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	now = now.Add(time.Minute)

	removed, err := m.Del(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)
}
