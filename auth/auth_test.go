package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/noisersup/filesmanager/cache"
	"github.com/noisersup/filesmanager/database/memory"
	"github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
	"github.com/noisersup/filesmanager/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	queue   string
	payload []byte
}

type mockPublisher struct {
	jobs []published
	err  error
}

func (m *mockPublisher) Publish(ctx context.Context, name string, payload []byte) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, published{name, payload})
	return nil
}

func newTestAuth() (*Auth, *memory.Database, *cache.Memory, *mockPublisher) {
	db := memory.New()
	c := cache.NewMemory()
	p := &mockPublisher{}
	return NewAuth(db, c, p, 24*time.Hour, logger.Discard()), db, c, p
}

func basic(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

func Test_HashPassword(t *testing.T) {
	assert.Equal(t, "5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8", HashPassword("password"))
}

func Test_ConnectResolvesToRegisteredUser(t *testing.T) {
	ctx := context.Background()
	a, _, c, _ := newTestAuth()

	u, err := a.Register(ctx, "a@b.com", "pw1")
	require.NoError(t, err)

	token, err := a.Connect(ctx, basic("a@b.com", "pw1"))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := a.ResolveUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.Id, id)

	stored, err := c.Get(ctx, "auth_"+token)
	require.NoError(t, err)
	assert.Equal(t, u.Id.String(), stored)

	other, err := a.Connect(ctx, basic("a@b.com", "pw1"))
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func Test_ConnectFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newTestAuth()
	_, err := a.Register(ctx, "a@b.com", "pw1")
	require.NoError(t, err)

	headers := []string{
		"",
		"Bearer abc",
		"Basic !!!notbase64",
		"Basic " + base64.StdEncoding.EncodeToString([]byte("no-colon")),
		basic("", "pw1"),
		basic("a@b.com", ""),
		basic("nobody@b.com", "pw1"),
		basic("a@b.com", "wrong"),
	}
	for _, h := range headers {
		_, err := a.Connect(ctx, h)
		assert.Equal(t, models.ErrUnauthorized, err, "header %q", h)
	}
}

func Test_DisconnectRevokesOnce(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newTestAuth()
	_, err := a.Register(ctx, "a@b.com", "pw1")
	require.NoError(t, err)
	token, err := a.Connect(ctx, basic("a@b.com", "pw1"))
	require.NoError(t, err)

	require.NoError(t, a.Disconnect(ctx, token))

	_, err = a.ResolveUser(ctx, token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.ErrorIs(t, a.Disconnect(ctx, token), models.ErrUnauthorized)
	assert.ErrorIs(t, a.Disconnect(ctx, ""), models.ErrUnauthorized)
}

// gatedCache holds every Get until all expected reads are done, so concurrent
// callers all observe the session before any of them deletes it
type gatedCache struct {
	models.Cache
	reads sync.WaitGroup
}

func (g *gatedCache) Get(ctx context.Context, key string) (string, error) {
	v, err := g.Cache.Get(ctx, key)
	g.reads.Done()
	g.reads.Wait()
	return v, err
}

func Test_ConcurrentDisconnectRevokesOnce(t *testing.T) {
	ctx := context.Background()
	a, _, c, _ := newTestAuth()
	_, err := a.Register(ctx, "a@b.com", "pw1")
	require.NoError(t, err)
	token, err := a.Connect(ctx, basic("a@b.com", "pw1"))
	require.NoError(t, err)

	gated := &gatedCache{Cache: c}
	gated.reads.Add(2)
	a.cache = gated

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- a.Disconnect(ctx, token) }()
	}

	var ok, unauthorized int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrUnauthorized):
			unauthorized++
		default:
			t.Fatalf("unexpected error: %s", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, unauthorized)
}

func Test_ResolveUserRejectsMalformedSession(t *testing.T) {
	ctx := context.Background()
	a, _, c, _ := newTestAuth()
	require.NoError(t, c.Set(ctx, "auth_tok", "not-a-uuid", time.Hour))

	_, err := a.ResolveUser(ctx, "tok")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func Test_Register(t *testing.T) {
	ctx := context.Background()
	a, db, _, p := newTestAuth()

	_, err := a.Register(ctx, "", "pw")
	msg, ok := models.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "Missing email", msg)

	_, err = a.Register(ctx, "a@b.com", "")
	msg, _ = models.IsValidation(err)
	assert.Equal(t, "Missing password", msg)

	u, err := a.Register(ctx, "a@b.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, HashPassword("pw1"), u.PasswordHash)

	_, err = a.Register(ctx, "a@b.com", "other")
	msg, _ = models.IsValidation(err)
	assert.Equal(t, "Already exist", msg)

	n, err := db.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.Len(t, p.jobs, 1)
	assert.Equal(t, models.UserQueue, p.jobs[0].queue)
	var job models.UserJob
	require.NoError(t, json.Unmarshal(p.jobs[0].payload, &job))
	assert.Equal(t, u.Id.String(), job.UserId)
}

func Test_RegisterSurvivesQueueOutage(t *testing.T) {
	ctx := context.Background()
	a, _, _, p := newTestAuth()
	p.err = errors.New("redis down")

	_, err := a.Register(ctx, "a@b.com", "pw1")
	assert.NoError(t, err)
}

func Test_Me(t *testing.T) {
	ctx := context.Background()
	a, _, c, _ := newTestAuth()
	u, err := a.Register(ctx, "a@b.com", "pw1")
	require.NoError(t, err)
	token, err := a.Connect(ctx, basic("a@b.com", "pw1"))
	require.NoError(t, err)

	me, err := a.Me(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.Email, me.Email)

	// session pointing at a user that is gone
	require.NoError(t, c.Set(ctx, "auth_ghost", uuid.New().String(), time.Hour))
	_, err = a.Me(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func Test_Welcome(t *testing.T) {
	ctx := context.Background()
	a, _, _, _ := newTestAuth()
	u, err := a.Register(ctx, "a@b.com", "pw1")
	require.NoError(t, err)

	payload, _ := json.Marshal(models.UserJob{UserId: u.Id.String()})
	assert.NoError(t, a.Welcome(ctx, payload))

	err = a.Welcome(ctx, []byte(`{}`))
	assert.True(t, queue.IsPermanent(err))
	assert.EqualError(t, err, "Missing userId")

	payload, _ = json.Marshal(models.UserJob{UserId: uuid.New().String()})
	err = a.Welcome(ctx, payload)
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
}
