package repository

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/nsvirk/gitcoderapi/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maxAge = time.Hour

var alice = models.UserProfile{ID: 1, Login: "alice", Name: "Alice"}

type storeFactory func(t *testing.T, clock Clock) SessionStore

func memoryStore(t *testing.T, clock Clock) SessionStore {
	return NewMemorySessionStore(maxAge, clock)
}

func redisStore(t *testing.T, clock Clock) SessionStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sealer, err := NewTokenSealer("test-secret")
	require.NoError(t, err)
	return NewRedisSessionStore(client, sealer, maxAge, clock)
}

func TestSessionStores(t *testing.T) {
	stores := map[string]storeFactory{
		"memory": memoryStore,
		"redis":  redisStore,
	}
	for name, factory := range stores {
		t.Run(name, func(t *testing.T) {
			testSessionStore(t, factory)
		})
	}
}

func testSessionStore(t *testing.T, factory storeFactory) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := factory(t, clock)

		session, err := store.Create(ctx, "tok", alice)
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(session.ID)
		require.NoError(t, err)
		assert.Len(t, raw, 32)
		assert.Equal(t, clock.Now(), session.CreatedAt)

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "tok", got.AccessToken)
		assert.Equal(t, "alice", got.User.Login)
	})

	t.Run("ids are unique", func(t *testing.T) {
		store := factory(t, testutil.FixedClock())
		seen := map[string]bool{}
		for i := 0; i < 50; i++ {
			session, err := store.Create(ctx, "tok", alice)
			require.NoError(t, err)
			assert.False(t, seen[session.ID])
			seen[session.ID] = true
		}
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 50, count)
	})

	t.Run("unknown id", func(t *testing.T) {
		store := factory(t, testutil.FixedClock())
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("get touches and keeps session alive", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := factory(t, clock)
		session, err := store.Create(ctx, "tok", alice)
		require.NoError(t, err)

		clock.Advance(50 * time.Minute)
		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, clock.Now(), got.LastAccessedAt)

		clock.Advance(50 * time.Minute)
		_, err = store.Get(ctx, session.ID)
		require.NoError(t, err)
	})

	t.Run("touch is monotonic", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := factory(t, clock)
		session, err := store.Create(ctx, "tok", alice)
		require.NoError(t, err)
		created := clock.Now()

		clock.Set(created.Add(-time.Minute))
		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got.LastAccessedAt)
	})

	t.Run("expired session is absent and removed", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := factory(t, clock)
		session, err := store.Create(ctx, "tok", alice)
		require.NoError(t, err)

		clock.Advance(maxAge + time.Second)
		_, err = store.Get(ctx, session.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("delete", func(t *testing.T) {
		store := factory(t, testutil.FixedClock())
		session, err := store.Create(ctx, "tok", alice)
		require.NoError(t, err)

		deleted, err := store.Delete(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.Delete(ctx, session.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = store.Get(ctx, session.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("evict expired", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := factory(t, clock)
		old, err := store.Create(ctx, "old", alice)
		require.NoError(t, err)

		clock.Advance(40 * time.Minute)
		fresh, err := store.Create(ctx, "fresh", alice)
		require.NoError(t, err)

		clock.Advance(30 * time.Minute)
		removed, err := store.EvictExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = store.Get(ctx, old.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		_, err = store.Get(ctx, fresh.ID)
		assert.NoError(t, err)
	})

	t.Run("returned sessions are copies", func(t *testing.T) {
		store := factory(t, testutil.FixedClock())
		session, err := store.Create(ctx, "tok", alice)
		require.NoError(t, err)
		session.AccessToken = "changed"

		got, err := store.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "tok", got.AccessToken)
	})

	t.Run("concurrent access", func(t *testing.T) {
		store := factory(t, testutil.FixedClock())
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				session, err := store.Create(ctx, "tok", alice)
				if !assert.NoError(t, err) {
					return
				}
				_, err = store.Get(ctx, session.ID)
				assert.NoError(t, err)
				_, err = store.Delete(ctx, session.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestRedisSessionStore_TokenIsSealed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sealer, err := NewTokenSealer("test-secret")
	require.NoError(t, err)
	store := NewRedisSessionStore(client, sealer, maxAge, nil)

	session, err := store.Create(context.Background(), "ghp_plaintext", alice)
	require.NoError(t, err)

	raw, err := mr.Get(SessionKeyPrefix + session.ID)
	require.NoError(t, err)
	assert.NotContains(t, raw, "ghp_plaintext")
	assert.Equal(t, maxAge, mr.TTL(SessionKeyPrefix+session.ID))

	t.Run("other secret cannot open", func(t *testing.T) {
		other, err := NewTokenSealer("another-secret")
		require.NoError(t, err)
		rotated := NewRedisSessionStore(client, other, maxAge, nil)
		_, err = rotated.Get(context.Background(), session.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestTokenSealer(t *testing.T) {
	sealer, err := NewTokenSealer("s3cret")
	require.NoError(t, err)

	a, err := sealer.Seal("token")
	require.NoError(t, err)
	b, err := sealer.Seal("token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	opened, err := sealer.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "token", opened)

	_, err = sealer.Open("not-base64!")
	assert.Error(t, err)

	_, err = NewTokenSealer("")
	assert.Error(t, err)
}
