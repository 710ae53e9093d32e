package kv

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storesUnderTest(t *testing.T) map[string]Store {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Store{
		"redis":  NewRedisStore(client),
		"memory": NewMemoryStore(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, KeyLanguage)
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, store.Set(ctx, KeyLanguage, []byte("FR")))
			got, err := store.Get(ctx, KeyLanguage)
			require.NoError(t, err)
			assert.Equal(t, "FR", string(got))

			require.NoError(t, store.Delete(ctx, KeyLanguage))
			_, err = store.Get(ctx, KeyLanguage)
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestRedisStoreUsesExactKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client)

	require.NoError(t, store.Set(context.Background(), KeyOnboarded, []byte("true")))
	v, err := mr.Get("guardian_onboarded")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, store.Set(context.Background(), "k", buf))
	buf[0] = 'z'
	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestOpenFallsBackToMemory(t *testing.T) {
	store, client := Open(context.Background(), RedisOptions{}, nil)
	assert.Nil(t, client)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}

func TestOpenUsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)
	store, client := Open(context.Background(), RedisOptions{Addr: mr.Addr()}, nil)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
	_, ok := store.(*RedisStore)
	assert.True(t, ok)
}
