package kv

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bdb, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })

	return map[string]Backend{
		"memory": NewMemory(),
		"redis":  NewRedis(rdb),
		"badger": bdb,
	}
}

func TestBackendContract(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := b.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Set(ctx, "k", []byte("v1")))
			require.NoError(t, b.Set(ctx, "k", []byte("v2")))
			got, err := b.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))

			require.NoError(t, b.Delete(ctx, "k"))
			_, err = b.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting twice is fine
			assert.NoError(t, b.Delete(ctx, "k"))
		})
	}
}

func TestRedisValuesDoNotExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, r.Set(context.Background(), "chess:slot-1", []byte("x")))
	assert.Equal(t, int64(0), int64(mr.TTL("chess:slot-1")))
}

func TestOpenRedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Set(context.Background(), "a", []byte("b")))
	v, err := mr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = OpenRedis(context.Background(), "::not a url")
	assert.Error(t, err)
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", buf))
	buf[0] = 'z'
	got, _ := m.Get(context.Background(), "k")
	assert.Equal(t, "abc", string(got))
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}
