package redisstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/kvstore"
	"github.com/jrsteele09/go-auth-client/kvstore/redisstore"
	"github.com/jrsteele09/go-auth-client/kvstore/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniStore(t *testing.T, prefix string) (*redisstore.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rs, err := redisstore.New(context.Background(), redisstore.Options{Addr: mr.Addr(), Prefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, mr
}

func TestRedisStore(t *testing.T) {
	storetest.RunStoreTests(t, func(t *testing.T) kvstore.Store {
		rs, _ := newMiniStore(t, "notesauth:")
		return rs
	})
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	rs, mr := newMiniStore(t, "notesauth:")

	require.NoError(t, rs.Set(ctx, "auth.session.v2", []byte(`{"accessToken":"A"}`)))
	require.Equal(t, []string{"notesauth:auth.session.v2"}, mr.Keys())
	stored, err := mr.Get("notesauth:auth.session.v2")
	require.NoError(t, err)
	require.Equal(t, `{"accessToken":"A"}`, stored)

	require.NoError(t, mr.Set("auth.session.v2", "unprefixed"))
	v, err := rs.Get(ctx, "auth.session.v2")
	require.NoError(t, err)
	require.Equal(t, `{"accessToken":"A"}`, string(v))

	require.NoError(t, rs.Remove(ctx, "auth.session.v2"))
	require.False(t, mr.Exists("notesauth:auth.session.v2"))
	require.True(t, mr.Exists("auth.session.v2"), "keys outside the prefix are untouched")
}

func TestRedisStore_SharedServerPrefixesAreIsolated(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	alice := redisstore.NewWithClient(client, "device-a:")
	bob := redisstore.NewWithClient(client, "device-b:")

	require.NoError(t, alice.Set(ctx, "k", []byte("a")))
	_, err := bob.Get(ctx, "k")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestRedisStore_ServerErrorIsNotNotFound(t *testing.T) {
	ctx := context.Background()
	rs, mr := newMiniStore(t, "")

	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, err := rs.Get(ctx, "k")
	require.Error(t, err)
	require.NotErrorIs(t, err, kvstore.ErrNotFound)
	require.Error(t, rs.Set(ctx, "k", []byte("v")))
	require.Error(t, rs.Remove(ctx, "k"))

	mr.SetError("")
	_, err = rs.Get(ctx, "k")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
}

// Runs the same contract against a real server when one is available.
func TestRedisStore_LiveServer(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	storetest.RunStoreTests(t, func(t *testing.T) kvstore.Store {
		rs, err := redisstore.New(context.Background(), redisstore.Options{
			Addr:   addr,
			Prefix: "test:" + uuid.NewString() + ":",
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rs.Close() })
		return rs
	})
}

func TestRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := redisstore.New(ctx, redisstore.Options{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
