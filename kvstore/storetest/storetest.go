// Package storetest holds the behaviour every kvstore.Store backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/jrsteele09/go-auth-client/kvstore"
	"github.com/stretchr/testify/require"
)

func RunStoreTests(t *testing.T, newStore func(t *testing.T) kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("absent key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "auth.session.v2", []byte(`{"a":1}`)))
		v, err := s.Get(ctx, "auth.session.v2")
		require.NoError(t, err)
		require.JSONEq(t, `{"a":1}`, string(v))
	})

	t.Run("set overwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", []byte("one")))
		require.NoError(t, s.Set(ctx, "k", []byte("two")))
		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "two", string(v))
	})

	t.Run("remove", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", []byte("v")))
		require.NoError(t, s.Remove(ctx, "k"))
		_, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("remove absent key", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Remove(ctx, "never-set"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "a", []byte("1")))
		require.NoError(t, s.Set(ctx, "b", []byte("2")))
		require.NoError(t, s.Remove(ctx, "a"))
		v, err := s.Get(ctx, "b")
		require.NoError(t, err)
		require.Equal(t, "2", string(v))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Set(ctx, "shared", []byte("value"))
			}()
		}
		wg.Wait()
		v, err := s.Get(ctx, "shared")
		require.NoError(t, err)
		require.Equal(t, "value", string(v))
	})
}
