package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	t.Run("connects with default pool", func(t *testing.T) {
		mr := miniredis.RunT(t)

		rdb, err := NewRedisClient(context.Background(), ClientOptions{Addr: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })

		assert.Equal(t, 20, rdb.Options().PoolSize)
		assert.Equal(t, 2, rdb.Options().MinIdleConns)
	})

	t.Run("authenticates", func(t *testing.T) {
		mr := miniredis.RunT(t)
		mr.RequireUserAuth("scheduler", "s3cret")

		_, err := NewRedisClient(context.Background(), ClientOptions{Addr: mr.Addr(), Username: "scheduler", Password: "wrong"})
		require.Error(t, err)

		rdb, err := NewRedisClient(context.Background(), ClientOptions{Addr: mr.Addr(), Username: "scheduler", Password: "s3cret", PoolSize: 4})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })
		assert.Equal(t, 1, rdb.Options().MinIdleConns)
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := NewRedisClient(context.Background(), ClientOptions{Addr: addr})
		require.Error(t, err)
		assert.Contains(t, err.Error(), addr)
	})
}
