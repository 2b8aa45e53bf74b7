package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewClientConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewClient(Config{Addr: mr.Addr(), PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.Ping(context.Background()).Err())
}

func TestNewClientUnreachableServer(t *testing.T) {
	_, err := NewClient(Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
