package redisstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/zhancare-client/sessions/redisstore"
)

func TestNewFromURL(t *testing.T) {
	t.Run("invalid url", func(t *testing.T) {
		_, err := redisstore.NewFromURL("http://not-redis")
		require.Error(t, err)
	})

	t.Run("empty operations do not touch redis", func(t *testing.T) {
		s, err := redisstore.NewFromURL("redis://127.0.0.1:1/0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		values, err := s.MultiGet(context.Background())
		require.NoError(t, err)
		require.Empty(t, values)
		require.NoError(t, s.MultiSet(context.Background(), nil))
		require.NoError(t, s.MultiRemove(context.Background()))
	})
}
