//go:build integration

package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/zhancare-client/sessions"
	"github.com/jrsteele09/zhancare-client/sessions/redisstore"
	"github.com/jrsteele09/zhancare-client/users"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestStore_Redis(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	s := redisstore.New(client, redisstore.WithPrefix("test:"), redisstore.WithTTL(time.Hour))

	t.Run("set get remove", func(t *testing.T) {
		require.NoError(t, s.MultiSet(ctx, map[string]string{"a": "1", "b": "2"}))

		v, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "1", v)

		values, err := s.MultiGet(ctx, "a", "b", "c")
		require.NoError(t, err)
		require.Equal(t, map[string]string{"a": "1", "b": "2"}, values)

		ttl, err := client.TTL(ctx, "test:a").Result()
		require.NoError(t, err)
		require.Greater(t, ttl, time.Duration(0))

		require.NoError(t, s.MultiRemove(ctx, "a", "b"))
		_, ok, err = s.Get(ctx, "a")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("session round trip", func(t *testing.T) {
		user := &users.User{ID: "9", Name: "Nurlan", Email: "nurlan@zhancare.kz"}

		first, err := sessions.NewStore(s)
		require.NoError(t, err)
		require.NoError(t, first.Login(ctx, user, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))

		second, err := sessions.NewStore(s)
		require.NoError(t, err)
		require.NoError(t, second.Restore(ctx))
		require.True(t, second.IsAuthenticated())
		require.Equal(t, user, second.User())

		require.NoError(t, second.Logout(ctx))
		n, err := client.Exists(ctx, "test:access_token", "test:refresh_token", "test:user").Result()
		require.NoError(t, err)
		require.Zero(t, n)
	})
}
