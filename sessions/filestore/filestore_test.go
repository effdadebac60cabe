package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/sessions"
	"github.com/jrsteele09/zhancare-client/sessions/filestore"
	"github.com/jrsteele09/zhancare-client/users"
)

const testPassphrase = "correct horse battery staple"

func newStore(t *testing.T, path string, opts ...filestore.Option) *filestore.Store {
	t.Helper()
	s, err := filestore.New(path, opts...)
	require.NoError(t, err)
	return s
}

func TestStore_PlainRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := newStore(t, path)

	values, err := s.MultiGet(ctx, sessions.CredentialKeys...)
	require.NoError(t, err)
	require.Empty(t, values)

	require.NoError(t, s.MultiSet(ctx, map[string]string{"a": "1", "b": "2"}))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.MultiRemove(ctx, "a"))
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.MultiRemove(ctx, "b", "missing"))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "empty store removes its file")
}

func TestStore_Encrypted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	s := newStore(t, path, filestore.WithPassphrase(testPassphrase))
	require.NoError(t, s.MultiSet(ctx, map[string]string{sessions.KeyAccessToken: "secret-access"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret-access")

	t.Run("same passphrase reads", func(t *testing.T) {
		reopened := newStore(t, path, filestore.WithPassphrase(testPassphrase))
		v, ok, err := reopened.Get(ctx, sessions.KeyAccessToken)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "secret-access", v)
	})

	t.Run("wrong passphrase fails", func(t *testing.T) {
		reopened := newStore(t, path, filestore.WithPassphrase("wrong"))
		_, _, err := reopened.Get(ctx, sessions.KeyAccessToken)
		require.ErrorIs(t, err, errors.ErrStorage)
	})

	t.Run("no passphrase fails", func(t *testing.T) {
		reopened := newStore(t, path)
		_, err := reopened.MultiGet(ctx, sessions.KeyAccessToken)
		require.ErrorIs(t, err, errors.ErrStorage)
	})
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	s := newStore(t, path)
	_, err := s.MultiGet(context.Background(), sessions.KeyUser)
	require.Error(t, err)
}

func TestStore_SessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	user := &users.User{ID: "5", Name: "Dana", Email: "dana@zhancare.kz"}

	first, err := sessions.NewStore(newStore(t, path, filestore.WithPassphrase(testPassphrase)))
	require.NoError(t, err)
	require.NoError(t, first.Login(ctx, user, &oauth2.Token{AccessToken: "a1", RefreshToken: "r1"}))

	second, err := sessions.NewStore(newStore(t, path, filestore.WithPassphrase(testPassphrase)))
	require.NoError(t, err)
	require.NoError(t, second.Restore(ctx))
	require.True(t, second.IsAuthenticated())
	require.Equal(t, user, second.User())

	require.NoError(t, second.Logout(ctx))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := filestore.New("")
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}
