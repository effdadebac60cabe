package refresh_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/token/refresh"
	refreshrepofake "github.com/jrsteele09/zhancare-client/token/refresh/repofake"
)

func TestManager(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	refresh.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { refresh.NowTimeFunc = time.Now })

	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m := refresh.NewManager(repo, time.Hour)

	t.Run("create and validate", func(t *testing.T) {
		tok, err := m.Create("u1")
		require.NoError(t, err)
		require.Len(t, tok, 64)

		rt, err := m.Validate(tok)
		require.NoError(t, err)
		require.Equal(t, "u1", rt.UserID)
	})

	t.Run("create replaces previous token", func(t *testing.T) {
		first, err := m.Create("u2")
		require.NoError(t, err)
		second, err := m.Create("u2")
		require.NoError(t, err)

		_, err = m.Validate(first)
		require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
		_, err = m.Validate(second)
		require.NoError(t, err)
	})

	t.Run("expired token is rejected and removed", func(t *testing.T) {
		tok, err := m.Create("u3")
		require.NoError(t, err)

		now = now.Add(2 * time.Hour)
		_, err = m.Validate(tok)
		require.ErrorIs(t, err, errors.ErrInvalidRefreshToken)

		_, err = repo.Get(tok)
		require.ErrorIs(t, err, errors.ErrNotFound)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := m.Validate("")
		require.ErrorIs(t, err, errors.ErrMissingRefreshToken)
	})
}
