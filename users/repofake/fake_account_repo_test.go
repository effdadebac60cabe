package fakeuserrepo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/users"
	fakeuserrepo "github.com/jrsteele09/zhancare-client/users/repofake"
)

func TestFakeAccountRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeAccountRepo()

	a := &users.Account{Profile: users.Profile{Email: "Aigerim@ZhanCare.kz", FirstName: "Aigerim", Role: users.RolePatient}}
	require.NoError(t, repo.Upsert(a))
	require.NotEmpty(t, a.ID)

	t.Run("lookup ignores case", func(t *testing.T) {
		got, err := repo.GetByEmail(" aigerim@zhancare.kz")
		require.NoError(t, err)
		require.Equal(t, a.ID, got.ID)
	})

	t.Run("returns copies", func(t *testing.T) {
		got, err := repo.GetByID(a.ID)
		require.NoError(t, err)
		got.FirstName = "changed"

		again, err := repo.GetByID(a.ID)
		require.NoError(t, err)
		require.Equal(t, "Aigerim", again.FirstName)
	})

	t.Run("duplicate email", func(t *testing.T) {
		err := repo.Upsert(&users.Account{Profile: users.Profile{Email: "aigerim@zhancare.kz"}})
		require.ErrorIs(t, err, errors.ErrDuplicateUser)
	})

	t.Run("email change frees the old address", func(t *testing.T) {
		moved := &users.Account{Profile: users.Profile{ID: a.ID, Email: "new@zhancare.kz", Role: users.RolePatient}}
		require.NoError(t, repo.Upsert(moved))

		_, err := repo.GetByEmail("aigerim@zhancare.kz")
		require.ErrorIs(t, err, errors.ErrNotFound)
		require.NoError(t, repo.Upsert(&users.Account{Profile: users.Profile{Email: "aigerim@zhancare.kz", Role: users.RoleDoctor}}))
	})

	t.Run("list by role", func(t *testing.T) {
		doctors, err := repo.List(users.RoleDoctor)
		require.NoError(t, err)
		require.Len(t, doctors, 1)

		all, err := repo.List("")
		require.NoError(t, err)
		require.Len(t, all, 2)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByID("nope")
		require.ErrorIs(t, err, errors.ErrNotFound)
	})
}

func TestPasswordHash(t *testing.T) {
	users.PasswordCost = 4
	hash, err := users.HashPassword("password123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("password123", hash))
	require.False(t, users.CheckPasswordHash("password124", hash))
}
