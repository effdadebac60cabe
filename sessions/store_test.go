package sessions_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/zhancare-client/internal/errors"
	"github.com/jrsteele09/zhancare-client/sessions"
	sessionrepofake "github.com/jrsteele09/zhancare-client/sessions/repofake"
	"github.com/jrsteele09/zhancare-client/users"
)

const (
	testAccess  = "access-t1"
	testRefresh = "refresh-r1"
)

var testUser = &users.User{ID: "1", Name: "Aigerim", Email: "aigerim@zhancare.kz", Role: users.RolePatient}

type testFixture struct {
	storage *sessionrepofake.FakeStorage
	store   *sessions.Store

	mu     sync.Mutex
	events []sessions.Event
}

func setupTestFixture(t *testing.T, opts ...sessions.StoreOption) *testFixture {
	t.Helper()

	f := &testFixture{storage: sessionrepofake.NewFakeStorage()}
	store, err := sessions.NewStore(f.storage, opts...)
	require.NoError(t, err)
	f.store = store

	unsubscribe := store.Subscribe(func(e sessions.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.events = append(f.events, e)
	})
	t.Cleanup(unsubscribe)
	return f
}

func (f *testFixture) seedSession(t *testing.T) {
	t.Helper()
	raw, err := json.Marshal(testUser)
	require.NoError(t, err)
	f.storage.Seed(map[string]string{
		sessions.KeyAccessToken:  testAccess,
		sessions.KeyRefreshToken: testRefresh,
		sessions.KeyUser:         string(raw),
	})
}

func (f *testFixture) eventKinds() []sessions.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]sessions.EventKind, 0, len(f.events))
	for _, e := range f.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (f *testFixture) lastEvent(t *testing.T) sessions.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.events)
	return f.events[len(f.events)-1]
}

func testToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: testAccess, RefreshToken: testRefresh}
}

func requireReady(t *testing.T, s *sessions.Store) {
	t.Helper()
	select {
	case <-s.Ready():
	default:
		t.Fatal("store not ready")
	}
}

func TestNewStore_RequiresStorage(t *testing.T) {
	_, err := sessions.NewStore(nil)
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestStore_Restore(t *testing.T) {
	t.Run("cold start with valid session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedSession(t)

		require.NoError(t, f.store.Restore(context.Background()))
		requireReady(t, f.store)
		require.True(t, f.store.IsAuthenticated())
		require.Equal(t, testUser, f.store.User())

		tok, ok := f.store.Token()
		require.True(t, ok)
		require.Equal(t, testAccess, tok.AccessToken)
		require.Equal(t, testRefresh, tok.RefreshToken)

		e := f.lastEvent(t)
		require.Equal(t, sessions.EventRestored, e.Kind)
		require.True(t, e.Authenticated)
	})

	t.Run("partial state is not authenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storage.Seed(map[string]string{
			sessions.KeyAccessToken:  testAccess,
			sessions.KeyRefreshToken: testRefresh,
		})

		require.NoError(t, f.store.Restore(context.Background()))
		require.False(t, f.store.IsAuthenticated())
		require.Nil(t, f.store.User())
		_, ok := f.store.Token()
		require.False(t, ok)
	})

	t.Run("corrupt user is not authenticated", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedSession(t)
		f.storage.Seed(map[string]string{sessions.KeyUser: "{not json"})

		require.NoError(t, f.store.Restore(context.Background()))
		require.False(t, f.store.IsAuthenticated())
	})

	t.Run("storage failure is not fatal", func(t *testing.T) {
		f := setupTestFixture(t)
		f.seedSession(t)
		f.storage.FailOn(sessionrepofake.OpMultiGet, errors.ErrStorage)

		require.NoError(t, f.store.Restore(context.Background()))
		requireReady(t, f.store)
		require.False(t, f.store.IsAuthenticated())
	})

	t.Run("honours minimum duration", func(t *testing.T) {
		f := setupTestFixture(t, sessions.WithMinRestoreDuration(60*time.Millisecond))
		f.seedSession(t)

		start := time.Now()
		require.NoError(t, f.store.Restore(context.Background()))
		require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
		require.True(t, f.store.IsAuthenticated())
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		f := setupTestFixture(t, sessions.WithMinRestoreDuration(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, f.store.Restore(ctx), context.Canceled)
		requireReady(t, f.store)
	})
}

func TestStore_Login(t *testing.T) {
	t.Run("persists all keys", func(t *testing.T) {
		f := setupTestFixture(t)

		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))
		require.True(t, f.store.IsAuthenticated())
		require.Equal(t, testUser, f.store.User())

		stored := f.storage.Snapshot()
		require.Equal(t, testAccess, stored[sessions.KeyAccessToken])
		require.Equal(t, testRefresh, stored[sessions.KeyRefreshToken])
		require.JSONEq(t, `{"id":"1","name":"Aigerim","email":"aigerim@zhancare.kz","role":"patient"}`, stored[sessions.KeyUser])
		require.Equal(t, 1, f.storage.Calls(sessionrepofake.OpMultiSet))
		require.Equal(t, []sessions.EventKind{sessions.EventLogin}, f.eventKinds())
	})

	t.Run("storage failure leaves nothing persisted", func(t *testing.T) {
		f := setupTestFixture(t)
		f.storage.FailOn(sessionrepofake.OpMultiSet, errors.ErrStorage)

		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))
		require.True(t, f.store.IsAuthenticated())
		require.Empty(t, f.storage.Snapshot())
	})

	t.Run("rejects incomplete credentials", func(t *testing.T) {
		f := setupTestFixture(t)

		err := f.store.Login(context.Background(), &users.User{}, testToken())
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)

		err = f.store.Login(context.Background(), testUser, &oauth2.Token{AccessToken: testAccess})
		require.ErrorIs(t, err, errors.ErrInvalidCredentials)

		require.False(t, f.store.IsAuthenticated())
		require.Empty(t, f.eventKinds())
	})

	t.Run("returned user is a copy", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))

		u := f.store.User()
		u.Name = "changed"
		require.Equal(t, "Aigerim", f.store.User().Name)
	})
}

func TestStore_Logout(t *testing.T) {
	t.Run("login then logout", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))

		require.NoError(t, f.store.Logout(context.Background()))
		require.False(t, f.store.IsAuthenticated())
		require.Nil(t, f.store.User())
		require.Empty(t, f.storage.Snapshot())
	})

	t.Run("idempotent", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))

		require.NoError(t, f.store.Logout(context.Background()))
		require.NoError(t, f.store.Logout(context.Background()))
		require.False(t, f.store.IsAuthenticated())
		require.Empty(t, f.storage.Snapshot())
		require.Equal(t, []sessions.EventKind{sessions.EventLogin, sessions.EventLogout}, f.eventKinds())
	})

	t.Run("storage failure still clears memory", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))
		f.storage.FailOn(sessionrepofake.OpMultiRemove, errors.ErrStorage)

		require.NoError(t, f.store.Logout(context.Background()))
		require.False(t, f.store.IsAuthenticated())
	})
}

func TestStore_ForceLogout(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))

	f.store.ForceLogout(context.Background(), "refresh rejected")

	require.False(t, f.store.IsAuthenticated())
	require.Empty(t, f.storage.Snapshot())
	e := f.lastEvent(t)
	require.Equal(t, sessions.EventForcedLogout, e.Kind)
	require.Equal(t, "refresh rejected", e.Reason)
	require.Nil(t, e.User)
}

func TestStore_UpdateAccessToken(t *testing.T) {
	t.Run("persists new token", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))

		require.NoError(t, f.store.UpdateAccessToken(context.Background(), testRefresh, "access-t2"))
		tok, ok := f.store.Token()
		require.True(t, ok)
		require.Equal(t, "access-t2", tok.AccessToken)
		require.Equal(t, testRefresh, tok.RefreshToken)
		require.Equal(t, "access-t2", f.storage.Snapshot()[sessions.KeyAccessToken])
	})

	t.Run("after logout", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.store.UpdateAccessToken(context.Background(), testRefresh, "access-t2")
		require.ErrorIs(t, err, errors.ErrNotAuthenticated)
		require.Empty(t, f.storage.Snapshot())
	})

	t.Run("after another login", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))
		require.NoError(t, f.store.Logout(context.Background()))
		other := &users.User{ID: "2", Name: "Bolat", Email: "bolat@zhancare.kz"}
		require.NoError(t, f.store.Login(context.Background(), other,
			&oauth2.Token{AccessToken: "b-access", RefreshToken: "b-refresh"}))

		err := f.store.UpdateAccessToken(context.Background(), testRefresh, "a-refreshed")
		require.ErrorIs(t, err, errors.ErrSessionChanged)

		tok, ok := f.store.Token()
		require.True(t, ok)
		require.Equal(t, "b-access", tok.AccessToken)
		require.Equal(t, "b-refresh", tok.RefreshToken)
		require.Equal(t, "2", f.store.User().ID.String())
		require.Equal(t, "b-access", f.storage.Snapshot()[sessions.KeyAccessToken])
	})

	t.Run("logout waits for the persisted update", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))

		entered, release := f.storage.Hold(sessionrepofake.OpMultiSet)
		updated := make(chan error, 1)
		go func() {
			updated <- f.store.UpdateAccessToken(context.Background(), testRefresh, "access-t2")
		}()
		<-entered

		loggedOut := make(chan struct{})
		go func() {
			_ = f.store.Logout(context.Background())
			close(loggedOut)
		}()
		release()

		require.NoError(t, <-updated)
		<-loggedOut
		require.False(t, f.store.IsAuthenticated())
		require.Empty(t, f.storage.Snapshot(), "no access token left behind")
	})
}

func TestStore_Subscribe(t *testing.T) {
	f := setupTestFixture(t)

	var count int
	unsubscribe := f.store.Subscribe(func(sessions.Event) { count++ })
	require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))
	unsubscribe()
	unsubscribe()
	require.NoError(t, f.store.Logout(context.Background()))

	require.Equal(t, 1, count)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.store.Login(context.Background(), testUser, testToken()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.store.UpdateAccessToken(context.Background(), testRefresh, "access-concurrent")
		}()
		go func() {
			defer wg.Done()
			_, _ = f.store.Token()
			_ = f.store.IsAuthenticated()
		}()
	}
	wg.Wait()

	tok, ok := f.store.Token()
	require.True(t, ok)
	require.Equal(t, "access-concurrent", tok.AccessToken)
}
