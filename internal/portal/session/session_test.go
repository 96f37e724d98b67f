package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gymslim/portal/internal/portal/domain"
)

func testUser() domain.User {
	return domain.User{
		ID:                 "01JTESTUSER",
		Username:           "fred",
		Name:               "Fred Dagg",
		BookingEmail:       "fred@example.com",
		MustChangePassword: true,
	}
}

func TestTransitions(t *testing.T) {
	s := New()
	require.Equal(t, StateAnonymous, s.State)
	require.False(t, s.IsAuthenticated())
	require.Empty(t, s.UserID())

	s.BeginMFA("01JTESTUSER")
	require.Equal(t, StatePendingMFA, s.State)
	require.Equal(t, "01JTESTUSER", s.PendingUserID)
	require.False(t, s.IsAuthenticated())

	s.Authenticate(testUser())
	require.True(t, s.IsAuthenticated())
	require.Equal(t, "01JTESTUSER", s.UserID())
	require.Empty(t, s.PendingUserID)
	require.True(t, s.MustChangePassword)

	s.Reset()
	require.Equal(t, StateAnonymous, s.State)
	require.Nil(t, s.User)
	require.False(t, s.MustChangePassword)
}

func TestAuthenticateClearsEnrollment(t *testing.T) {
	s := New()
	s.Authenticate(testUser())
	s.EnrollmentSecret = "JBSWY3DPEHPK3PXP"

	// A second login must not inherit the half-finished enrollment.
	s.Authenticate(testUser())
	require.Empty(t, s.EnrollmentSecret)
}

func TestRefreshSnapshot(t *testing.T) {
	s := New()
	u := testUser()
	s.Authenticate(u)

	u.MFAEnabled = true
	u.MustChangePassword = false
	s.RefreshSnapshot(u)
	require.True(t, s.User.MFAEnabled)
	require.False(t, s.MustChangePassword)

	// No-op outside an authenticated session.
	anon := New()
	anon.RefreshSnapshot(u)
	require.Nil(t, anon.User)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	s := New()
	s.Authenticate(testUser())
	require.NoError(t, store.Put(ctx, "k1", s, time.Minute))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "01JTESTUSER", got.UserID())

	// Mutating the returned copy must not leak into the store.
	got.Reset()
	again, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, again.IsAuthenticated())

	require.NoError(t, store.Delete(ctx, "k1"))
	_, err = store.Get(ctx, "k1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k1", New(), -time.Second))
	_, err := store.Get(ctx, "k1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoresNeverRetainCookieToken(t *testing.T) {
	ctx := context.Background()

	s := New()
	s.Authenticate(testUser())
	s.ID = "raw-cookie-token"

	mem := NewMemoryStore()
	require.NoError(t, mem.Put(ctx, "k1", s, time.Minute))
	got, err := mem.Get(ctx, "k1")
	require.NoError(t, err)
	require.Empty(t, got.ID)

	rs := newRedisStore(t)
	require.NoError(t, rs.Put(ctx, "k1", s, time.Minute))
	raw, err := rs.client.Get(ctx, rs.key("k1")).Result()
	require.NoError(t, err)
	require.NotContains(t, raw, "raw-cookie-token")
	got, err = rs.Get(ctx, "k1")
	require.NoError(t, err)
	require.Empty(t, got.ID)
}

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	store := newRedisStore(t)

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	s := New()
	s.Authenticate(testUser())
	s.ReturnTo = "/admin/users"
	require.NoError(t, store.Put(ctx, "k1", s, time.Minute))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, got.State)
	require.Equal(t, "fred", got.User.Username)
	require.Equal(t, "/admin/users", got.ReturnTo)

	require.NoError(t, store.Delete(ctx, "k1"))
	_, err = store.Get(ctx, "k1")
	require.ErrorIs(t, err, ErrNotFound)
}
