package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	prev := GetClient()
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(prev)
		_ = rdb.Close()
	})
	return mr, rdb
}

type cachedIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestAsideVersioned(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedIdentity) func() error {
		return func() error {
			calls++
			*dest = cachedIdentity{ID: "a", Name: "Somchai"}
			return nil
		}
	}

	var first cachedIdentity
	require.NoError(t, AsideVersioned(ctx, IdentityKey("a"), IdentityVersionKey("a"), &first, time.Minute, fetch(&first)))
	var second cachedIdentity
	require.NoError(t, AsideVersioned(ctx, IdentityKey("a"), IdentityVersionKey("a"), &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls, "second read should be served from redis")
	assert.Equal(t, "Somchai", second.Name)

	InvalidateIdentity(ctx, "a")
	var third cachedIdentity
	require.NoError(t, AsideVersioned(ctx, IdentityKey("a"), IdentityVersionKey("a"), &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAsideVersioned_FetchErrorIsNotCached(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()
	boom := errors.New("boom")

	var dest cachedIdentity
	err := AsideVersioned(ctx, IdentityKey("b"), IdentityVersionKey("b"), &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	found, err := GetJSON(ctx, IdentityKey("b"), &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAsideVersioned_DropsFillThatRacedAWrite(t *testing.T) {
	mr, _ := setupRedis(t)
	ctx := context.Background()

	var stale cachedIdentity
	err := AsideVersioned(ctx, IdentityKey("c"), IdentityVersionKey("c"), &stale, time.Minute, func() error {
		stale = cachedIdentity{ID: "c", Name: "before ban"}
		InvalidateIdentity(ctx, "c")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "before ban", stale.Name, "the caller still gets its read")
	assert.False(t, mr.Exists(IdentityKey("c")), "a fill that raced a write is not cached")

	var fresh cachedIdentity
	require.NoError(t, AsideVersioned(ctx, IdentityKey("c"), IdentityVersionKey("c"), &fresh, time.Minute, func() error {
		fresh = cachedIdentity{ID: "c", Name: "after ban"}
		return nil
	}))
	assert.True(t, mr.Exists(IdentityKey("c")))
}

func TestHelpers_NoClient(t *testing.T) {
	prev := GetClient()
	SetClient(nil)
	t.Cleanup(func() { SetClient(prev) })

	found, err := GetJSON(context.Background(), "k", &cachedIdentity{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetJSON(context.Background(), "k", 1, time.Minute))

	calls := 0
	require.NoError(t, AsideVersioned(context.Background(), "k", "v", &cachedIdentity{}, time.Minute, func() error {
		calls++
		return nil
	}))
	assert.Equal(t, 1, calls)
	InvalidateIdentity(context.Background(), "k")
}

func TestTokenBlacklist(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()
	bl := NewTokenBlacklist(rdb)

	revoked, err := bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = bl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entries expire with the token")

	assert.NoError(t, bl.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(BlacklistKey("jti-2")))

	var disabled *TokenBlacklist
	revoked, err = disabled.IsRevoked(ctx, "jti-1")
	assert.NoError(t, err)
	assert.False(t, revoked)
}

func TestPopupViews(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()
	views := NewPopupViews(rdb)

	_, seen, err := views.LastSeen(ctx, "viewer", "popup")
	require.NoError(t, err)
	assert.False(t, seen)

	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, views.MarkSeen(ctx, "viewer", "popup", at))

	got, seen, err := views.LastSeen(ctx, "viewer", "popup")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, got.Equal(at))
}

func TestInitRedis_Unreachable(t *testing.T) {
	prev := GetClient()
	t.Cleanup(func() { SetClient(prev) })

	InitRedis("redis://127.0.0.1:1")
	assert.Nil(t, GetClient())
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		rdb, err := Connect(context.Background(), addr)
		require.NoError(t, err, addr)
		assert.Equal(t, mr.Addr(), rdb.Options().Addr)
		_ = rdb.Close()
	}

	_, err := Connect(context.Background(), "  ")
	assert.Error(t, err)
	_, err = Connect(context.Background(), "redis://%zz")
	assert.Error(t, err)
}
