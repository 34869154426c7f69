package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"zeelink/internal/cache"
	"zeelink/internal/models"
	"zeelink/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "test-secret-key-that-is-long-enough-for-hs256"
	testPassword = "Str0ng!Passw0rd"
)

func newSessions(t *testing.T, f *fixture, revoked Revoker) *Sessions {
	t.Helper()
	m, err := NewSessions(f.st, SessionConfig{Secret: testSecret, TTL: time.Hour, BcryptCost: bcrypt.MinCost}, revoked)
	require.NoError(t, err)
	return m
}

func newBlacklist(t *testing.T) (*cache.TokenBlacklist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewTokenBlacklist(rdb), mr
}

func (f *fixture) member(t *testing.T, m *Sessions, email string) *models.Identity {
	t.Helper()
	s := m.New(nil)
	ok, err := s.Register(f.ctx, email, testPassword, "Malee")
	require.NoError(t, err)
	require.True(t, ok)
	return s.Identity()
}

func TestNewSessions_RequiresSecret(t *testing.T) {
	f := newFixture(t)
	_, err := NewSessions(f.st, SessionConfig{}, nil)
	assert.Error(t, err)
}

func TestSession_Register(t *testing.T) {
	f := newFixture(t)
	m := newSessions(t, f, nil)
	kv := NewMemoryKV()
	s := m.New(kv)

	ok, err := s.Register(f.ctx, " Malee@Example.com ", testPassword, "Malee")
	require.NoError(t, err)
	require.True(t, ok)

	identity := s.Identity()
	require.NotNil(t, identity)
	assert.Equal(t, "malee@example.com", identity.Email)
	assert.Equal(t, models.RoleUser, identity.Role)
	assert.False(t, identity.IsBanned)
	assert.Empty(t, identity.PasswordHash)
	assert.Nil(t, s.Profile())

	token, found, err := kv.Get(f.ctx, SessionKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, s.Token(), token)

	again := m.New(nil)
	ok, err = again.Register(f.ctx, "malee@example.com", testPassword, "Other")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, again.Identity())
}

func TestSession_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	m := newSessions(t, f, nil)

	tests := []struct {
		name, email, password, displayName string
	}{
		{"bad email", "not-an-email", testPassword, "Malee"},
		{"weak password", "malee@example.com", "short", "Malee"},
		{"blank name", "malee@example.com", testPassword, "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := m.New(nil).Register(f.ctx, tt.email, tt.password, tt.displayName)
			assert.False(t, ok)
			assert.True(t, models.HasCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

func TestSession_Login(t *testing.T) {
	f := newFixture(t)
	m := newSessions(t, f, nil)
	member := f.member(t, m, "malee@example.com")
	f.profile(t, member, "malee")

	tests := []struct {
		name     string
		email    string
		password string
		want     bool
	}{
		{"correct", "malee@example.com", testPassword, true},
		{"case insensitive email", "MALEE@example.com", testPassword, true},
		{"wrong password", "malee@example.com", "Wr0ng!Password", false},
		{"unknown email", "nobody@example.com", testPassword, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := m.New(NewMemoryKV())
			ok, err := s.Login(f.ctx, tt.email, tt.password, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			if !tt.want {
				assert.Nil(t, s.Identity())
				return
			}
			assert.Equal(t, member.ID, s.Identity().ID)
			require.NotNil(t, s.Profile())
			assert.Equal(t, "malee", s.Profile().Username)
			assert.NotEmpty(t, s.Token())
		})
	}
}

func TestSession_LoginRemember(t *testing.T) {
	f := newFixture(t)
	m := newSessions(t, f, nil)
	f.member(t, m, "malee@example.com")

	kv := NewMemoryKV()
	ok, err := m.New(kv).Login(f.ctx, "malee@example.com", testPassword, false)
	require.NoError(t, err)
	require.True(t, ok)
	_, found, _ := kv.Get(f.ctx, SessionKey)
	assert.False(t, found)

	ok, err = m.New(kv).Login(f.ctx, "malee@example.com", testPassword, true)
	require.NoError(t, err)
	require.True(t, ok)
	_, found, _ = kv.Get(f.ctx, SessionKey)
	assert.True(t, found)
}

func TestSession_BannedCannotSignIn(t *testing.T) {
	f := newFixture(t)
	m := newSessions(t, f, nil)
	admin := f.admin(t)

	kv := NewMemoryKV()
	s := m.New(kv)
	ok, err := s.Register(f.ctx, "troll@example.com", testPassword, "Troll")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.st.BanIdentity(f.ctx, admin, s.Identity().ID).Err)

	ok, err = m.New(nil).Login(f.ctx, "troll@example.com", testPassword, true)
	require.NoError(t, err)
	assert.False(t, ok)

	restored := m.New(kv)
	ok, err = restored.Restore(f.ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, restored.Identity())
	_, found, _ := kv.Get(f.ctx, SessionKey)
	assert.False(t, found, "a rejected token is forgotten")
}

func TestSession_RestoreAndLogout(t *testing.T) {
	f := newFixture(t)
	blacklist, mr := newBlacklist(t)
	m := newSessions(t, f, blacklist)
	kv := NewMemoryKV()

	s := m.New(kv)
	ok, err := s.Register(f.ctx, "malee@example.com", testPassword, "Malee")
	require.NoError(t, err)
	require.True(t, ok)
	token := s.Token()

	restored := m.New(kv)
	ok, err = restored.Restore(f.ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.Identity().ID, restored.Identity().ID)

	require.NoError(t, s.Logout(f.ctx))
	assert.Nil(t, s.Identity())
	assert.Empty(t, s.Token())
	_, found, _ := kv.Get(f.ctx, SessionKey)
	assert.False(t, found)

	// The token id stays blacklisted for the rest of its lifetime.
	resumed := m.New(nil)
	ok, err = resumed.Resume(f.ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), 59*time.Minute)
}

func TestSession_ResumeRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	m := newSessions(t, f, nil)
	s := m.New(nil)
	ok, err := s.Register(f.ctx, "malee@example.com", testPassword, "Malee")
	require.NoError(t, err)
	require.True(t, ok)

	other, err := NewSessions(f.st, SessionConfig{Secret: "a-different-secret-of-enough-length-000"}, nil)
	require.NoError(t, err)
	forged, _, err := other.issue(s.Identity().ID)
	require.NoError(t, err)

	missing, _, err := m.issue("no-such-identity")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":        "not-a-jwt",
		"tampered":       s.Token() + "x",
		"wrong secret":   forged,
		"missing holder": missing,
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := m.New(nil).Resume(f.ctx, token)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

// downIdentities simulates an unreachable identity collection.
type downIdentities struct {
	repository.IdentityRepository
}

var errDown = errors.New("connection refused")

func (downIdentities) GetByEmail(context.Context, string) (*models.Identity, error) {
	return nil, models.NewRemoteFailure("find_by_email identities", errDown)
}

func (downIdentities) GetOne(context.Context, string) (*models.Identity, error) {
	return nil, models.NewRemoteFailure("get identities", errDown)
}

func TestSession_RemoteFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Identities = downIdentities{d.Identities} })
	m := newSessions(t, f, nil)

	ok, err := m.New(nil).Login(f.ctx, "malee@example.com", testPassword, true)
	assert.False(t, ok)
	assert.True(t, models.HasCode(err, models.CodeRemoteFailure), "got %v", err)

	token, _, err := m.issue("someone")
	require.NoError(t, err)
	kv := NewMemoryKV()
	require.NoError(t, kv.Put(f.ctx, SessionKey, token))
	s := m.New(kv)
	ok, err = s.Restore(f.ctx)
	assert.False(t, ok)
	assert.True(t, models.HasCode(err, models.CodeRemoteFailure))
	assert.Nil(t, s.Identity())
}

func TestSession_SaveProfile(t *testing.T) {
	f := newFixture(t)
	m := newSessions(t, f, nil)
	s := m.New(nil)

	_, o := s.SaveProfile(f.ctx, profileInput("anon"))
	assert.True(t, models.HasCode(o.Err, models.CodeUnauthorized))

	ok, err := s.Register(f.ctx, "malee@example.com", testPassword, "Malee")
	require.NoError(t, err)
	require.True(t, ok)

	p, o := s.SaveProfile(f.ctx, profileInput("malee"))
	require.NoError(t, o.Err)
	require.NotNil(t, s.Profile())
	assert.Equal(t, p.ID, s.Profile().ID)
	assert.Equal(t, "0220261", s.Profile().UID)
}
