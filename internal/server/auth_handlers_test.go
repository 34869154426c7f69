package server

import (
	"net/http"
	"testing"

	"zeelink/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == store.SessionKey {
			return c
		}
	}
	return nil
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
	}{
		{"success", map[string]any{"email": "malee@example.com", "password": testPassword, "name": "Malee"}, http.StatusCreated},
		{"duplicate email", map[string]any{"email": "MALEE@example.com", "password": testPassword, "name": "Other"}, http.StatusConflict},
		{"weak password", map[string]any{"email": "weak@example.com", "password": "short", "name": "Weak"}, http.StatusBadRequest},
		{"bad email", map[string]any{"email": "nope", "password": testPassword, "name": "Nope"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: tt.body})
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus == http.StatusCreated {
				out := decode[authResponse](t, resp)
				assert.NotEmpty(t, out.Token)
				assert.Equal(t, "malee@example.com", out.Identity.Email)
				assert.Equal(t, "user", out.Identity.Role)
				assert.NotNil(t, sessionCookie(resp), "registration remembers the session")
			}
		})
	}
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "malee@example.com")

	resp := ts.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "malee@example.com", "password": "Wr0ng!Password",
	}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "malee@example.com", "password": testPassword,
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp), "no cookie without remember")
	token := decode[authResponse](t, resp).Token

	resp = ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[map[string]any](t, resp)
	assert.Equal(t, "malee@example.com", me["identity"].(map[string]any)["email"])
	assert.Nil(t, me["profile"])

	resp = ts.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{
		"email": "malee@example.com", "password": testPassword, "remember": true,
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	resp = ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", cookies: []*http.Cookie{cookie}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	for name, token := range map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			resp := ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: token})
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register(t, "malee@example.com")

	resp := ts.do(t, request{method: http.MethodPost, path: "/api/auth/logout", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie, "logout clears the remember-me cookie")
	assert.Empty(t, cookie.Value)

	resp = ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: token})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, ts.mr.Keys(), "the token id is blacklisted in redis")
}

func TestLogoutAnonymous(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, request{method: http.MethodPost, path: "/api/auth/logout"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
