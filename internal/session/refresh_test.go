package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/session"
)

const testBcryptCost = 4

func requestWith(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func signedUp(t *testing.T, backend *identity.Memory) *identity.Session {
	t.Helper()
	_, sess, err := backend.SignUp(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
	require.NotNil(t, sess)
	return sess
}

func TestRefresh_NoCookies(t *testing.T) {
	t.Parallel()
	rf := session.NewRefresher(identity.NewMemory("s", testBcryptCost), session.CookieOptions{})

	user, cookies := rf.Refresh(context.Background(), requestWith())

	assert.Nil(t, user)
	assert.Nil(t, cookies)
}

func TestRefresh_FreshToken(t *testing.T) {
	t.Parallel()
	backend := identity.NewMemory("s", testBcryptCost)
	sess := signedUp(t, backend)
	rf := session.NewRefresher(backend, session.CookieOptions{})

	user, cookies := rf.Refresh(context.Background(), requestWith(session.Cookies(sess, session.CookieOptions{})...))

	require.NotNil(t, user)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Empty(t, cookies)
}

func TestRefresh_ExpiringTokenIsRotated(t *testing.T) {
	t.Parallel()
	backend := identity.NewMemory("s", testBcryptCost, identity.WithAccessTTL(30*time.Second))
	sess := signedUp(t, backend)
	rf := session.NewRefresher(backend, session.CookieOptions{Secure: true})

	user, cookies := rf.Refresh(context.Background(), requestWith(session.Cookies(sess, session.CookieOptions{})...))

	require.NotNil(t, user)
	assert.Equal(t, sess.User.ID, user.ID)
	require.Len(t, cookies, 2)

	refresh := cookieByName(cookies, session.RefreshCookie)
	require.NotNil(t, refresh)
	assert.NotEqual(t, sess.RefreshToken, refresh.Value)
	assert.True(t, refresh.Secure)
	assert.True(t, refresh.HttpOnly)
	assert.Positive(t, refresh.MaxAge)
}

func TestRefresh_RejectedRefreshTokenClearsCookies(t *testing.T) {
	t.Parallel()
	backend := identity.NewMemory("s", testBcryptCost)
	rf := session.NewRefresher(backend, session.CookieOptions{})

	user, cookies := rf.Refresh(context.Background(), requestWith(
		&http.Cookie{Name: session.AccessCookie, Value: "not-a-jwt"},
		&http.Cookie{Name: session.RefreshCookie, Value: "unknown"},
	))

	assert.Nil(t, user)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		assert.Equal(t, -1, c.MaxAge)
		assert.Empty(t, c.Value)
	}
}

func TestRefresh_AccessOnlyInvalidClearsCookies(t *testing.T) {
	t.Parallel()
	rf := session.NewRefresher(identity.NewMemory("s", testBcryptCost), session.CookieOptions{})

	user, cookies := rf.Refresh(context.Background(), requestWith(
		&http.Cookie{Name: session.AccessCookie, Value: "not-a-jwt"},
	))

	assert.Nil(t, user)
	assert.Len(t, cookies, 2)
}

func TestRefresh_BackendUnavailableFailsOpen(t *testing.T) {
	t.Parallel()
	issuer := identity.NewMemory("s", testBcryptCost)
	sess := signedUp(t, issuer)
	rf := session.NewRefresher(identity.Disabled{}, session.CookieOptions{})

	user, cookies := rf.Refresh(context.Background(), requestWith(session.Cookies(sess, session.CookieOptions{})...))

	assert.Nil(t, user)
	assert.Nil(t, cookies)
}

func TestRefresh_RefreshUnavailableKeepsCookies(t *testing.T) {
	t.Parallel()
	rf := session.NewRefresher(identity.Disabled{}, session.CookieOptions{})

	user, cookies := rf.Refresh(context.Background(), requestWith(
		&http.Cookie{Name: session.RefreshCookie, Value: "r-1"},
	))

	assert.Nil(t, user)
	assert.Nil(t, cookies)
}

func TestWriteAndClear(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	session.Write(w, &identity.Session{AccessToken: "a", RefreshToken: "r"}, session.CookieOptions{})

	req := requestWith(w.Result().Cookies()...)
	access, refresh := session.Tokens(req)
	assert.Equal(t, "a", access)
	assert.Equal(t, "r", refresh)

	w = httptest.NewRecorder()
	session.Clear(w, session.CookieOptions{})
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 2)
	assert.Equal(t, -1, cleared[0].MaxAge)
}
