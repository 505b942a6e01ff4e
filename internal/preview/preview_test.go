package preview_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/preview"
)

func enabledCookie(t *testing.T, m *preview.Manager) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	require.NoError(t, m.Enable(w))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func requestWith(c *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/blog", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func TestCheckSecret(t *testing.T) {
	t.Parallel()
	m := preview.NewManager("s3cret", true)

	assert.True(t, m.CheckSecret("s3cret"))
	assert.False(t, m.CheckSecret("s3cre"))
	assert.False(t, m.CheckSecret(""))

	unset := preview.NewManager("", true)
	assert.False(t, unset.Configured())
	assert.False(t, unset.CheckSecret(""))
}

func TestEnableAndActive(t *testing.T) {
	t.Parallel()
	m := preview.NewManager("s3cret", true)

	c := enabledCookie(t, m)

	assert.Equal(t, preview.CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.Equal(t, int(preview.TTL.Seconds()), c.MaxAge)
	assert.True(t, m.Active(requestWith(c)))
	assert.False(t, m.Active(requestWith(nil)))
}

func TestActive_RejectsForeignAndExpiredTokens(t *testing.T) {
	t.Parallel()
	m := preview.NewManager("s3cret", false)
	other := preview.NewManager("other", false)

	assert.False(t, m.Active(requestWith(enabledCookie(t, other))))
	assert.False(t, m.Active(requestWith(&http.Cookie{Name: preview.CookieName, Value: "garbage"})))

	past := preview.NewManager("s3cret", false, preview.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	assert.False(t, m.Active(requestWith(enabledCookie(t, past))))
}

func TestEnable_NotConfigured(t *testing.T) {
	t.Parallel()
	err := preview.NewManager("", false).Enable(httptest.NewRecorder())
	assert.ErrorIs(t, err, preview.ErrNotConfigured)
}

func TestDisable(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	preview.NewManager("s3cret", false).Disable(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestMiddleware_MarksDraft(t *testing.T) {
	t.Parallel()
	m := preview.NewManager("s3cret", false)
	var draft bool
	h := m.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		draft = cms.IsDraft(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), requestWith(enabledCookie(t, m)))
	assert.True(t, draft)

	h.ServeHTTP(httptest.NewRecorder(), requestWith(nil))
	assert.False(t, draft)
}

func TestRedirectTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slug string
		want string
	}{
		{"", "/blog"},
		{"  ", "/blog"},
		{"/blog/lisbon-alone", "/blog/lisbon-alone"},
		{"lisbon-alone", "/blog/lisbon-alone"},
		{"//evil.com", "/blog/evil.com"},
		{"https://evil.com", "/blog/https:%2F%2Fevil.com"},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, preview.RedirectTarget(tt.slug))
		})
	}
}
