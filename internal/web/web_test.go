package web_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/profile"
	"github.com/wanderher/wanderher/internal/web"
)

func newRenderer(t *testing.T) *web.Renderer {
	t.Helper()
	r, err := web.New()
	require.NoError(t, err)
	return r
}

func TestRender_LayoutReflectsUser(t *testing.T) {
	t.Parallel()
	r := newRenderer(t)

	anon := httptest.NewRecorder()
	r.Render(anon, http.StatusOK, "home", web.View{})
	assert.Equal(t, http.StatusOK, anon.Code)
	assert.Equal(t, "text/html; charset=utf-8", anon.Header().Get("Content-Type"))
	assert.Contains(t, anon.Body.String(), `href="/login"`)
	assert.NotContains(t, anon.Body.String(), `action="/logout"`)

	signedIn := httptest.NewRecorder()
	r.Render(signedIn, http.StatusOK, "home", web.View{User: &identity.User{ID: "u-1"}})
	assert.Contains(t, signedIn.Body.String(), `action="/logout"`)
}

func TestRender_UnknownPage(t *testing.T) {
	t.Parallel()
	r := newRenderer(t)
	w := httptest.NewRecorder()

	r.Render(w, http.StatusOK, "missing", web.View{})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRender_BlogIndex(t *testing.T) {
	t.Parallel()
	r := newRenderer(t)

	t.Run("posts", func(t *testing.T) {
		w := httptest.NewRecorder()
		list := &cms.PostList{
			Page:       2,
			TotalPages: 3,
			Posts: []cms.Post{{
				Slug:    "lisbon-alone",
				Title:   "Lisbon alone",
				Date:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Excerpt: "Trams & tiles",
			}},
		}
		r.Render(w, http.StatusOK, "blog_index", web.View{Data: web.BlogIndexData{List: list}})

		body := w.Body.String()
		assert.Contains(t, body, `href="/blog/lisbon-alone"`)
		assert.Contains(t, body, "1 March 2026")
		assert.Contains(t, body, "Trams &amp; tiles")
		assert.Contains(t, body, `href="/blog?page=1"`)
		assert.Contains(t, body, `href="/blog?page=3"`)
	})

	t.Run("unavailable", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.Render(w, http.StatusOK, "blog_index", web.View{Data: web.BlogIndexData{Unavailable: true}})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "taking a short break")
	})
}

func TestRender_EscapesProfileText(t *testing.T) {
	t.Parallel()
	r := newRenderer(t)
	bio := `<script>alert(1)</script>`
	p := &profile.Profile{Username: "maya", Bio: &bio, PrivacyLevel: profile.PrivacyPublic}
	w := httptest.NewRecorder()

	r.Render(w, http.StatusOK, "public_profile", web.View{Data: p})

	assert.NotContains(t, w.Body.String(), "<script>alert(1)</script>")
	assert.Contains(t, w.Body.String(), "@maya")
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	r := newRenderer(t)

	about := string(r.Markdown("about"))
	assert.Contains(t, about, `<h1 id="about-wanderher">About WanderHer</h1>`)
	assert.Contains(t, about, "<strong>Stories</strong>")
	assert.NotEmpty(t, r.Markdown("safety"))
	assert.Empty(t, r.Markdown("nope"))
}

func TestError_Defaults(t *testing.T) {
	t.Parallel()
	r := newRenderer(t)

	tests := []struct {
		status  int
		heading string
	}{
		{http.StatusNotFound, "Page not found"},
		{http.StatusUnauthorized, "Preview unavailable"},
		{http.StatusBadGateway, "Content unavailable"},
		{http.StatusTeapot, "Something went wrong"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.Error(w, tt.status, web.View{})
		assert.Equal(t, tt.status, w.Code)
		assert.Contains(t, w.Body.String(), tt.heading)
	}

	w := httptest.NewRecorder()
	r.Error(w, http.StatusOK, web.View{Data: web.ErrorData{Heading: "Profile unavailable", Message: "Contact support."}})
	assert.Contains(t, w.Body.String(), "Contact support.")
}

func TestStatic(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/static/site.css", nil)

	web.Static().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "--accent")
}
