package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/cache"
	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/web"
)

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

func makeFormRequest(path string, form url.Values) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, httptest.NewRecorder()
}

func signedInAs(req *http.Request, user *identity.User, token string) *http.Request {
	ctx := middleware.WithPrincipal(req.Context(), &middleware.Principal{User: user, AccessToken: token})
	return req.WithContext(ctx)
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err, "failed to parse response body")
	return env
}

func newRenderer(t *testing.T) *web.Renderer {
	t.Helper()
	r, err := web.New()
	require.NoError(t, err)
	return r
}

func cookieMap(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	m := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		m[c.Name] = c
	}
	return m
}

// --- Mock Post Source ---

type mockPosts struct {
	listPostsFn     func(ctx context.Context, page, perPage int) (*cms.PostList, error)
	getPostBySlugFn func(ctx context.Context, slug string) (*cms.Post, error)
}

func (m *mockPosts) ListPosts(ctx context.Context, page, perPage int) (*cms.PostList, error) {
	if m.listPostsFn != nil {
		return m.listPostsFn(ctx, page, perPage)
	}
	return &cms.PostList{Posts: []cms.Post{}, Page: page, TotalPages: 1}, nil
}

func (m *mockPosts) GetPostBySlug(ctx context.Context, slug string) (*cms.Post, error) {
	if m.getPostBySlugFn != nil {
		return m.getPostBySlugFn(ctx, slug)
	}
	return nil, cms.ErrPostNotFound
}

// --- Mock Cache Store ---

type mockStore struct {
	invalidatePathFn func(ctx context.Context, path string) error
	invalidateTagFn  func(ctx context.Context, tag string) error

	calls []string
}

func (m *mockStore) Get(context.Context, string) (*cache.Entry, error) { return nil, cache.ErrMiss }

func (m *mockStore) Set(context.Context, string, *cache.Entry, time.Duration) error { return nil }

func (m *mockStore) InvalidatePath(ctx context.Context, path string) error {
	m.calls = append(m.calls, "path:"+path)
	if m.invalidatePathFn != nil {
		return m.invalidatePathFn(ctx, path)
	}
	return nil
}

func (m *mockStore) InvalidateTag(ctx context.Context, tag string) error {
	m.calls = append(m.calls, "tag:"+tag)
	if m.invalidateTagFn != nil {
		return m.invalidateTagFn(ctx, tag)
	}
	return nil
}

func (m *mockStore) InvalidatePrefix(_ context.Context, prefix string) error {
	m.calls = append(m.calls, "prefix:"+prefix)
	return nil
}

func (m *mockStore) Ping(context.Context) error { return nil }
