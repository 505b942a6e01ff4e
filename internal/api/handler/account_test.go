package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderher/wanderher/internal/api/handler"
	"github.com/wanderher/wanderher/internal/authflow"
	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/profile"
	"github.com/wanderher/wanderher/internal/session"
)

// --- Mock Profile Ensurer ---

type mockEnsurer struct {
	ensureFn func(ctx context.Context, user *identity.User, accessToken string) (*profile.Profile, *authflow.Outcome)
}

func (m *mockEnsurer) EnsureProfile(ctx context.Context, user *identity.User, accessToken string) (*profile.Profile, *authflow.Outcome) {
	return m.ensureFn(ctx, user, accessToken)
}

type accountFixture struct {
	repo    *profile.MemoryRepository
	posts   *mockPosts
	store   *mockStore
	handler *handler.AccountHandler
	user    *identity.User
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	f := &accountFixture{
		repo:  profile.NewMemoryRepository(),
		posts: &mockPosts{},
		store: &mockStore{},
		user:  &identity.User{ID: "u-1", Email: "maya@example.com"},
	}
	require.NoError(t, f.repo.Create(context.Background(), profile.NewDefault("u-1", "maya")))
	ensurer := &mockEnsurer{
		ensureFn: func(ctx context.Context, user *identity.User, _ string) (*profile.Profile, *authflow.Outcome) {
			p, err := f.repo.GetByID(ctx, user.ID)
			require.NoError(t, err)
			return p, nil
		},
	}
	f.handler = handler.NewAccountHandler(ensurer, f.repo, f.posts, f.store, newRenderer(t), session.CookieOptions{})
	return f
}

func TestDashboard_RendersProfileAndPosts(t *testing.T) {
	// Arrange
	f := newAccountFixture(t)
	f.posts.listPostsFn = func(_ context.Context, page, perPage int) (*cms.PostList, error) {
		assert.Equal(t, 1, page)
		return &cms.PostList{Posts: []cms.Post{{Slug: "kyoto", Title: "Kyoto in autumn"}}, Page: 1, TotalPages: 1}, nil
	}
	req := signedInAs(httptest.NewRequest(http.MethodGet, "/dashboard", nil), f.user, "tok")
	w := httptest.NewRecorder()

	// Act
	f.handler.Dashboard(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "@maya")
	assert.Contains(t, w.Body.String(), "Kyoto in autumn")
}

func TestDashboard_CMSErrorPropagates(t *testing.T) {
	f := newAccountFixture(t)
	f.posts.listPostsFn = func(context.Context, int, int) (*cms.PostList, error) { return nil, cms.ErrUpstream }
	req := signedInAs(httptest.NewRequest(http.MethodGet, "/dashboard", nil), f.user, "tok")
	w := httptest.NewRecorder()

	f.handler.Dashboard(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Content unavailable")
}

func TestDashboard_RepairFailureShowsSupportMessage(t *testing.T) {
	// Arrange
	var gotToken string
	ensurer := &mockEnsurer{
		ensureFn: func(_ context.Context, _ *identity.User, accessToken string) (*profile.Profile, *authflow.Outcome) {
			gotToken = accessToken
			o := authflow.Error(authflow.MsgProfileUnavailable)
			o.ClearSession = true
			return nil, &o
		},
	}
	h := handler.NewAccountHandler(ensurer, profile.NewMemoryRepository(), &mockPosts{}, &mockStore{}, newRenderer(t), session.CookieOptions{})
	req := signedInAs(httptest.NewRequest(http.MethodGet, "/dashboard", nil), &identity.User{ID: "u-9"}, "tok-9")
	w := httptest.NewRecorder()

	// Act
	h.Dashboard(w, req)

	// Assert
	assert.Equal(t, "tok-9", gotToken)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Please contact support.")
	assert.Equal(t, -1, cookieMap(w)[session.AccessCookie].MaxAge)
	assert.NotContains(t, w.Body.String(), `action="/logout"`, "the page no longer shows a signed-in layout")
}

func TestDashboard_WithoutPrincipalRedirects(t *testing.T) {
	f := newAccountFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()

	f.handler.Dashboard(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?redirectTo=%2Fdashboard", w.Header().Get("Location"))
}

func TestUpdateProfile_Success(t *testing.T) {
	// Arrange
	f := newAccountFixture(t)
	req, w := makeFormRequest("/profile", url.Values{
		"username": {"maya_roams"},
		"fullName": {"Maya R"},
		"bio":      {"Slow travel, fast trains."},
	})
	req = signedInAs(req, f.user, "tok")

	// Act
	f.handler.UpdateProfile(w, req)

	// Assert
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/profile?saved=1", w.Header().Get("Location"))

	p, err := f.repo.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "maya_roams", p.Username)
	require.NotNil(t, p.FullName)
	assert.Equal(t, "Maya R", *p.FullName)
	assert.Equal(t, []string{"path:/u/maya", "path:/u/maya_roams"}, f.store.calls)
}

func TestUpdateProfile_ValidationError(t *testing.T) {
	f := newAccountFixture(t)
	req, w := makeFormRequest("/profile", url.Values{"username": {"no"}})
	req = signedInAs(req, f.user, "tok")

	f.handler.UpdateProfile(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "username must be 3-30")
	assert.Empty(t, f.store.calls)
}

func TestUpdateProfile_UnchangedUsernameIsNotRevalidated(t *testing.T) {
	// Arrange
	f := newAccountFixture(t)
	legacy := &identity.User{ID: "u-3", Email: "jo@example.com"}
	require.NoError(t, f.repo.Create(context.Background(), profile.NewDefault("u-3", "j7")))
	req, w := makeFormRequest("/profile", url.Values{
		"username": {"j7"},
		"bio":      {"Night trains only."},
	})
	req = signedInAs(req, legacy, "tok")

	// Act
	f.handler.UpdateProfile(w, req)

	// Assert
	assert.Equal(t, http.StatusSeeOther, w.Code)
	p, err := f.repo.GetByID(context.Background(), "u-3")
	require.NoError(t, err)
	assert.Equal(t, "j7", p.Username)
	require.NotNil(t, p.Bio)
	assert.Equal(t, "Night trains only.", *p.Bio)
}

func TestUpdateProfile_UsernameTaken(t *testing.T) {
	f := newAccountFixture(t)
	require.NoError(t, f.repo.Create(context.Background(), profile.NewDefault("u-2", "lena")))
	req, w := makeFormRequest("/profile", url.Values{"username": {"lena"}})
	req = signedInAs(req, f.user, "tok")

	f.handler.UpdateProfile(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "That username is already taken.")
}

func TestUpdateSettings_PrivacyLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value      string
		wantStatus int
		wantLevel  string
	}{
		{value: "private", wantStatus: http.StatusSeeOther, wantLevel: profile.PrivacyPrivate},
		{value: "public", wantStatus: http.StatusSeeOther, wantLevel: profile.PrivacyPublic},
		{value: "friends", wantStatus: http.StatusBadRequest, wantLevel: profile.PrivacyPublic},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			f := newAccountFixture(t)
			req, w := makeFormRequest("/settings", url.Values{"privacyLevel": {tt.value}})
			req = signedInAs(req, f.user, "tok")

			f.handler.UpdateSettings(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			p, err := f.repo.GetByID(context.Background(), "u-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, p.PrivacyLevel)
		})
	}
}

func TestPublicProfile(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T, level string) *accountFixture {
		f := newAccountFixture(t)
		_, err := f.repo.Update(context.Background(), "u-1", profile.Update{PrivacyLevel: &level})
		require.NoError(t, err)
		return f
	}

	t.Run("public profile is visible", func(t *testing.T) {
		t.Parallel()
		f := setup(t, profile.PrivacyPublic)
		req, w := makeChiRequest(http.MethodGet, "/u/maya", nil, map[string]string{"username": "maya"})

		f.handler.PublicProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "@maya")
	})

	t.Run("private profile is hidden from others", func(t *testing.T) {
		t.Parallel()
		f := setup(t, profile.PrivacyPrivate)
		req, w := makeChiRequest(http.MethodGet, "/u/maya", nil, map[string]string{"username": "maya"})
		req = signedInAs(req, &identity.User{ID: "u-other"}, "tok")

		f.handler.PublicProfile(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("private profile is visible to its owner", func(t *testing.T) {
		t.Parallel()
		f := setup(t, profile.PrivacyPrivate)
		req, w := makeChiRequest(http.MethodGet, "/u/maya", nil, map[string]string{"username": "maya"})
		req = signedInAs(req, f.user, "tok")

		f.handler.PublicProfile(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown username", func(t *testing.T) {
		t.Parallel()
		f := setup(t, profile.PrivacyPublic)
		req, w := makeChiRequest(http.MethodGet, "/u/nobody", nil, map[string]string{"username": "nobody"})

		f.handler.PublicProfile(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
