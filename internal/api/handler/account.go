package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/api/validation"
	"github.com/wanderher/wanderher/internal/authflow"
	"github.com/wanderher/wanderher/internal/cache"
	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/profile"
	"github.com/wanderher/wanderher/internal/session"
	"github.com/wanderher/wanderher/internal/web"
)

const dashboardPosts = 5

// ProfileEnsurer returns the signed-in user's profile, repairing it once.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, user *identity.User, accessToken string) (*profile.Profile, *authflow.Outcome)
}

// AccountHandler serves the signed-in pages and public profiles.
type AccountHandler struct {
	ensurer  ProfileEnsurer
	profiles profile.Repository
	posts    PostSource
	pages    cache.Store
	renderer Renderer
	cookies  session.CookieOptions
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ensurer ProfileEnsurer, profiles profile.Repository, posts PostSource, pages cache.Store, renderer Renderer, cookies session.CookieOptions) *AccountHandler {
	return &AccountHandler{
		ensurer:  ensurer,
		profiles: profiles,
		posts:    posts,
		pages:    pages,
		renderer: renderer,
		cookies:  cookies,
	}
}

// currentProfile loads the profile of the signed-in user. It writes the
// response and returns nil when the page cannot be shown.
func (h *AccountHandler) currentProfile(w http.ResponseWriter, r *http.Request) *profile.Profile {
	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		http.Redirect(w, r, middleware.LoginRedirect(r.URL.Path), http.StatusSeeOther)
		return nil
	}

	p, failure := h.ensurer.EnsureProfile(r.Context(), principal.User, principal.AccessToken)
	if failure != nil {
		if failure.ClearSession {
			session.Clear(w, h.cookies)
		}
		v := newView(r, "", web.ErrorData{Heading: "Profile unavailable", Message: failure.Message})
		v.User = nil
		h.renderer.Error(w, http.StatusInternalServerError, v)
		return nil
	}
	return p
}

// Dashboard handles GET /dashboard. The latest posts are part of the page,
// so a CMS failure fails the page.
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p := h.currentProfile(w, r)
	if p == nil {
		return
	}

	list, err := h.posts.ListPosts(r.Context(), 1, dashboardPosts)
	if err != nil {
		slog.Error("dashboard posts unavailable", "userId", p.ID, "error", err)
		h.renderer.Error(w, http.StatusBadGateway, newView(r, "", nil))
		return
	}

	h.renderer.Render(w, http.StatusOK, "dashboard", newView(r, "Dashboard", web.DashboardData{Profile: p, Posts: list.Posts}))
}

func profileValues(p *profile.Profile) map[string]string {
	v := map[string]string{"username": p.Username}
	if p.FullName != nil {
		v["fullName"] = *p.FullName
	}
	if p.Bio != nil {
		v["bio"] = *p.Bio
	}
	return v
}

func savedNotice(r *http.Request) string {
	if r.URL.Query().Get("saved") == "1" {
		return "Your changes have been saved."
	}
	return ""
}

// Profile handles GET /profile.
func (h *AccountHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p := h.currentProfile(w, r)
	if p == nil {
		return
	}
	data := web.ProfileData{Profile: p, Form: web.FormData{Values: profileValues(p), Notice: savedNotice(r)}}
	h.renderer.Render(w, http.StatusOK, "profile", newView(r, "Your profile", data))
}

// formField returns a pointer to the submitted value, or nil when the field
// was not part of the form.
func formField(r *http.Request, name string) *string {
	if _, ok := r.PostForm[name]; !ok {
		return nil
	}
	v := strings.TrimSpace(r.PostForm.Get(name))
	return &v
}

// UpdateProfile handles POST /profile.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p := h.currentProfile(w, r)
	if p == nil {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, newView(r, "", nil))
		return
	}

	form := validation.ProfileForm{
		Username: formField(r, "username"),
		FullName: formField(r, "fullName"),
		Bio:      formField(r, "bio"),
	}
	// An unchanged username is not revalidated, so a handle that predates
	// the current rule does not block editing the rest of the profile.
	if form.Username != nil && *form.Username == p.Username {
		form.Username = nil
	}
	h.update(w, r, p, form, "profile", "Your profile", "/profile")
}

// Settings handles GET /settings.
func (h *AccountHandler) Settings(w http.ResponseWriter, r *http.Request) {
	p := h.currentProfile(w, r)
	if p == nil {
		return
	}
	data := web.ProfileData{Profile: p, Form: web.FormData{Notice: savedNotice(r)}}
	h.renderer.Render(w, http.StatusOK, "settings", newView(r, "Settings", data))
}

// UpdateSettings handles POST /settings.
func (h *AccountHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	p := h.currentProfile(w, r)
	if p == nil {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, newView(r, "", nil))
		return
	}

	form := validation.ProfileForm{PrivacyLevel: formField(r, "privacyLevel")}
	h.update(w, r, p, form, "settings", "Settings", "/settings")
}

func (h *AccountHandler) update(w http.ResponseWriter, r *http.Request, p *profile.Profile, form validation.ProfileForm, page, title, back string) {
	values := make(map[string]string)
	for k := range r.PostForm {
		values[k] = strings.TrimSpace(r.PostForm.Get(k))
	}
	rerender := func(status int, fd web.FormData) {
		fd.Values = values
		h.renderer.Render(w, status, page, newView(r, title, web.ProfileData{Profile: p, Form: fd}))
	}

	if fieldErrors := validation.ValidateProfileForm(form); len(fieldErrors) > 0 {
		rerender(http.StatusBadRequest, web.FormData{Errors: fieldErrorMap(fieldErrors), Message: "Please fix the highlighted fields."})
		return
	}

	updated, err := h.profiles.Update(r.Context(), p.ID, form.ToUpdate())
	if err != nil {
		if errors.Is(err, profile.ErrUsernameTaken) {
			rerender(http.StatusConflict, web.FormData{Errors: map[string]string{"username": authflow.MsgUsernameTaken}})
			return
		}
		slog.Error("failed to update profile", "userId", p.ID, "error", err)
		rerender(http.StatusInternalServerError, web.FormData{Message: "We could not save your changes. Please try again."})
		return
	}

	// The public page may be cached under the old and the new username.
	for _, u := range []string{p.Username, updated.Username} {
		if err := h.pages.InvalidatePath(r.Context(), "/u/"+u); err != nil {
			slog.Warn("failed to invalidate public profile", "username", u, "error", err)
		}
	}

	http.Redirect(w, r, back+"?saved=1", http.StatusSeeOther)
}

// PublicProfile handles GET /u/{username}. Private profiles are only shown
// to their owner; everyone else gets the same 404 as a missing one.
func (h *AccountHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	p, err := h.profiles.GetByUsername(r.Context(), username)
	if err != nil {
		if !errors.Is(err, profile.ErrProfileNotFound) {
			slog.Error("failed to load public profile", "username", username, "error", err)
			h.renderer.Error(w, http.StatusInternalServerError, newView(r, "", nil))
			return
		}
		h.renderer.Error(w, http.StatusNotFound, newView(r, "", nil))
		return
	}

	if !p.IsPublic() {
		user := middleware.GetUser(r.Context())
		if user == nil || user.ID != p.ID {
			h.renderer.Error(w, http.StatusNotFound, newView(r, "", nil))
			return
		}
	}

	h.renderer.Render(w, http.StatusOK, "public_profile", newView(r, "@"+p.Username, p))
}
