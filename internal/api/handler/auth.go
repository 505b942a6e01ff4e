package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/wanderher/wanderher/internal/api/middleware"
	"github.com/wanderher/wanderher/internal/api/validation"
	"github.com/wanderher/wanderher/internal/authflow"
	"github.com/wanderher/wanderher/internal/redirect"
	"github.com/wanderher/wanderher/internal/session"
	"github.com/wanderher/wanderher/internal/web"
)

// AuthFlows runs signup, login and logout.
type AuthFlows interface {
	Signup(ctx context.Context, in authflow.SignupInput) authflow.Outcome
	Login(ctx context.Context, in authflow.LoginInput) authflow.Outcome
	Logout(ctx context.Context, accessToken string) authflow.Outcome
}

// AuthHandler serves the login, signup and logout forms and turns flow
// outcomes into cookies, redirects and pages.
type AuthHandler struct {
	flows    AuthFlows
	renderer Renderer
	cookies  session.CookieOptions
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(flows AuthFlows, renderer Renderer, cookies session.CookieOptions) *AuthHandler {
	return &AuthHandler{flows: flows, renderer: renderer, cookies: cookies}
}

// apply writes the session changes of o and redirects when o asks for it.
// It reports whether the response is complete.
func (h *AuthHandler) apply(w http.ResponseWriter, r *http.Request, o authflow.Outcome) bool {
	if o.ClearSession {
		session.Clear(w, h.cookies)
	} else if o.Session != nil {
		session.Write(w, o.Session, h.cookies)
	}
	if o.IsRedirect() {
		http.Redirect(w, r, o.Target, http.StatusSeeOther)
		return true
	}
	return false
}

func outcomeStatus(o authflow.Outcome) int {
	switch o.Message {
	case authflow.MsgInvalidCredentials:
		return http.StatusUnauthorized
	case authflow.MsgUnavailable:
		return http.StatusServiceUnavailable
	case authflow.MsgUsernameTaken:
		return http.StatusConflict
	case authflow.MsgSignupFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	values := map[string]string{"redirectTo": redirect.LocalOr(r.URL.Query().Get("redirectTo"), "")}
	h.renderer.Render(w, http.StatusOK, "login", newView(r, "Log in", web.FormData{Values: values}))
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, newView(r, "", nil))
		return
	}
	form := validation.LoginForm{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
	}
	redirectTo := redirect.LocalOr(r.PostForm.Get("redirectTo"), "")
	values := map[string]string{"email": form.Email, "redirectTo": redirectTo}

	if fieldErrors := validation.ValidateLoginForm(form); len(fieldErrors) > 0 {
		h.renderer.Render(w, http.StatusBadRequest, "login", newView(r, "Log in", web.FormData{Values: values, Errors: fieldErrorMap(fieldErrors)}))
		return
	}

	o := h.flows.Login(r.Context(), authflow.LoginInput{
		Email:      form.Email,
		Password:   form.Password,
		RedirectTo: redirectTo,
	})
	if h.apply(w, r, o) {
		return
	}
	h.renderer.Render(w, outcomeStatus(o), "login", newView(r, "Log in", web.FormData{Values: values, Errors: o.FieldErrors, Message: o.Message}))
}

// SignupPage handles GET /signup.
func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, "signup", newView(r, "Join", web.FormData{}))
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Error(w, http.StatusBadRequest, newView(r, "", nil))
		return
	}
	form := validation.SignupForm{
		Email:    strings.TrimSpace(r.PostForm.Get("email")),
		Password: r.PostForm.Get("password"),
		Username: strings.TrimSpace(r.PostForm.Get("username")),
	}
	values := map[string]string{"email": form.Email, "username": form.Username}

	if fieldErrors := validation.ValidateSignupForm(form); len(fieldErrors) > 0 {
		h.renderer.Render(w, http.StatusBadRequest, "signup", newView(r, "Join", web.FormData{Values: values, Errors: fieldErrorMap(fieldErrors)}))
		return
	}

	o := h.flows.Signup(r.Context(), authflow.SignupInput{
		Email:    form.Email,
		Password: form.Password,
		Username: form.Username,
	})
	if h.apply(w, r, o) {
		return
	}
	h.renderer.Render(w, outcomeStatus(o), "signup", newView(r, "Join", web.FormData{Values: values, Errors: o.FieldErrors, Message: o.Message}))
}

// Logout handles POST /logout. A backend failure still clears the cookies
// and shows the error instead of redirecting.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := session.Tokens(r)
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		token = p.AccessToken
	}

	o := h.flows.Logout(r.Context(), token)
	if h.apply(w, r, o) {
		return
	}
	v := newView(r, "", web.ErrorData{Heading: "Sign-out incomplete", Message: o.Message})
	v.User = nil
	h.renderer.Error(w, http.StatusBadGateway, v)
}
