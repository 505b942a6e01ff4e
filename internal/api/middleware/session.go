package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/session"
)

const principalKey contextKey = "principal"

// Principal is the signed-in user of a request together with the access
// token that is current after any refresh.
type Principal struct {
	User        *identity.User
	AccessToken string
}

// SessionRefresher resolves the user of a request.
type SessionRefresher interface {
	Refresh(ctx context.Context, r *http.Request) (*identity.User, []*http.Cookie)
}

// LoginRedirect is where an anonymous visitor of a protected path is sent.
func LoginRedirect(path string) string {
	return "/login?" + url.Values{"redirectTo": {path}}.Encode()
}

// Session refreshes the session on every non-static request, writes any
// cookie changes, and applies the route rules: signed-in users are sent
// from login and signup to the dashboard, anonymous visitors of protected
// paths to login. Backend failures count as anonymous.
func Session(refresher SessionRefresher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsStaticAsset(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			user, cookies := refresher.Refresh(r.Context(), r)
			session.Apply(w, cookies)

			switch class := ClassifyRoute(r.URL.Path); {
			case user != nil && class == RouteAuthOnly:
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			case user == nil && class == RouteProtected:
				http.Redirect(w, r, LoginRedirect(r.URL.Path), http.StatusSeeOther)
				return
			}

			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			access, _ := session.Tokens(r)
			for _, c := range cookies {
				if c.Name == session.AccessCookie {
					access = c.Value
				}
			}
			ctx := context.WithValue(r.Context(), principalKey, &Principal{User: user, AccessToken: access})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal retrieves the signed-in user from the request context.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}

// GetUser retrieves the signed-in user, or nil.
func GetUser(ctx context.Context) *identity.User {
	if p := GetPrincipal(ctx); p != nil {
		return p.User
	}
	return nil
}

// WithPrincipal stores p in ctx. Used by tests and by handlers that sign a
// user in mid-request.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
