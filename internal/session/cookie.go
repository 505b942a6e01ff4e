// Package session stores identity backend sessions in cookies and keeps them
// fresh.
package session

import (
	"net/http"
	"time"

	"github.com/wanderher/wanderher/internal/identity"
)

// Cookie names.
const (
	AccessCookie  = "wh-access-token"
	RefreshCookie = "wh-refresh-token"
)

const cookieMaxAge = 30 * 24 * time.Hour

// CookieOptions controls the attributes of session cookies.
type CookieOptions struct {
	Secure bool
	Domain string
}

func (o CookieOptions) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		MaxAge:   maxAge,
		Secure:   o.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Cookies returns the cookies that store sess.
func Cookies(sess *identity.Session, opts CookieOptions) []*http.Cookie {
	maxAge := int(cookieMaxAge.Seconds())
	return []*http.Cookie{
		opts.cookie(AccessCookie, sess.AccessToken, maxAge),
		opts.cookie(RefreshCookie, sess.RefreshToken, maxAge),
	}
}

// ClearCookies returns cookies that delete the stored session.
func ClearCookies(opts CookieOptions) []*http.Cookie {
	return []*http.Cookie{
		opts.cookie(AccessCookie, "", -1),
		opts.cookie(RefreshCookie, "", -1),
	}
}

// Write sets the session cookies on w.
func Write(w http.ResponseWriter, sess *identity.Session, opts CookieOptions) {
	Apply(w, Cookies(sess, opts))
}

// Clear deletes the session cookies.
func Clear(w http.ResponseWriter, opts CookieOptions) {
	Apply(w, ClearCookies(opts))
}

// Apply sets each cookie on w.
func Apply(w http.ResponseWriter, cookies []*http.Cookie) {
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
}

// Tokens reads the access and refresh tokens from the request cookies.
func Tokens(r *http.Request) (access, refresh string) {
	if c, err := r.Cookie(AccessCookie); err == nil {
		access = c.Value
	}
	if c, err := r.Cookie(RefreshCookie); err == nil {
		refresh = c.Value
	}
	return access, refresh
}
