// Package preview implements draft mode: a signed cookie that makes blog
// pages bypass every cache and show unpublished content.
package preview

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wanderher/wanderher/internal/cms"
	"github.com/wanderher/wanderher/internal/redirect"
)

// CookieName is the draft-mode cookie.
const CookieName = "wh-preview"

// TTL is how long draft mode lasts once enabled.
const TTL = time.Hour

const subject = "preview"

// ErrNotConfigured is returned when no preview secret is set.
var ErrNotConfigured = errors.New("preview secret not configured")

// Manager issues and checks draft-mode cookies.
type Manager struct {
	secret []byte
	secure bool
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. The secret both authorizes enabling draft
// mode and signs the cookie.
func NewManager(secret string, secureCookie bool, opts ...Option) *Manager {
	m := &Manager{secret: []byte(secret), secure: secureCookie, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Configured reports whether a secret is set.
func (m *Manager) Configured() bool { return len(m.secret) > 0 }

// CheckSecret compares given with the configured secret in constant time.
func (m *Manager) CheckSecret(given string) bool {
	if !m.Configured() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), m.secret) == 1
}

// Enable sets the draft-mode cookie on w.
func (m *Manager) Enable(w http.ResponseWriter) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(token, int(TTL.Seconds())))
	return nil
}

// Disable deletes the draft-mode cookie.
func (m *Manager) Disable(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", -1))
}

// Draft mode is used from the CMS editor's iframe, which needs SameSite=None;
// browsers only accept that on secure cookies.
func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if m.secure {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: sameSite,
	}
}

// Active reports whether r carries a valid draft-mode cookie.
func (m *Manager) Active(r *http.Request) bool {
	if !m.Configured() {
		return false
	}
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(c.Value, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	return err == nil && token.Valid
}

// Middleware marks requests that carry a valid cookie as drafts.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Active(r) {
			r = r.WithContext(cms.WithDraft(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

// RedirectTarget is where to send the browser after enabling draft mode:
// /blog without a slug, the slug itself when it is a local path, and the
// post page for a bare slug.
func RedirectTarget(slug string) string {
	slug = strings.TrimSpace(slug)
	switch {
	case slug == "":
		return "/blog"
	case redirect.IsLocal(slug):
		return slug
	default:
		return "/blog/" + url.PathEscape(strings.TrimLeft(slug, "/"))
	}
}
