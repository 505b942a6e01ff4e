package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/wanderher/wanderher/internal/identity"
)

// DefaultLeeway is how close to expiry an access token is refreshed.
const DefaultLeeway = 60 * time.Second

// Refresher resolves the identity behind a request's session cookies and
// rotates tokens that are about to expire. Cookie changes are returned to the
// caller instead of being written.
type Refresher struct {
	backend identity.Backend
	opts    CookieOptions
	leeway  time.Duration
	now     func() time.Time
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) RefresherOption {
	return func(rf *Refresher) { rf.leeway = d }
}

// WithNow replaces time.Now.
func WithNow(now func() time.Time) RefresherOption {
	return func(rf *Refresher) { rf.now = now }
}

// NewRefresher creates a Refresher for backend.
func NewRefresher(backend identity.Backend, opts CookieOptions, options ...RefresherOption) *Refresher {
	rf := &Refresher{
		backend: backend,
		opts:    opts,
		leeway:  DefaultLeeway,
		now:     time.Now,
	}
	for _, o := range options {
		o(rf)
	}
	return rf
}

// Refresh returns the authenticated user, or nil, and the cookies to set on
// the response. An unreachable backend yields a nil user and no cookie
// changes so the session survives the outage.
func (rf *Refresher) Refresh(ctx context.Context, r *http.Request) (*identity.User, []*http.Cookie) {
	access, refresh := Tokens(r)
	if access == "" && refresh == "" {
		return nil, nil
	}

	if access != "" && !rf.expiring(access) {
		user, err := rf.backend.GetUser(ctx, access)
		switch {
		case err == nil:
			return user, nil
		case !errors.Is(err, identity.ErrNoSession):
			slog.Debug("session lookup failed; treating request as anonymous", "error", err)
			return nil, nil
		}
	}

	if refresh == "" {
		return nil, ClearCookies(rf.opts)
	}

	sess, err := rf.backend.Refresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			return nil, ClearCookies(rf.opts)
		}
		slog.Debug("session refresh failed; treating request as anonymous", "error", err)
		return nil, nil
	}

	user := sess.User
	return &user, Cookies(sess, rf.opts)
}

func (rf *Refresher) expiring(access string) bool {
	exp, err := identity.TokenExpiry(access)
	if err != nil {
		return true
	}
	return exp.Sub(rf.now()) < rf.leeway
}
