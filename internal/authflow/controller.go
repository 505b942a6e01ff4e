package authflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wanderher/wanderher/internal/cache"
	"github.com/wanderher/wanderher/internal/identity"
	"github.com/wanderher/wanderher/internal/profile"
	"github.com/wanderher/wanderher/internal/redirect"
)

// Redirect targets.
const (
	DashboardPath = "/dashboard"
	HomePath      = "/"
)

// User-visible messages. Login never says whether the account exists.
const (
	MsgInvalidCredentials = "Invalid email or password."
	MsgSignupFailed       = "We could not create your account. Please check your details and try again."
	MsgUsernameTaken      = "That username is already taken."
	MsgProfileSetupFailed = "Your account was created but we could not set up your profile. Please try logging in."
	MsgProfileUnavailable = "We could not load your profile. Please contact support."
	MsgUnavailable        = "Sign-in is temporarily unavailable. Please try again later."
	MsgLogoutFailed       = "We could not sign you out of every device. Please try again."
)

// EventRecorder counts flow outcomes.
type EventRecorder interface {
	RecordAuthEvent(flow, outcome string)
}

// Controller runs the auth flows.
type Controller struct {
	backend  identity.Backend
	profiles profile.Repository
	repairer *profile.Repairer
	pages    cache.Store
	recorder EventRecorder
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventRecorder reports flow outcomes to rec.
func WithEventRecorder(rec EventRecorder) Option {
	return func(c *Controller) { c.recorder = rec }
}

// NewController creates a Controller. pages is invalidated under "/" after
// any change to who is signed in, since every page shares the layout that
// shows it.
func NewController(backend identity.Backend, profiles profile.Repository, repairer *profile.Repairer, pages cache.Store, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		profiles: profiles,
		repairer: repairer,
		pages:    pages,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SignupInput is a validated signup form.
type SignupInput struct {
	Email    string
	Password string
	Username string
}

// LoginInput is a validated login form.
type LoginInput struct {
	Email      string
	Password   string
	RedirectTo string
}

func (c *Controller) record(flow string, o Outcome) Outcome {
	if c.recorder != nil {
		c.recorder.RecordAuthEvent(flow, o.Kind.String())
	}
	return o
}

func (c *Controller) invalidateLayout(ctx context.Context) {
	if err := c.pages.InvalidatePrefix(ctx, HomePath); err != nil {
		slog.Warn("failed to invalidate cached pages", "error", err)
	}
}

// signOut revokes the session server-side. Failures are logged only; the
// caller clears cookies either way.
func (c *Controller) signOut(ctx context.Context, sess *identity.Session) {
	if sess == nil || sess.AccessToken == "" {
		return
	}
	if err := c.backend.SignOut(ctx, sess.AccessToken); err != nil {
		slog.Warn("sign out failed", "userId", sess.User.ID, "error", err)
	}
}

// Signup creates the identity and then its profile with the chosen
// username. A failed profile insert is not rolled back: the identity stays
// and the profile is repaired on its next login.
func (c *Controller) Signup(ctx context.Context, in SignupInput) Outcome {
	// Checked up front so the common case does not leave an orphaned
	// identity; the unique constraint still decides concurrent signups.
	if _, err := c.profiles.GetByUsername(ctx, in.Username); err == nil {
		return c.record("signup", usernameTaken())
	}

	user, sess, err := c.backend.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			slog.Error("identity backend unavailable during signup", "error", err)
			return c.record("signup", Error(MsgUnavailable))
		}
		slog.Info("signup rejected", "error", err)
		return c.record("signup", Error(MsgSignupFailed))
	}
	if user == nil || user.ID == "" {
		return c.record("signup", Error(MsgSignupFailed))
	}

	p := profile.NewDefault(user.ID, in.Username)
	if err := c.profiles.Create(ctx, p); err != nil {
		slog.Warn("profile bootstrap failed; identity has no profile until repaired",
			"userId", user.ID,
			"error", err,
		)
		c.signOut(ctx, sess)
		o := Error(MsgProfileSetupFailed)
		if errors.Is(err, profile.ErrUsernameTaken) {
			o = usernameTaken()
		}
		o.ClearSession = true
		return c.record("signup", o)
	}

	c.invalidateLayout(ctx)

	o := Redirect(DashboardPath)
	o.Session = sess
	return c.record("signup", o)
}

func usernameTaken() Outcome {
	o := Error(MsgUsernameTaken)
	o.FieldErrors = map[string]string{"username": MsgUsernameTaken}
	return o
}

// Login authenticates and makes sure the user has a profile, repairing it
// at most once. If the repair fails the new session is signed out.
func (c *Controller) Login(ctx context.Context, in LoginInput) Outcome {
	sess, err := c.backend.SignInWithPassword(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			slog.Error("identity backend unavailable during login", "error", err)
			return c.record("login", Error(MsgUnavailable))
		}
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			slog.Warn("login failed", "error", err)
		}
		return c.record("login", Error(MsgInvalidCredentials))
	}
	if sess == nil || sess.User.ID == "" {
		return c.record("login", Error(MsgInvalidCredentials))
	}

	_, repaired, err := c.repairer.Ensure(ctx, sess.User.ID, sess.User.Email)
	if err != nil {
		slog.Error("profile repair failed at login; signing out",
			"userId", sess.User.ID,
			"error", err,
		)
		c.signOut(ctx, sess)
		o := Error(MsgProfileUnavailable)
		o.ClearSession = true
		return c.record("login", o)
	}
	if repaired {
		slog.Info("repaired missing profile at login", "userId", sess.User.ID)
	}

	c.invalidateLayout(ctx)

	o := Redirect(redirect.LocalOr(in.RedirectTo, DashboardPath))
	o.Session = sess
	return c.record("login", o)
}

// Logout revokes the session. Cookies are cleared even when the backend
// call fails so the browser is signed out regardless.
func (c *Controller) Logout(ctx context.Context, accessToken string) Outcome {
	if accessToken != "" {
		if err := c.backend.SignOut(ctx, accessToken); err != nil {
			slog.Warn("logout failed", "error", err)
			o := Error(MsgLogoutFailed)
			o.ClearSession = true
			return c.record("logout", o)
		}
	}

	c.invalidateLayout(ctx)

	o := Redirect(HomePath)
	o.ClearSession = true
	return c.record("logout", o)
}

// EnsureProfile returns the signed-in user's profile, repairing it at most
// once. On failure the session is signed out and an error Outcome asks the
// caller to show a support message and clear cookies.
func (c *Controller) EnsureProfile(ctx context.Context, user *identity.User, accessToken string) (*profile.Profile, *Outcome) {
	p, repaired, err := c.repairer.Ensure(ctx, user.ID, user.Email)
	if err != nil {
		slog.Error("profile repair failed on page load; signing out",
			"userId", user.ID,
			"error", err,
		)
		if accessToken != "" {
			if err := c.backend.SignOut(ctx, accessToken); err != nil {
				slog.Warn("sign out failed", "userId", user.ID, "error", err)
			}
		}
		o := Error(MsgProfileUnavailable)
		o.ClearSession = true
		c.record("profile", o)
		return nil, &o
	}
	if repaired {
		slog.Info("repaired missing profile on page load", "userId", user.ID)
	}
	return p, nil
}
