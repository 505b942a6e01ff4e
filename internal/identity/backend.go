// Package identity talks to the hosted identity backend that owns user
// accounts, passwords and sessions.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials covers both unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSignupRejected is returned when the backend refuses to create an account.
	ErrSignupRejected = errors.New("signup rejected")
	// ErrNoSession is returned when a token is missing, expired or revoked.
	ErrNoSession = errors.New("no valid session")
	// ErrUnavailable is returned when the backend is unreachable or not configured.
	ErrUnavailable = errors.New("identity backend unavailable")
)

// Backend is the contract this application expects from the identity backend.
type Backend interface {
	// SignUp creates an identity. The session is nil when the backend requires
	// email confirmation before issuing tokens.
	SignUp(ctx context.Context, email, password string) (*User, *Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Health(ctx context.Context) error
}
