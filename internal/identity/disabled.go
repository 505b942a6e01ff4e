package identity

import "context"

// Disabled is used when no identity backend is configured. Every call fails
// with ErrUnavailable so that public pages keep working without one.
type Disabled struct{}

func (Disabled) SignUp(context.Context, string, string) (*User, *Session, error) {
	return nil, nil, ErrUnavailable
}

func (Disabled) SignInWithPassword(context.Context, string, string) (*Session, error) {
	return nil, ErrUnavailable
}

func (Disabled) GetUser(context.Context, string) (*User, error) { return nil, ErrUnavailable }

func (Disabled) Refresh(context.Context, string) (*Session, error) { return nil, ErrUnavailable }

func (Disabled) SignOut(context.Context, string) error { return ErrUnavailable }

func (Disabled) Health(context.Context) error { return ErrUnavailable }
