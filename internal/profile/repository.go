package profile

import (
	"context"
	"errors"
)

// ErrProfileNotFound is returned when a profile record is not found.
var ErrProfileNotFound = errors.New("profile not found")

// ErrUsernameTaken is returned when another profile already uses the username.
var ErrUsernameTaken = errors.New("username already taken")

// ErrProfileExists is returned when a profile already exists for the user id.
var ErrProfileExists = errors.New("profile already exists")

// Repository provides operations on the profiles table. Uniqueness of id and
// username is enforced by the store, never by the caller.
type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	Update(ctx context.Context, id string, u Update) (*Profile, error)
}
